package kinematics

import (
	"fmt"

	"github.com/banshee-data/bimanual.report/internal/config"
)

// Thresholds holds every tunable value used by the analysis core. It is
// passed by value into each component; nothing here is read from global state.
type Thresholds struct {
	SampleRate     int     `json:"sample_rate"`     // Hz
	SpeedThreshold float64 `json:"speed_threshold"` // m/s

	// Rest envelope around the start position (cm)
	MaxHeightNeeded float64 `json:"max_height_needed"`
	MaxLengthNeeded float64 `json:"max_length_needed"`
	// Clear departure from the start position (cm)
	MinHeightNeeded float64 `json:"min_height_needed"`
	MinLengthNeeded float64 `json:"min_length_needed"`

	ThresholdBothHands        float64    `json:"threshold_both_hands"`         // cm², mean squared y/z distance between hands
	ThresholdChangedHandsMeas int        `json:"threshold_changed_hands_meas"` // samples
	HeightBox                 float64    `json:"height_box"`                   // cm above the start height
	PositionButton            [3]float64 `json:"position_button"`              // cm, lab frame

	FilterOrder    int        `json:"filter_order"`
	FilterCutoffHz float64    `json:"filter_cutoff_hz"`
	FilterMode     FilterMode `json:"filter_mode"`

	ExtremaOrder int `json:"extrema_order"`
}

// DefaultThresholds returns the built-in analysis defaults.
func DefaultThresholds() Thresholds {
	th, err := ThresholdsFromTuning(config.DefaultTuningConfig())
	if err != nil {
		panic(fmt.Sprintf("built-in tuning defaults are invalid: %v", err))
	}
	return th
}

// ThresholdsFromTuning builds Thresholds from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func ThresholdsFromTuning(cfg *config.TuningConfig) (Thresholds, error) {
	mode, err := ParseFilterMode(cfg.GetFilterMode())
	if err != nil {
		return Thresholds{}, err
	}
	th := Thresholds{
		SampleRate:                cfg.GetSampleRate(),
		SpeedThreshold:            cfg.GetSpeedThreshold(),
		MaxHeightNeeded:           cfg.GetMaxHeightNeeded(),
		MaxLengthNeeded:           cfg.GetMaxLengthNeeded(),
		MinHeightNeeded:           cfg.GetMinHeightNeeded(),
		MinLengthNeeded:           cfg.GetMinLengthNeeded(),
		ThresholdBothHands:        cfg.GetThresholdBothHands(),
		ThresholdChangedHandsMeas: cfg.GetThresholdChangedHandsMeas(),
		HeightBox:                 cfg.GetHeightBox(),
		PositionButton:            cfg.GetPositionButton(),
		FilterOrder:               cfg.GetFilterOrder(),
		FilterCutoffHz:            cfg.GetFilterCutoffHz(),
		FilterMode:                mode,
		ExtremaOrder:              cfg.GetExtremaOrder(),
	}
	return th, th.Validate()
}

// Validate reports missing or non-positive values as ErrConfiguration.
func (th Thresholds) Validate() error {
	switch {
	case th.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrConfiguration, th.SampleRate)
	case th.SpeedThreshold <= 0:
		return fmt.Errorf("%w: speed threshold %g", ErrConfiguration, th.SpeedThreshold)
	case th.MaxHeightNeeded <= 0 || th.MaxLengthNeeded <= 0:
		return fmt.Errorf("%w: rest envelope %g/%g", ErrConfiguration, th.MaxHeightNeeded, th.MaxLengthNeeded)
	case th.MinHeightNeeded <= 0 || th.MinLengthNeeded <= 0:
		return fmt.Errorf("%w: departure thresholds %g/%g", ErrConfiguration, th.MinHeightNeeded, th.MinLengthNeeded)
	case th.ThresholdBothHands <= 0:
		return fmt.Errorf("%w: both-hands threshold %g", ErrConfiguration, th.ThresholdBothHands)
	case th.ThresholdChangedHandsMeas < 0:
		return fmt.Errorf("%w: changed-hands threshold %d", ErrConfiguration, th.ThresholdChangedHandsMeas)
	case th.HeightBox <= 0:
		return fmt.Errorf("%w: box height %g", ErrConfiguration, th.HeightBox)
	case th.ExtremaOrder < 1:
		return fmt.Errorf("%w: extrema order %d", ErrConfiguration, th.ExtremaOrder)
	}
	if th.FilterMode != FilterOff {
		if th.FilterOrder < 1 {
			return fmt.Errorf("%w: filter order %d", ErrConfiguration, th.FilterOrder)
		}
		if th.FilterCutoffHz <= 0 || th.FilterCutoffHz >= float64(th.SampleRate)/2 {
			return fmt.Errorf("%w: filter cutoff %g Hz at %d Hz", ErrConfiguration, th.FilterCutoffHz, th.SampleRate)
		}
	}
	return nil
}
