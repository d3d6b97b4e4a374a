package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default analysis thresholds.
const DefaultConfigPath = "config/tuning.defaults.json"

// ErrInvalidConfig is wrapped by every validation failure so callers can
// distinguish a bad configuration from an I/O problem.
var ErrInvalidConfig = errors.New("invalid configuration")

// Filter modes accepted by filter_mode.
const (
	FilterModeOff      = "off"
	FilterModeSpeed    = "speed"
	FilterModePosition = "position"
)

// TuningConfig represents the root configuration for the kinematic analysis.
// The schema matches the /api/config endpoint so the same JSON can be used
// for both startup configuration and inspection at runtime.
//
// Distances are in centimetres in the tracker's lab frame (z up), speeds in
// metres per second.
type TuningConfig struct {
	// Acquisition
	SampleRate   *int    `json:"sample_rate,omitempty"`
	TrialTimeout *string `json:"trial_timeout,omitempty"` // duration string like "30s"

	// Event detection
	SpeedThreshold *float64 `json:"speed_threshold,omitempty"`

	// Start envelope (hand considered at rest)
	MaxHeightNeeded *float64 `json:"max_height_needed,omitempty"`
	MaxLengthNeeded *float64 `json:"max_length_needed,omitempty"`
	// Clear departure from the start position
	MinHeightNeeded *float64 `json:"min_height_needed,omitempty"`
	MinLengthNeeded *float64 `json:"min_length_needed,omitempty"`

	// Hand role classification
	ThresholdBothHands        *float64    `json:"threshold_both_hands,omitempty"`
	ThresholdChangedHandsMeas *int        `json:"threshold_changed_hands_meas,omitempty"`
	HeightBox                 *float64    `json:"height_box,omitempty"`
	PositionButton            *[3]float64 `json:"position_button,omitempty"`

	// Smoothing
	FilterOrder    *int     `json:"filter_order,omitempty"`
	FilterCutoffHz *float64 `json:"filter_cutoff_hz,omitempty"`
	FilterMode     *string  `json:"filter_mode,omitempty"`

	// Parameter extraction
	ExtremaOrder *int `json:"extrema_order,omitempty"`

	// Batch reprocessing
	Workers *int `json:"workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	button := empty.GetPositionButton()
	return &TuningConfig{
		SampleRate:                ptrInt(empty.GetSampleRate()),
		TrialTimeout:              ptrString(empty.GetTrialTimeout().String()),
		SpeedThreshold:            ptrFloat64(empty.GetSpeedThreshold()),
		MaxHeightNeeded:           ptrFloat64(empty.GetMaxHeightNeeded()),
		MaxLengthNeeded:           ptrFloat64(empty.GetMaxLengthNeeded()),
		MinHeightNeeded:           ptrFloat64(empty.GetMinHeightNeeded()),
		MinLengthNeeded:           ptrFloat64(empty.GetMinLengthNeeded()),
		ThresholdBothHands:        ptrFloat64(empty.GetThresholdBothHands()),
		ThresholdChangedHandsMeas: ptrInt(empty.GetThresholdChangedHandsMeas()),
		HeightBox:                 ptrFloat64(empty.GetHeightBox()),
		PositionButton:            &button,
		FilterOrder:               ptrInt(empty.GetFilterOrder()),
		FilterCutoffHz:            ptrFloat64(empty.GetFilterCutoffHz()),
		FilterMode:                ptrString(empty.GetFilterMode()),
		ExtremaOrder:              ptrInt(empty.GetExtremaOrder()),
		Workers:                   ptrInt(empty.GetWorkers()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/x/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks that the configuration values are valid. Only fields that
// are set are checked; unset fields fall back to defaults which are valid.
func (c *TuningConfig) Validate() error {
	if c.SampleRate != nil && *c.SampleRate <= 0 {
		return invalid("sample_rate must be positive, got %d", *c.SampleRate)
	}
	if c.TrialTimeout != nil && *c.TrialTimeout != "" {
		d, err := time.ParseDuration(*c.TrialTimeout)
		if err != nil {
			return invalid("trial_timeout %q: %v", *c.TrialTimeout, err)
		}
		if d <= 0 {
			return invalid("trial_timeout must be positive, got %s", d)
		}
	}

	positive := []struct {
		name string
		v    *float64
	}{
		{"speed_threshold", c.SpeedThreshold},
		{"max_height_needed", c.MaxHeightNeeded},
		{"max_length_needed", c.MaxLengthNeeded},
		{"min_height_needed", c.MinHeightNeeded},
		{"min_length_needed", c.MinLengthNeeded},
		{"threshold_both_hands", c.ThresholdBothHands},
		{"height_box", c.HeightBox},
		{"filter_cutoff_hz", c.FilterCutoffHz},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return invalid("%s must be positive, got %g", p.name, *p.v)
		}
	}

	if c.ThresholdChangedHandsMeas != nil && *c.ThresholdChangedHandsMeas < 0 {
		return invalid("threshold_changed_hands_meas must be non-negative, got %d", *c.ThresholdChangedHandsMeas)
	}
	if c.FilterOrder != nil && (*c.FilterOrder < 1 || *c.FilterOrder > 8) {
		return invalid("filter_order must be between 1 and 8, got %d", *c.FilterOrder)
	}
	if c.ExtremaOrder != nil && *c.ExtremaOrder < 1 {
		return invalid("extrema_order must be at least 1, got %d", *c.ExtremaOrder)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return invalid("workers must be at least 1, got %d", *c.Workers)
	}
	if c.FilterMode != nil {
		switch strings.ToLower(*c.FilterMode) {
		case FilterModeOff, FilterModeSpeed, FilterModePosition:
		default:
			return invalid("filter_mode must be one of off, speed, position; got %q", *c.FilterMode)
		}
	}

	// The cutoff must sit below Nyquist for the configured rate.
	if rate, cutoff := c.GetSampleRate(), c.GetFilterCutoffHz(); cutoff >= float64(rate)/2 {
		return invalid("filter_cutoff_hz %g must be below Nyquist (%g Hz)", cutoff, float64(rate)/2)
	}
	if c.GetMaxHeightNeeded() > c.GetMinHeightNeeded() {
		return invalid("max_height_needed (%g) exceeds min_height_needed (%g)", c.GetMaxHeightNeeded(), c.GetMinHeightNeeded())
	}
	if c.GetMaxLengthNeeded() > c.GetMinLengthNeeded() {
		return invalid("max_length_needed (%g) exceeds min_length_needed (%g)", c.GetMaxLengthNeeded(), c.GetMinLengthNeeded())
	}

	return nil
}

// GetSampleRate returns the tracker sample rate in Hz.
func (c *TuningConfig) GetSampleRate() int {
	if c.SampleRate == nil {
		return 120
	}
	return *c.SampleRate
}

// GetTrialTimeout parses and returns the TrialTimeout as a time.Duration.
func (c *TuningConfig) GetTrialTimeout() time.Duration {
	if c.TrialTimeout == nil || *c.TrialTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.TrialTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSpeedThreshold returns the movement speed threshold in m/s.
func (c *TuningConfig) GetSpeedThreshold() float64 {
	if c.SpeedThreshold == nil {
		return 0.05
	}
	return *c.SpeedThreshold
}

// GetMaxHeightNeeded returns the max_height_needed value or the default.
func (c *TuningConfig) GetMaxHeightNeeded() float64 {
	if c.MaxHeightNeeded == nil {
		return 3.0
	}
	return *c.MaxHeightNeeded
}

// GetMaxLengthNeeded returns the max_length_needed value or the default.
func (c *TuningConfig) GetMaxLengthNeeded() float64 {
	if c.MaxLengthNeeded == nil {
		return 3.0
	}
	return *c.MaxLengthNeeded
}

// GetMinHeightNeeded returns the min_height_needed value or the default.
func (c *TuningConfig) GetMinHeightNeeded() float64 {
	if c.MinHeightNeeded == nil {
		return 10.0
	}
	return *c.MinHeightNeeded
}

// GetMinLengthNeeded returns the min_length_needed value or the default.
func (c *TuningConfig) GetMinLengthNeeded() float64 {
	if c.MinLengthNeeded == nil {
		return 10.0
	}
	return *c.MinLengthNeeded
}

// GetThresholdBothHands returns the threshold_both_hands value (cm²) or the default.
func (c *TuningConfig) GetThresholdBothHands() float64 {
	if c.ThresholdBothHands == nil {
		return 5.0
	}
	return *c.ThresholdBothHands
}

// GetThresholdChangedHandsMeas returns the threshold_changed_hands_meas value or the default.
func (c *TuningConfig) GetThresholdChangedHandsMeas() int {
	if c.ThresholdChangedHandsMeas == nil {
		return 10
	}
	return *c.ThresholdChangedHandsMeas
}

// GetHeightBox returns the height_box value or the default.
func (c *TuningConfig) GetHeightBox() float64 {
	if c.HeightBox == nil {
		return 15.0
	}
	return *c.HeightBox
}

// GetPositionButton returns the trigger button position in cm or the default.
func (c *TuningConfig) GetPositionButton() [3]float64 {
	if c.PositionButton == nil {
		return [3]float64{30, 40, 5}
	}
	return *c.PositionButton
}

// GetFilterOrder returns the filter_order value or the default.
func (c *TuningConfig) GetFilterOrder() int {
	if c.FilterOrder == nil {
		return 2
	}
	return *c.FilterOrder
}

// GetFilterCutoffHz returns the filter_cutoff_hz value or the default.
func (c *TuningConfig) GetFilterCutoffHz() float64 {
	if c.FilterCutoffHz == nil {
		return 10.0
	}
	return *c.FilterCutoffHz
}

// GetFilterMode returns the normalised filter_mode value or the default.
func (c *TuningConfig) GetFilterMode() string {
	if c.FilterMode == nil || *c.FilterMode == "" {
		return FilterModeOff
	}
	return strings.ToLower(*c.FilterMode)
}

// GetExtremaOrder returns the extrema_order value or the default.
func (c *TuningConfig) GetExtremaOrder() int {
	if c.ExtremaOrder == nil {
		return 10
	}
	return *c.ExtremaOrder
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}
