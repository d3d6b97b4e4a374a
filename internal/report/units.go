package report

import (
	"fmt"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/units"
)

// Units are the display units of plotted traces. Stored samples and
// parameters are always m/s and cm.
type Units struct {
	Speed  string // units.MPS, units.CMPS or units.MMPS
	Length string // units.CM, units.M or units.MM
}

// DefaultUnits plots in the units the analysis works in.
var DefaultUnits = Units{Speed: units.MPS, Length: units.CM}

// ParseUnits validates unit names; empty names take the default.
func ParseUnits(speed, length string) (Units, error) {
	u := DefaultUnits
	if speed != "" {
		if !units.IsValidSpeed(speed) {
			return u, fmt.Errorf("invalid speed unit %q, want one of %s", speed, units.GetValidUnitsString())
		}
		u.Speed = speed
	}
	if length != "" {
		if !units.IsValidLength(length) {
			return u, fmt.Errorf("invalid length unit %q, want one of %s", length, units.GetValidUnitsString())
		}
		u.Length = length
	}
	return u, nil
}

var speedLabels = map[string]string{units.MPS: "m/s", units.CMPS: "cm/s", units.MMPS: "mm/s"}

func (u Units) speedAxis() string {
	return fmt.Sprintf("Speed (%s)", speedLabels[u.Speed])
}

func (u Units) heightAxis() string {
	return fmt.Sprintf("Height (%s)", u.Length)
}

func (u Units) speed(s kinematics.Sample) float64 {
	return units.ConvertSpeed(s.Speed, u.Speed)
}

func (u Units) height(s kinematics.Sample) float64 {
	return units.ConvertLength(s.Z, u.Length)
}
