// Package units provides shared constants and validation for the length and
// speed units used by the tracker, the analysis core and the reports.
package units

// CentimetresPerMetre converts tracker positions (cm) to metres.
const CentimetresPerMetre = 100.0

// Speed unit constants
const (
	MPS  = "mps"
	CMPS = "cmps"
	MMPS = "mmps"
)

// Length unit constants
const (
	CM = "cm"
	M  = "m"
	MM = "mm"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{MPS, CMPS, MMPS}

// ValidLengthUnits contains all valid length unit values
var ValidLengthUnits = []string{CM, M, MM}

// IsValidSpeed checks if the given unit is in the list of valid speed units
func IsValidSpeed(unit string) bool {
	for _, validUnit := range ValidSpeedUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// IsValidLength checks if the given unit is in the list of valid length units
func IsValidLength(unit string) bool {
	for _, validUnit := range ValidLengthUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, cmps, mmps (speed); cm, m, mm (length)"
}

// ConvertSpeed converts a speed from metres per second to the target units.
// The analysis core works in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case CMPS:
		return speedMPS * CentimetresPerMetre
	case MMPS:
		return speedMPS * 1000
	default:
		return speedMPS
	}
}

// ConvertLength converts a length in centimetres (the tracker's native unit)
// to the target units.
func ConvertLength(lengthCM float64, targetUnits string) float64 {
	switch targetUnits {
	case M:
		return lengthCM / CentimetresPerMetre
	case MM:
		return lengthCM * 10
	default:
		return lengthCM
	}
}
