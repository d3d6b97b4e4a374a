package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		units    string
		expected float64
	}{
		{"0.5 m/s to cm/s", 0.5, CMPS, 50},
		{"0.5 m/s to mm/s", 0.5, MMPS, 500},
		{"0.5 m/s to m/s", 0.5, MPS, 0.5},
		{"unknown units default to mps", 1.2, "furlongs", 1.2},
		{"rest", 0, CMPS, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMPS, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMPS, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertLength(t *testing.T) {
	tests := []struct {
		name     string
		lengthCM float64
		units    string
		expected float64
	}{
		{"reach path 42 cm to m", 42, M, 0.42},
		{"reach path 42 cm to mm", 42, MM, 420},
		{"cm passthrough", 42, CM, 42},
		{"unknown units default to cm", 42, "in", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertLength(tt.lengthCM, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertLength(%f, %s) = %f, want %f", tt.lengthCM, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidSpeedUnits {
		if !IsValidSpeed(u) {
			t.Errorf("IsValidSpeed(%q) = false", u)
		}
	}
	for _, u := range ValidLengthUnits {
		if !IsValidLength(u) {
			t.Errorf("IsValidLength(%q) = false", u)
		}
	}
	if IsValidSpeed("mph") {
		t.Error("mph is not a tracker speed unit")
	}
	if IsValidLength("") {
		t.Error("empty length unit should be invalid")
	}
	if GetValidUnitsString() == "" {
		t.Error("GetValidUnitsString should not be empty")
	}
}
