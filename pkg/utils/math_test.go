package utils

import (
	"math"
	"testing"
)

// ============================================================
// Тесты RoundToPrecision
// ============================================================

func TestRoundToPrecision(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		precision int
		expected  float64
	}{
		// Базовые кейсы
		{"exact match", 0.123, 3, 0.123},
		{"round down", 0.123456789, 8, 0.12345678},
		{"round down 2", 1.999, 2, 1.99},
		{"zero precision", 100.9, 0, 100.0},

		// Граничные случаи
		{"zero value", 0, 8, 0},
		{"negative precision", 0.123, -1, 0.123},
		{"large number", 12345.6789, 2, 12345.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToPrecision(tt.value, tt.precision)
			if !floatEquals(result, tt.expected) {
				t.Errorf("RoundToPrecision(%v, %v) = %v, want %v",
					tt.value, tt.precision, result, tt.expected)
			}
		})
	}
}

func TestRoundToPrecisionNearest(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		precision int
		expected  float64
	}{
		{"round up", 0.1235, 3, 0.124},
		{"round down", 0.1234, 3, 0.123},
		{"negative precision", 0.123, -1, 0.123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToPrecisionNearest(tt.value, tt.precision)
			if !floatEquals(result, tt.expected) {
				t.Errorf("RoundToPrecisionNearest(%v, %v) = %v, want %v",
					tt.value, tt.precision, result, tt.expected)
			}
		})
	}
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		step     float64
		expected float64
	}{
		{"exact match", 0.123, 0.001, 0.123},
		{"round down", 0.123456, 0.001, 0.123},
		{"whole numbers", 100.5, 1.0, 100.0},
		{"zero step", 0.123, 0, 0.123},
		{"negative step", 0.123, -0.001, 0.123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToStep(tt.value, tt.step)
			if !floatEquals(result, tt.expected) {
				t.Errorf("RoundToStep(%v, %v) = %v, want %v",
					tt.value, tt.step, result, tt.expected)
			}
		})
	}
}

// floatEquals сравнивает float64 с допуском
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
