package errors

import (
	"math"
	"testing"
)

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name    string
		v       float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"positive", 1.5, false},
		{"negative", -0.1, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegative("p_45", tt.v)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNonNegative(%v) error = %v, wantErr %v", tt.v, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidConfig) {
				t.Errorf("GetCode() = %v, want %v", GetCode(err), ErrCodeInvalidConfig)
			}
		})
	}
}

func TestParseGridSize(t *testing.T) {
	tests := []struct {
		input    string
		want     float64
		relative bool
		wantErr  bool
	}{
		{"100%", 1, true, false},
		{"50%", 0.5, true, false},
		{" 250 ", 250, false, false},
		{"12.5", 12.5, false, false},
		{"0", 0, false, true},
		{"-5", 0, false, true},
		{"0%", 0, false, true},
		{"abc", 0, false, true},
		{"", 0, false, true},
		{"NaN", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, rel, err := ParseGridSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGridSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want || rel != tt.relative {
				t.Errorf("ParseGridSize(%q) = (%v, %v), want (%v, %v)", tt.input, got, rel, tt.want, tt.relative)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "obstacles.json", false},
		{"absolute", "/tmp/obstacles.json", false},
		{"empty", "", true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
		{"too long", string(make([]byte, 5000)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
