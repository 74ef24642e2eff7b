package errors

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ValidateNonNegative rejects negative and NaN values for a named weight.
func ValidateNonNegative(name string, v float64) error {
	if math.IsNaN(v) {
		return New(ErrCodeInvalidConfig, "%s must be a number", name)
	}
	if v < 0 {
		return New(ErrCodeInvalidConfig, "%s must be non-negative, got %g", name, v)
	}
	return nil
}

// ParseGridSize parses a grid size option. A trailing "%" makes the value
// relative to the average station distance, otherwise it is an absolute cell
// size in input coordinate units. Zero and negative sizes are rejected.
func ParseGridSize(s string) (value float64, relative bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, New(ErrCodeInvalidConfig, "grid size cannot be empty")
	}
	if strings.HasSuffix(s, "%") {
		relative = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	value, perr := strconv.ParseFloat(s, 64)
	if perr != nil {
		return 0, false, Wrap(ErrCodeInvalidConfig, perr, "invalid grid size %q", s)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, false, New(ErrCodeInvalidConfig, "grid size must be positive, got %q", s)
	}
	if relative {
		value /= 100
	}
	return value, relative, nil
}

// ValidatePath validates a user supplied file path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}
