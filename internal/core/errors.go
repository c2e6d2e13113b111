package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when an argument is malformed or has the wrong shape
	ErrValidation = errors.New("validation error")

	// ErrConfiguration is returned when an option required by the selected
	// algorithm/distance pair is absent or out of range
	ErrConfiguration = errors.New("configuration error")

	// ErrCompatibility is returned for algorithm/distance pairs that cannot work together
	ErrCompatibility = errors.New("compatibility error")

	// ErrData is returned for malformed input files and unresolved category references
	ErrData = errors.New("data error")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Configurationf wraps ErrConfiguration with a formatted message.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Compatibilityf wraps ErrCompatibility with a formatted message.
func Compatibilityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCompatibility, fmt.Sprintf(format, args...))
}

// Dataf wraps ErrData with a formatted message.
func Dataf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}
