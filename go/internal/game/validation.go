package game

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/pasapalabra/go/internal/models"
)

// ValidateGameName returns the problems with name, or nil when it is valid.
// Length is counted in characters after trimming.
func ValidateGameName(name string) []string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return []string{"Game name is required"}
	}

	var errs []string
	n := utf8.RuneCountInString(trimmed)
	if n > models.MaxNameLength {
		errs = append(errs, fmt.Sprintf("Game name cannot exceed %d characters", models.MaxNameLength))
	}
	if n < models.MinNameLength {
		errs = append(errs, fmt.Sprintf("Game name must have at least %d characters", models.MinNameLength))
	}
	return errs
}

// ValidateTimeLimit returns the problems with a time limit in seconds.
func ValidateTimeLimit(seconds int) []string {
	var errs []string
	if seconds <= 0 {
		errs = append(errs, "Time limit must be greater than 0")
	}
	if seconds > models.MaxTimeLimit {
		errs = append(errs, "Time limit cannot exceed 1 hour (3600 seconds)")
	}
	if seconds < models.MinTimeLimit {
		errs = append(errs, "Time limit must be at least 1 minute (60 seconds)")
	}
	return errs
}

func validationError(errs ...[]string) error {
	var all []string
	for _, e := range errs {
		all = append(all, e...)
	}
	if len(all) == 0 {
		return nil
	}
	return &ValidationError{Errors: all}
}
