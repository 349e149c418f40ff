package togglekit

import (
	"fmt"
	"strings"
)

// ValidationError is returned by mutation calls when a flag fails
// structural validation. Warnings are advisory and never block on their
// own; they accompany the errors that did.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e ValidationError) Error() string {
	return "invalid flag: " + strings.Join(e.Errors, "; ")
}

// NotFoundError is returned by mutation calls addressing a flag key that
// is not registered. Read paths never return it; they degrade to defaults.
type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("flag %q not found", e.Key)
}

// ImportError collects per-flag registration failures from
// ImportConfiguration. Flags that validated cleanly are still applied.
type ImportError struct {
	Failed map[string]error
}

func (e ImportError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	return fmt.Sprintf("import failed for %d flag(s): %s", len(e.Failed), strings.Join(keys, ", "))
}

// ValidationReport is the outcome of validating a single flag.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Err converts the report into a ValidationError, or nil when valid.
func (r ValidationReport) Err() error {
	if r.Valid {
		return nil
	}
	return ValidationError{Errors: r.Errors, Warnings: r.Warnings}
}
