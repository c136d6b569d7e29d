package commands

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that the referenced sim does not exist.
	ErrNotFound = errors.New("SIM not found")
	// ErrUnknownAction reports an action other than lock or unlock.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownStep reports an unrecognised recovery step.
	ErrUnknownStep = errors.New("unknown step")
)

// SimNotFoundError carries the id that failed to resolve.
type SimNotFoundError struct {
	ID string
}

func (e *SimNotFoundError) Error() string {
	return fmt.Sprintf("sim %q: %v", e.ID, ErrNotFound)
}

func (e *SimNotFoundError) Unwrap() error {
	return ErrNotFound
}

// resultLabel classifies err for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrUnknownStep):
		return "invalid"
	default:
		return "error"
	}
}
