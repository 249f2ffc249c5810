package session

import (
	"errors"
	"fmt"
)

// ErrStore marks failures reported by the underlying document store.
var ErrStore = errors.New("session store failure")

// ConfigurationError is returned by constructors given unusable arguments.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid session configuration: %s %s", e.Field, e.Reason)
}

func configError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// DecodeError is returned when a stored document cannot be turned back into a
// session.
type DecodeError struct {
	ID  string
	Err error
}

func (e *DecodeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("decode session: %v", e.Err)
	}
	return fmt.Sprintf("decode session %s: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeError(id string, err error) error {
	return &DecodeError{ID: id, Err: err}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
