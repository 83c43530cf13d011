package types

import (
	"errors"
	"fmt"
)

// DiscardError is the reason-coded outcome of a stage that drops an entry.
type DiscardError struct {
	Stage   string
	Reason  string
	Details map[string]interface{}
}

func (e *DiscardError) Error() string {
	return fmt.Sprintf("discarded by %s: %s", e.Stage, e.Reason)
}

func IsDiscarded(err error) bool {
	var d *DiscardError
	return errors.As(err, &d)
}

func NewDiscardError(stage, reason string) *DiscardError {
	return &DiscardError{
		Stage:   stage,
		Reason:  reason,
		Details: make(map[string]interface{}),
	}
}

func (e *DiscardError) WithDetail(key string, value interface{}) *DiscardError {
	e.Details[key] = value
	return e
}
