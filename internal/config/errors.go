// File: internal/config/errors.go
package config

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every configuration error via errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Error describes a configuration value that is missing, malformed or
// unsupported for the chosen location.
type Error struct {
	Field string // option the error is about
	Value string // offending value, empty when the field is missing
	Msg   string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is lets callers test for ErrInvalid without caring about the field.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func invalidChoice(flag, value string) error {
	return &Error{
		Field: flag,
		Value: value,
		Msg:   fmt.Sprintf("option --%s: invalid choice: '%s'", flag, value),
	}
}
