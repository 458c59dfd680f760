// Package validator checks a builtin's arguments against a sequence of
// preconditions, short-circuiting on the first failure so later checks
// never run once one has already failed (e.g. unset's "enough
// arguments" check must pass before its "valid identifier" check even
// looks at argv[1]).
package validator

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the sentinel every Validator failure wraps.
var ErrInvalidInput = errors.New("invalid input")

// NewErrInvalidInput wraps ErrInvalidInput with msg as the detail.
func NewErrInvalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// New creates a Validator with no recorded failure.
func New() *Validator {
	return &Validator{}
}

// Validator records the first failing precondition passed to Assert or
// AssertFunc; every check after that is skipped.
type Validator struct {
	err error
}

// Assert records msg as the Validator's error if condition is false.
func (v *Validator) Assert(condition bool, msg string) {
	v.AssertFunc(func() bool { return condition }, msg)
}

// AssertFunc records msg as the Validator's error if fn() is false. A
// Validator that has already failed skips fn entirely, so a later check
// can safely assume an earlier one held (e.g. an index-bounds check
// guarding a check that indexes into the same argv).
func (v *Validator) AssertFunc(fn func() bool, msg string) {
	if v.err != nil {
		return
	}
	if !fn() {
		v.err = NewErrInvalidInput(msg)
	}
}

// Err returns the first failure recorded by Assert/AssertFunc, or nil
// if every check passed.
func (v Validator) Err() error {
	return v.err
}

// Format renders msg as a builtin argument-validation message.
func Format(msg string) string {
	return fmt.Sprintf("invalid argument: %s", msg)
}
