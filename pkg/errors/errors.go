// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package errors provides a small wrapping error type used for the sentinel
// errors of the module's pkg/ packages, so that a sentinel can still be
// recognised with Contains after it has been wrapped.
package errors

import (
	"errors"
	"fmt"
)

// Error is a wrapping error that keeps a message distinct from the cause it
// wraps, so that logging can print both without string concatenation.
type Error struct {
	msg   string
	cause error
}

// New returns an error with the given message and no cause.
func New(msg string) error {
	return &Error{msg: msg}
}

// Wrap returns an error whose message is wrapper's and whose cause is err.
// Wrap(nil, err) returns err unchanged and Wrap(wrapper, nil) returns nil.
func Wrap(wrapper, err error) error {
	if wrapper == nil || err == nil {
		return err
	}
	return &Error{msg: wrapper.Error(), cause: err}
}

// Contains reports whether err or any error it wraps has the same message
// as target, comparing Error() strings at each level of the unwrap chain.
func Contains(err, target error) bool {
	if err == nil || target == nil {
		return err == target
	}
	for err != nil {
		if err.Error() == target.Error() {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap exposes the cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}
