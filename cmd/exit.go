// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
)

// Exit codes for probe-style commands
const (
	exitOK         = 0
	exitFailure    = 1 // timeout or negative result
	exitConnection = 2
)

// exitError carries a process exit code through cobra's RunE
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func failure(format string, args ...interface{}) error {
	return &exitError{code: exitFailure, err: fmt.Errorf(format, args...)}
}

func connectionFailure(err error) error {
	return &exitError{code: exitConnection, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitFailure
}
