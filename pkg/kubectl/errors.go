// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package kubectl

import (
	"fmt"
	"strings"
)

// ExecError reports a streamed or captured command that exited nonzero.
type ExecError struct {
	Argv     []string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("command %s exited with return code %d", strings.Join(e.Argv, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// QueryError reports a kubectl query that exited nonzero or produced
// output that could not be decoded.
type QueryError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error running kubectl %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("error running kubectl %s: process returned with retcode %d, error: %s",
		strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *QueryError) Unwrap() error { return e.Err }
