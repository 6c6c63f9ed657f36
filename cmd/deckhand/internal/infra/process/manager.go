// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package process abstracts external process execution for the console.

Every subprocess the console runs (package manager, container engine,
compose) goes through the Manager interface so that tests can mock
process execution and verify exact invocations without touching the
host.

# Exit Codes Are Data

Unlike a plain exec wrapper, non-zero exit status is NOT an error here.
The console interprets exit codes per distribution family (dnf
check-update returns 100 when updates are available), so Run returns the
code in Result and reserves the error value for "the process could not
be run at all" (binary missing, context cancelled, spawn failure).
*/
package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Result holds the observable outcome of a completed process.
type Result struct {
	// Stdout is the captured standard output. Empty for attached runs.
	Stdout []byte

	// Stderr is the captured standard error. Empty for attached runs.
	Stderr []byte

	// ExitCode is the process exit status. Zero on success.
	ExitCode int
}

// Manager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use, although the console
// itself is strictly sequential.
//
// # Context Handling
//
// All run methods accept a context and kill the process when it is
// cancelled.
type Manager interface {
	// Run executes a command and captures its output. A non-zero exit
	// status is reported through Result.ExitCode with a nil error; the
	// error return is reserved for spawn failures and cancellation.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// RunWithInput is Run with data piped to the process's stdin. Used
	// for commands that read a credential from stdin (sudo -S).
	RunWithInput(ctx context.Context, input []byte, name string, args ...string) (Result, error)

	// RunAttached executes a command with stdout and stderr wired to the
	// console so the operator sees live progress (compose up, image
	// builds). Optional input is piped to stdin. Returns the exit code.
	RunAttached(ctx context.Context, input []byte, name string, args ...string) (int, error)

	// LookPath reports the full path of an executable, or an error when
	// it is not present on PATH.
	LookPath(name string) (string, error)
}

// -----------------------------------------------------------------------------
// Default Implementation
// -----------------------------------------------------------------------------

// Default implements Manager using os/exec. This is the production
// implementation; use Mock in tests.
type Default struct{}

// NewDefault creates the production process manager.
func NewDefault() *Default {
	return &Default{}
}

// Run executes a command and captures its output.
func (m *Default) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return m.RunWithInput(ctx, nil, name, args...)
}

// RunWithInput executes a command with data piped to stdin.
func (m *Default) RunWithInput(ctx context.Context, input []byte, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, ctx.Err()
		}
		return result, err
	}
	return result, nil
}

// RunAttached executes a command with stdio attached to the console.
func (m *Default) RunAttached(ctx context.Context, input []byte, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), ctx.Err()
		}
		return -1, err
	}
	return 0, nil
}

// LookPath reports the full path of an executable.
func (m *Default) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Compile-time interface compliance check.
var _ Manager = (*Default)(nil)
