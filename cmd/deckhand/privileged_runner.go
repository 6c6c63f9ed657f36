// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/process"
)

// =============================================================================
// Outcomes
// =============================================================================

// OutcomeState classifies what a privileged command's exit code means.
// Exit codes are data here, not errors: several package managers use
// non-zero codes for ordinary answers (dnf check-update exits 100 when
// updates exist), so each command declares its own mapping.
type OutcomeState int

const (
	// StateSuccess means the command did what was asked.
	StateSuccess OutcomeState = iota

	// StateNoChange means the command ran fine and found nothing to do.
	StateNoChange

	// StateFailure means the command failed. The console logs an error
	// and returns to the menu; it never exits on an operation failure.
	StateFailure
)

// String returns "success", "no-change", or "failure".
func (s OutcomeState) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateNoChange:
		return "no-change"
	case StateFailure:
		return "failure"
	default:
		return "failure"
	}
}

// ExitOutcome is the classified result of a privileged command. Stdout
// is populated for captured (non-attached) runs; some checks need the
// output as well as the code (apt reports pending updates only in its
// simulation summary).
type ExitOutcome struct {
	State  OutcomeState
	Code   int
	Stdout []byte
}

// PrivilegedCommand describes one command to run with elevated rights.
type PrivilegedCommand struct {
	// Argv is the command and its arguments, without any sudo prefix.
	Argv []string

	// ExitMap overrides the default exit-code interpretation (0 means
	// StateSuccess, anything else StateFailure). Keys are exit codes.
	ExitMap map[int]OutcomeState

	// Attached streams the command's output to the operator's terminal
	// instead of capturing it.
	Attached bool
}

// classify maps an exit code through the command's ExitMap, falling
// back to the zero/non-zero convention.
func (c PrivilegedCommand) classify(code int) ExitOutcome {
	if state, ok := c.ExitMap[code]; ok {
		return ExitOutcome{State: state, Code: code}
	}
	if code == 0 {
		return ExitOutcome{State: StateSuccess, Code: code}
	}
	return ExitOutcome{State: StateFailure, Code: code}
}

// =============================================================================
// PrivilegedRunner
// =============================================================================

// sudoPrefix makes sudo read the credential from stdin (-S), ignore any
// cached timestamp (-k) so the stored credential is always the one
// exercised, and print no prompt (-p ”) so captured output stays clean.
var sudoPrefix = []string{"sudo", "-S", "-k", "-p", ""}

// PrivilegedRunner executes commands under sudo using the session's
// sealed credential. The credential is decrypted only for the duration
// of one command and is piped to sudo's stdin, never placed in argv or
// the environment.
type PrivilegedRunner struct {
	proc    process.Manager
	session *Session
}

// NewPrivilegedRunner creates a runner bound to a session.
func NewPrivilegedRunner(proc process.Manager, session *Session) *PrivilegedRunner {
	return &PrivilegedRunner{proc: proc, session: session}
}

// Run executes cmd under sudo and classifies its exit code. Returns
// ErrNoCredential when the credential gate has not stored a credential.
// A StateFailure outcome is NOT an error; err is reserved for the
// command being unrunnable (binary missing, context cancelled).
func (r *PrivilegedRunner) Run(ctx context.Context, cmd PrivilegedCommand) (ExitOutcome, error) {
	if !r.session.HasCredential() {
		return ExitOutcome{State: StateFailure}, ErrNoCredential
	}
	if len(cmd.Argv) == 0 {
		return ExitOutcome{State: StateFailure}, fmt.Errorf("empty command")
	}

	var outcome ExitOutcome
	err := r.session.WithCredential(func(secret []byte) error {
		input := credentialInput(secret, nil)
		argv := append(append([]string{}, sudoPrefix[1:]...), cmd.Argv...)

		if cmd.Attached {
			code, err := r.proc.RunAttached(ctx, input, sudoPrefix[0], argv...)
			if err != nil {
				return err
			}
			outcome = cmd.classify(code)
			return nil
		}
		result, err := r.proc.RunWithInput(ctx, input, sudoPrefix[0], argv...)
		if err != nil {
			return err
		}
		outcome = cmd.classify(result.ExitCode)
		outcome.Stdout = result.Stdout
		return nil
	})
	if err != nil {
		return ExitOutcome{State: StateFailure}, err
	}
	return outcome, nil
}

// credentialInput builds sudo's stdin: the credential, a newline, then
// whatever the wrapped command itself expects on stdin.
func credentialInput(secret, rest []byte) []byte {
	input := make([]byte, 0, len(secret)+1+len(rest))
	input = append(input, secret...)
	input = append(input, '\n')
	input = append(input, rest...)
	return input
}

// =============================================================================
// Elevated Manager
// =============================================================================

// elevatedManager decorates a process.Manager so every invocation runs
// under sudo with the session credential. The compose executor and the
// engine lifecycle operations use it without knowing about credentials.
type elevatedManager struct {
	proc    process.Manager
	session *Session
}

// newElevatedManager wraps proc with sudo elevation from session.
func newElevatedManager(proc process.Manager, session *Session) *elevatedManager {
	return &elevatedManager{proc: proc, session: session}
}

func (m *elevatedManager) Run(ctx context.Context, name string, args ...string) (process.Result, error) {
	return m.RunWithInput(ctx, nil, name, args...)
}

func (m *elevatedManager) RunWithInput(ctx context.Context, input []byte, name string, args ...string) (process.Result, error) {
	var result process.Result
	err := m.session.WithCredential(func(secret []byte) error {
		argv := append(append(append([]string{}, sudoPrefix[1:]...), name), args...)
		var err error
		result, err = m.proc.RunWithInput(ctx, credentialInput(secret, input), sudoPrefix[0], argv...)
		return err
	})
	return result, err
}

func (m *elevatedManager) RunAttached(ctx context.Context, input []byte, name string, args ...string) (int, error) {
	code := -1
	err := m.session.WithCredential(func(secret []byte) error {
		argv := append(append(append([]string{}, sudoPrefix[1:]...), name), args...)
		var err error
		code, err = m.proc.RunAttached(ctx, credentialInput(secret, input), sudoPrefix[0], argv...)
		return err
	})
	return code, err
}

func (m *elevatedManager) LookPath(name string) (string, error) {
	return m.proc.LookPath(name)
}

// Compile-time interface compliance check.
var _ process.Manager = (*elevatedManager)(nil)
