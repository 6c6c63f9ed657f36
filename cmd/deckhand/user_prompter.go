// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main provides UserPrompter for interactive confirmations.

Three production implementations exist:
  - InteractivePrompter reads y/N answers from the operator.
  - AutoApprovePrompter grants every confirmation. Non-interactive runs
    use it so they never block on a prompt.
  - NonInteractivePrompter rejects every prompt with ErrNonInteractive,
    for paths where silent approval would be wrong.
*/
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrNonInteractive is returned when a prompt is attempted in a mode
// that forbids reading from the operator.
var ErrNonInteractive = errors.New("prompt attempted in non-interactive mode")

// UserPrompter asks the operator for confirmation.
type UserPrompter interface {
	// Confirm asks a yes/no question and returns the answer. EOF on the
	// input is treated as "no".
	Confirm(ctx context.Context, prompt string) (bool, error)

	// IsInteractive reports whether this prompter reads real input.
	IsInteractive() bool
}

// -----------------------------------------------------------------------------
// InteractivePrompter
// -----------------------------------------------------------------------------

// InteractivePrompter reads answers from an input stream (stdin in
// production).
type InteractivePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewInteractivePrompter creates a prompter on stdin/stdout.
func NewInteractivePrompter() *InteractivePrompter {
	return NewInteractivePrompterWithIO(os.Stdin, os.Stdout)
}

// NewInteractivePrompterWithIO creates a prompter on the given streams.
// Tests inject a strings.Reader and a bytes.Buffer.
func NewInteractivePrompterWithIO(in io.Reader, out io.Writer) *InteractivePrompter {
	return &InteractivePrompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question, defaulting to no.
func (p *InteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// IsInteractive reports true.
func (p *InteractivePrompter) IsInteractive() bool { return true }

// -----------------------------------------------------------------------------
// AutoApprovePrompter
// -----------------------------------------------------------------------------

// AutoApprovePrompter approves every confirmation without reading
// input. Non-interactive runs never block on a prompt; confirmation is
// auto-granted.
type AutoApprovePrompter struct{}

// NewAutoApprovePrompter creates an auto-approving prompter.
func NewAutoApprovePrompter() *AutoApprovePrompter {
	return &AutoApprovePrompter{}
}

// Confirm approves unconditionally.
func (p *AutoApprovePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// IsInteractive reports false.
func (p *AutoApprovePrompter) IsInteractive() bool { return false }

// -----------------------------------------------------------------------------
// NonInteractivePrompter
// -----------------------------------------------------------------------------

// NonInteractivePrompter rejects every prompt.
type NonInteractivePrompter struct{}

// NewNonInteractivePrompter creates a rejecting prompter.
func NewNonInteractivePrompter() *NonInteractivePrompter {
	return &NonInteractivePrompter{}
}

// Confirm returns ErrNonInteractive.
func (p *NonInteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	return false, ErrNonInteractive
}

// IsInteractive reports false.
func (p *NonInteractivePrompter) IsInteractive() bool { return false }

// -----------------------------------------------------------------------------
// MockPrompter
// -----------------------------------------------------------------------------

// MockPrompter is a test double for UserPrompter. Configure the
// function fields before use; a nil field panics when called.
type MockPrompter struct {
	// ConfirmFunc is called when Confirm is invoked.
	ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

	// IsInteractiveFunc overrides IsInteractive; nil reports true.
	IsInteractiveFunc func() bool

	// Calls records all invocations for verification.
	Calls []PrompterCall

	mu sync.Mutex
}

// PrompterCall records a single prompt.
type PrompterCall struct {
	Method string
	Prompt string
}

// Confirm delegates to ConfirmFunc and records the call.
func (m *MockPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, PrompterCall{Method: "Confirm", Prompt: prompt})
	m.mu.Unlock()
	if m.ConfirmFunc == nil {
		panic("MockPrompter.ConfirmFunc not set")
	}
	return m.ConfirmFunc(ctx, prompt)
}

// IsInteractive delegates to IsInteractiveFunc, defaulting to true.
func (m *MockPrompter) IsInteractive() bool {
	if m.IsInteractiveFunc != nil {
		return m.IsInteractiveFunc()
	}
	return true
}

// Reset clears recorded calls.
func (m *MockPrompter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Compile-time interface compliance check.
var (
	_ UserPrompter = (*InteractivePrompter)(nil)
	_ UserPrompter = (*AutoApprovePrompter)(nil)
	_ UserPrompter = (*NonInteractivePrompter)(nil)
	_ UserPrompter = (*MockPrompter)(nil)
)
