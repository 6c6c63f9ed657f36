// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/process"
	"github.com/AleutianAI/deckhand/pkg/logging"
)

var (
	// ErrCredentialRequired is returned when no credential source is
	// available: non-interactive mode with the environment variable
	// unset. Fatal to startup.
	ErrCredentialRequired = errors.New("sudo credential required but no source available")

	// ErrCredentialInvalid is returned when the supplied credential
	// fails validation and no retry is possible. Fatal to startup.
	ErrCredentialInvalid = errors.New("sudo credential rejected")
)

// credentialEnvVar supplies the credential non-interactively. It is
// read once and removed from the process environment immediately.
const credentialEnvVar = "DECKHAND_SUDO_PASSWORD"

// CredentialGate acquires and validates the sudo credential exactly
// once at startup, then seals it into the session. Everything
// privileged after the gate reuses the sealed credential; the operator
// is never asked again.
//
// Validation is a sudo no-op (`sudo -S -k true`) so a bad credential is
// rejected before any real operation runs. An environment-supplied
// credential gets no retry: a wrong value in automation should fail
// fast, not hang on a prompt.
type CredentialGate struct {
	proc    process.Manager
	session *Session
	logger  *logging.Logger

	// readSecret reads one credential from the operator without echo.
	// Tests inject a canned reader.
	readSecret func() ([]byte, error)
}

// NewCredentialGate creates a gate for the session.
func NewCredentialGate(proc process.Manager, session *Session, logger *logging.Logger) *CredentialGate {
	return &CredentialGate{
		proc:       proc,
		session:    session,
		logger:     logger,
		readSecret: readSecretFromTerminal,
	}
}

// Acquire obtains a validated credential and stores it in the session.
//
// Source precedence:
//  1. DECKHAND_SUDO_PASSWORD, when set. Validated once; rejection is
//     ErrCredentialInvalid with no fallback to prompting.
//  2. An interactive no-echo prompt. Rejection re-prompts; only a read
//     failure (EOF) or context cancellation aborts.
//
// Non-interactive mode with the variable unset returns
// ErrCredentialRequired without prompting.
func (g *CredentialGate) Acquire(ctx context.Context) error {
	if value, ok := os.LookupEnv(credentialEnvVar); ok {
		// Drop the variable so child processes never inherit it.
		os.Unsetenv(credentialEnvVar)
		secret := []byte(value)

		valid, err := g.validate(ctx, secret)
		if err != nil {
			return err
		}
		if !valid {
			g.logger.Error("environment credential rejected", "source", "env")
			return ErrCredentialInvalid
		}
		g.session.SetCredential(secret)
		g.logger.Info("credential acquired", "source", "env")
		return nil
	}

	if g.session.NonInteractive {
		return ErrCredentialRequired
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Print("Enter the sudo password: ")
		secret, err := g.readSecret()
		fmt.Println()
		if err != nil {
			// EOF on the terminal means the operator gave up.
			return fmt.Errorf("%w: %v", ErrCredentialRequired, err)
		}

		valid, err := g.validate(ctx, secret)
		if err != nil {
			wipe(secret)
			return err
		}
		if valid {
			g.session.SetCredential(secret)
			g.logger.Info("credential acquired", "source", "prompt", "attempts", attempt)
			return nil
		}
		wipe(secret)
		g.logger.Error("credential rejected, try again", "attempt", attempt)
	}
}

// validate runs a sudo no-op with the candidate credential. A zero exit
// means the credential works; non-zero means it was rejected. err is
// reserved for sudo being unrunnable.
func (g *CredentialGate) validate(ctx context.Context, secret []byte) (bool, error) {
	input := credentialInput(secret, nil)
	argv := append(append([]string{}, sudoPrefix[1:]...), "true")
	result, err := g.proc.RunWithInput(ctx, input, sudoPrefix[0], argv...)
	if err != nil {
		return false, fmt.Errorf("could not run sudo to validate the credential: %w", err)
	}
	return result.ExitCode == 0, nil
}

// readSecretFromTerminal reads a line from stdin with echo disabled.
func readSecretFromTerminal() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// wipe zeroes a rejected credential buffer.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
