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
	"testing"

	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/process"
	"github.com/AleutianAI/deckhand/pkg/logging"
)

func TestDependencyEnsurer_Present(t *testing.T) {
	proc := &process.Mock{
		LookPathFunc: func(name string) (string, error) { return "/usr/bin/" + name, nil },
	}
	prompter := &MockPrompter{} // any prompt would panic
	logger, _ := newTestLogger(t)

	e := NewDependencyEnsurer(proc, prompter, logger)
	if !e.Ensure(context.Background(), "docker", nil) {
		t.Error("present tool must report true")
	}
	if len(prompter.Calls) != 0 {
		t.Error("present tool must not prompt")
	}
}

func TestDependencyEnsurer_MissingDeclined(t *testing.T) {
	proc := &process.Mock{
		LookPathFunc: func(name string) (string, error) { return "", errors.New("not found") },
	}
	prompter := &MockPrompter{
		ConfirmFunc: func(ctx context.Context, prompt string) (bool, error) { return false, nil },
	}
	logger, exporter := newTestLogger(t)

	installed := false
	e := NewDependencyEnsurer(proc, prompter, logger)
	ok := e.Ensure(context.Background(), "docker", func(ctx context.Context) error {
		installed = true
		return nil
	})

	if ok {
		t.Error("declined install must report false")
	}
	if installed {
		t.Error("declined install must not run the installer")
	}
	// One warn for missing, one for declined.
	if n := exporter.CountLevel(logging.LevelWarn); n != 2 {
		t.Errorf("warn count = %d, want 2", n)
	}
}

func TestDependencyEnsurer_MissingInstalled(t *testing.T) {
	lookups := 0
	proc := &process.Mock{
		LookPathFunc: func(name string) (string, error) {
			lookups++
			if lookups == 1 {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + name, nil
		},
	}
	prompter := &MockPrompter{
		ConfirmFunc: func(ctx context.Context, prompt string) (bool, error) { return true, nil },
	}
	logger, _ := newTestLogger(t)

	e := NewDependencyEnsurer(proc, prompter, logger)
	ok := e.Ensure(context.Background(), "docker", func(ctx context.Context) error { return nil })

	if !ok {
		t.Error("successful install must report true")
	}
	if lookups != 2 {
		t.Errorf("lookups = %d, want a recheck after install", lookups)
	}
}

func TestDependencyEnsurer_InstallerFails(t *testing.T) {
	proc := &process.Mock{
		LookPathFunc: func(name string) (string, error) { return "", errors.New("not found") },
	}
	prompter := &MockPrompter{
		ConfirmFunc: func(ctx context.Context, prompt string) (bool, error) { return true, nil },
	}
	logger, exporter := newTestLogger(t)

	e := NewDependencyEnsurer(proc, prompter, logger)
	ok := e.Ensure(context.Background(), "docker", func(ctx context.Context) error {
		return errors.New("dnf exploded")
	})

	if ok {
		t.Error("failed install must report false")
	}
	if n := exporter.CountLevel(logging.LevelError); n != 1 {
		t.Errorf("error count = %d, want 1", n)
	}
}

// TestDependencyEnsurer_NoInstaller verifies a missing tool with no
// installer is a warning, not a prompt.
func TestDependencyEnsurer_NoInstaller(t *testing.T) {
	proc := &process.Mock{
		LookPathFunc: func(name string) (string, error) { return "", errors.New("not found") },
	}
	prompter := &MockPrompter{}
	logger, _ := newTestLogger(t)

	e := NewDependencyEnsurer(proc, prompter, logger)
	if e.Ensure(context.Background(), "docker", nil) {
		t.Error("missing tool with no installer must report false")
	}
	if len(prompter.Calls) != 0 {
		t.Error("no installer means no prompt")
	}
}
