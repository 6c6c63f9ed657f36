// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package compose drives the container engine's compose subcommand for the
deployment stack.

The console never parses compose files; it passes the configured file to
`<engine> compose -f <file>` and interprets exit status. The executor
runs through an injected process.Manager, which in production is the
elevated manager carrying the session credential, so every engine call
is privileged without this package knowing anything about credentials.
*/
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/process"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrComposeFileMissing is returned when the configured compose file
	// does not exist. This is a configuration error and fatal to startup.
	ErrComposeFileMissing = errors.New("compose file not found")

	// ErrCommandFailed is returned when a compose invocation exits
	// non-zero. Wraps the operation and exit code for logging.
	ErrCommandFailed = errors.New("compose command failed")
)

// =============================================================================
// Interface Definition
// =============================================================================

// Executor manages compose operations for the deployment stack.
//
// # Thread Safety
//
// The console is single threaded; implementations are not required to
// serialize concurrent calls.
type Executor interface {
	// Up starts the full service set detached (`up -d`), optionally
	// forcing an image rebuild.
	Up(ctx context.Context, opts UpOptions) error

	// Down stops and removes the running service set, optionally
	// deleting volumes.
	Down(ctx context.Context, opts DownOptions) error

	// Pull fetches the latest images for every service.
	Pull(ctx context.Context) error

	// Build builds every service image locally.
	Build(ctx context.Context) error

	// Validate checks that the configured compose file exists. Returns
	// ErrComposeFileMissing when it does not.
	Validate() error
}

// UpOptions configures an Up invocation.
type UpOptions struct {
	// ForceBuild adds --build so images are rebuilt before start.
	ForceBuild bool
}

// DownOptions configures a Down invocation.
type DownOptions struct {
	// RemoveVolumes adds -v, deleting named volumes. Irreversible.
	RemoveVolumes bool
}

// =============================================================================
// Default Implementation
// =============================================================================

// Config configures the default executor.
type Config struct {
	// Engine is the container engine binary, e.g. "docker" or "podman".
	Engine string

	// File is the absolute path of the compose file.
	File string

	// Stat overrides the file existence check. Nil means os.Stat.
	// Used by tests.
	Stat func(string) (os.FileInfo, error)
}

// DefaultExecutor implements Executor over a process.Manager.
type DefaultExecutor struct {
	proc process.Manager
	cfg  Config
}

// NewDefaultExecutor creates an executor for the given engine and
// compose file.
func NewDefaultExecutor(proc process.Manager, cfg Config) *DefaultExecutor {
	if cfg.Stat == nil {
		cfg.Stat = os.Stat
	}
	return &DefaultExecutor{proc: proc, cfg: cfg}
}

// Validate checks that the compose file exists.
func (e *DefaultExecutor) Validate() error {
	if _, err := e.cfg.Stat(e.cfg.File); err != nil {
		return fmt.Errorf("%w: %s", ErrComposeFileMissing, e.cfg.File)
	}
	return nil
}

// Up starts the service set detached.
func (e *DefaultExecutor) Up(ctx context.Context, opts UpOptions) error {
	args := []string{"up", "-d"}
	if opts.ForceBuild {
		args = append(args, "--build")
	}
	return e.run(ctx, args...)
}

// Down stops and removes the service set.
func (e *DefaultExecutor) Down(ctx context.Context, opts DownOptions) error {
	args := []string{"down"}
	if opts.RemoveVolumes {
		args = append(args, "-v")
	}
	return e.run(ctx, args...)
}

// Pull fetches the latest images.
func (e *DefaultExecutor) Pull(ctx context.Context) error {
	return e.run(ctx, "pull")
}

// Build builds the service images locally.
func (e *DefaultExecutor) Build(ctx context.Context) error {
	return e.run(ctx, "build")
}

// run executes `<engine> compose -f <file> <args...>` attached so the
// operator sees engine progress live.
func (e *DefaultExecutor) run(ctx context.Context, args ...string) error {
	if err := e.Validate(); err != nil {
		return err
	}
	argv := append([]string{"compose", "-f", e.cfg.File}, args...)
	code, err := e.proc.RunAttached(ctx, nil, e.cfg.Engine, argv...)
	if err != nil {
		return fmt.Errorf("%w: %s %v: %v", ErrCommandFailed, e.cfg.Engine, args, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s compose %s exited %d", ErrCommandFailed, e.cfg.Engine, args[0], code)
	}
	return nil
}

// Compile-time interface compliance check.
var _ Executor = (*DefaultExecutor)(nil)
