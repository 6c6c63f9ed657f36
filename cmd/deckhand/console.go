// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/compose"
	"github.com/AleutianAI/deckhand/pkg/logging"
)

// menuText is the operator menu. Selections are dispatched by number;
// anything unrecognized is an error and the loop continues.
const menuText = `
Deckhand — deployment console
  1) Start services
  2) Stop services
  3) Build and push images
  4) Update system packages
  5) Fix data directory permissions
  6) Install container engine
  7) Prune build cache
  8) Prune volumes
  9) Prune images
 10) Prune containers
  q) Quit
`

// Console owns the startup sequence and the menu dispatch loop. It is
// strictly sequential: one operation runs at a time and the console
// returns to the menu when it finishes, whatever its outcome.
type Console struct {
	session  *Session
	gate     *CredentialGate
	ensurer  *DependencyEnsurer
	ops      *Operations
	executor compose.Executor
	logger   *logging.Logger

	// in and out are the operator's terminal. Tests inject buffers.
	in  io.Reader
	out io.Writer

	// osRelease overrides the identification file path. Empty means the
	// system default.
	osRelease string
}

// NewConsole wires a console from its collaborators.
func NewConsole(
	session *Session,
	gate *CredentialGate,
	ensurer *DependencyEnsurer,
	ops *Operations,
	executor compose.Executor,
	logger *logging.Logger,
	in io.Reader,
	out io.Writer,
) *Console {
	return &Console{
		session:  session,
		gate:     gate,
		ensurer:  ensurer,
		ops:      ops,
		executor: executor,
		logger:   logger,
		in:       in,
		out:      out,
	}
}

// Run executes the startup sequence and, in interactive mode, the menu
// loop. A nil return is a clean exit (quit, EOF, or non-interactive
// completion); an error is fatal and the process exits non-zero.
func (c *Console) Run(ctx context.Context) error {
	if err := c.startup(ctx); err != nil {
		return err
	}

	if c.session.NonInteractive {
		c.logger.Info("startup complete, non-interactive run finished")
		return nil
	}
	return c.menuLoop(ctx)
}

// startup runs the fixed sequence: credential gate, distribution
// detection, engine presence, compose file check, update check.
func (c *Console) startup(ctx context.Context) error {
	if err := c.gate.Acquire(ctx); err != nil {
		return err
	}

	c.session.Distro = DetectDistro(c.osRelease, c.logger)

	c.ensurer.Ensure(ctx, c.ops.cfg.Engine.Binary, c.ops.InstallEngine)

	if err := c.executor.Validate(); err != nil {
		return err
	}

	// A failed update check degrades the session, it does not end it.
	if err := c.ops.UpdatePackages(ctx); err != nil {
		c.logger.Error("update check failed", "error", err.Error())
	}
	return nil
}

// menuLoop reads selections until quit, EOF, or a fatal operation
// failure.
func (c *Console) menuLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(c.out, menuText)
		fmt.Fprint(c.out, "Select an option: ")
		if !scanner.Scan() {
			// EOF is a clean exit, same as quit.
			return scanner.Err()
		}
		choice := strings.TrimSpace(scanner.Text())
		if choice == "" {
			continue
		}
		if choice == "q" || choice == "quit" {
			c.logger.Info("console session ended", "reason", "quit")
			return nil
		}
		if err := c.dispatch(ctx, choice); err != nil {
			if errors.Is(err, ErrStartupFailed) {
				return err
			}
			c.logger.Error("operation failed", "selection", choice, "error", err.Error())
		}
	}
}

// dispatch runs exactly one operation for a menu selection. An
// unrecognized selection logs one error and runs nothing.
func (c *Console) dispatch(ctx context.Context, choice string) error {
	switch choice {
	case "1":
		return c.ops.StartServices(ctx)
	case "2":
		return c.ops.StopServices(ctx)
	case "3":
		return c.ops.BuildAndPush(ctx)
	case "4":
		return c.ops.UpdatePackages(ctx)
	case "5":
		return c.ops.FixPermissions(ctx)
	case "6":
		return c.ops.InstallEngine(ctx)
	case "7":
		return c.ops.PruneBuildCache(ctx)
	case "8":
		return c.ops.PruneVolumes(ctx)
	case "9":
		return c.ops.PruneImages(ctx)
	case "10":
		return c.ops.PruneContainers(ctx)
	default:
		c.logger.Error("invalid menu selection", "selection", choice)
		return nil
	}
}
