// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/AleutianAI/deckhand/cmd/deckhand/config"
	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/compose"
	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/process"
	"github.com/AleutianAI/deckhand/pkg/logging"
)

// ErrStartupFailed is returned when neither pulling nor building the
// stack images succeeds. Fatal: the console exits non-zero rather than
// bringing up a stack on stale or missing images.
var ErrStartupFailed = errors.New("could not pull or build the stack images")

// Operations implements the console's menu operations. Each method is a
// thin sequential wrapper over subprocess invocations; failures are
// returned for the dispatcher to log, and never terminate the console
// except where documented (ErrStartupFailed).
type Operations struct {
	cfg      *config.DeckhandConfig
	session  *Session
	runner   *PrivilegedRunner
	compose  compose.Executor
	engine   process.Manager // elevated; every call carries the credential
	prompter UserPrompter
	logger   *logging.Logger
}

// NewOperations wires the operation set.
func NewOperations(
	cfg *config.DeckhandConfig,
	session *Session,
	runner *PrivilegedRunner,
	executor compose.Executor,
	engine process.Manager,
	prompter UserPrompter,
	logger *logging.Logger,
) *Operations {
	return &Operations{
		cfg:      cfg,
		session:  session,
		runner:   runner,
		compose:  executor,
		engine:   engine,
		prompter: prompter,
		logger:   logger,
	}
}

// -----------------------------------------------------------------------------
// Stack Lifecycle
// -----------------------------------------------------------------------------

// StartServices refreshes images and (re)starts the full stack.
//
// Image refresh tries pull first and falls back to a local build when
// the pull fails (air-gapped hosts, unpublished tags). Both failing is
// ErrStartupFailed. The stack is then taken down and brought up
// detached, so a start on an already-running stack is a restart.
func (o *Operations) StartServices(ctx context.Context) error {
	o.logger.Info("starting the service stack")

	if err := o.compose.Pull(ctx); err != nil {
		o.logger.Warn("image pull failed, falling back to a local build", "error", err.Error())
		if err := o.compose.Build(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStartupFailed, err)
		}
	}

	// Restart semantics: always down first. Down on a stopped stack
	// exits zero, so this is safe on a cold start.
	if err := o.compose.Down(ctx, compose.DownOptions{}); err != nil {
		o.logger.Warn("stack teardown before start failed", "error", err.Error())
	}
	if err := o.compose.Up(ctx, compose.UpOptions{}); err != nil {
		return err
	}
	o.logger.Info("service stack started")
	return nil
}

// StopServices takes the stack down. Volumes are preserved.
func (o *Operations) StopServices(ctx context.Context) error {
	o.logger.Info("stopping the service stack")
	if err := o.compose.Down(ctx, compose.DownOptions{}); err != nil {
		return err
	}
	o.logger.Info("service stack stopped")
	return nil
}

// -----------------------------------------------------------------------------
// Build & Push
// -----------------------------------------------------------------------------

// BuildAndPush builds and pushes every configured service image.
//
// Failures are contained per service: a failed build logs one error and
// skips that service's push; a failed push logs one error with no
// retry. The remaining services always proceed. Returns an error only
// when at least one service failed, so the dispatcher logs a summary.
func (o *Operations) BuildAndPush(ctx context.Context) error {
	names := make([]string, 0, len(o.cfg.Services))
	for name := range o.cfg.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		svc := o.cfg.Services[name]
		tag := imageTag(o.cfg.Registry, name)

		o.logger.Info("building image", "service", name, "tag", tag)
		args := []string{"build", "-t", tag}
		if svc.Dockerfile != "" {
			args = append(args, "-f", svc.Dockerfile)
		}
		args = append(args, svc.Context)

		code, err := o.engine.RunAttached(ctx, nil, o.cfg.Engine.Binary, args...)
		if err != nil || code != 0 {
			o.logger.Error("image build failed", "service", name, "exit_code", code)
			failed++
			continue
		}

		o.logger.Info("pushing image", "service", name, "tag", tag)
		code, err = o.engine.RunAttached(ctx, nil, o.cfg.Engine.Binary, "push", tag)
		if err != nil || code != 0 {
			o.logger.Error("image push failed", "service", name, "exit_code", code)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d services failed", failed, len(names))
	}
	return nil
}

// imageTag builds `<registry>/<name>` with the name sanitized to the
// image-reference character set.
func imageTag(registry, name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, name)
	return registry + "/" + sanitized
}

// -----------------------------------------------------------------------------
// Host Packages
// -----------------------------------------------------------------------------

// UpdatePackages checks for pending distribution updates and, after
// confirmation, applies them. On an unrecognized distribution this is a
// logged no-op.
func (o *Operations) UpdatePackages(ctx context.Context) error {
	cmds, ok := commandsFor(o.session.Distro)
	if !ok {
		o.logger.Warn("package updates skipped, unsupported distribution",
			"distro", o.session.Distro.String())
		return nil
	}

	if len(cmds.refresh) > 0 {
		if _, err := o.runner.Run(ctx, PrivilegedCommand{Argv: cmds.refresh}); err != nil {
			return fmt.Errorf("package index refresh failed: %w", err)
		}
	}

	outcome, err := o.runner.Run(ctx, PrivilegedCommand{
		Argv:    cmds.check,
		ExitMap: cmds.checkExitMap,
	})
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	if outcome.State == StateSuccess && cmds.checkNoChange != "" &&
		bytes.Contains(outcome.Stdout, []byte(cmds.checkNoChange)) {
		outcome.State = StateNoChange
	}
	switch outcome.State {
	case StateNoChange:
		o.logger.Info("system packages are up to date")
		return nil
	case StateFailure:
		return fmt.Errorf("update check exited %d", outcome.Code)
	}

	granted, err := o.prompter.Confirm(ctx, "System updates are available. Apply them now?")
	if err != nil {
		return err
	}
	if !granted {
		o.logger.Info("package update declined")
		return nil
	}

	o.logger.Info("applying system updates", "distro", o.session.Distro.String())
	outcome, err = o.runner.Run(ctx, PrivilegedCommand{Argv: cmds.upgrade, Attached: true})
	if err != nil {
		return err
	}
	if outcome.State == StateFailure {
		return fmt.Errorf("package upgrade exited %d", outcome.Code)
	}
	o.logger.Info("system packages updated")
	return nil
}

// InstallEngine installs the container engine packages and enables the
// engine service. A no-op with a warning on an unrecognized
// distribution.
func (o *Operations) InstallEngine(ctx context.Context) error {
	cmds, ok := commandsFor(o.session.Distro)
	if !ok {
		o.logger.Warn("engine install skipped, unsupported distribution",
			"distro", o.session.Distro.String())
		return nil
	}

	o.logger.Info("installing the container engine", "distro", o.session.Distro.String())
	outcome, err := o.runner.Run(ctx, PrivilegedCommand{Argv: cmds.installEngine, Attached: true})
	if err != nil {
		return err
	}
	if outcome.State == StateFailure {
		return fmt.Errorf("engine install exited %d", outcome.Code)
	}

	outcome, err = o.runner.Run(ctx, PrivilegedCommand{
		Argv: []string{"systemctl", "enable", "--now", o.cfg.Engine.Binary},
	})
	if err != nil {
		return err
	}
	if outcome.State == StateFailure {
		return fmt.Errorf("enabling the engine service exited %d", outcome.Code)
	}
	o.logger.Info("container engine installed and enabled")
	return nil
}

// -----------------------------------------------------------------------------
// Data Directory Permissions
// -----------------------------------------------------------------------------

// FixPermissions re-owns the data directory to the invoking user and
// restores user read/write/traverse on everything under it. Containers
// running as root leave files behind that the operator cannot touch.
func (o *Operations) FixPermissions(ctx context.Context) error {
	owner := fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	o.logger.Info("fixing data directory permissions",
		"path", o.cfg.DataDir, "owner", owner)

	outcome, err := o.runner.Run(ctx, PrivilegedCommand{
		Argv: []string{"chown", "-R", owner, o.cfg.DataDir},
	})
	if err != nil {
		return err
	}
	if outcome.State == StateFailure {
		return fmt.Errorf("chown exited %d", outcome.Code)
	}

	outcome, err = o.runner.Run(ctx, PrivilegedCommand{
		Argv: []string{"chmod", "-R", "u+rwX", o.cfg.DataDir},
	})
	if err != nil {
		return err
	}
	if outcome.State == StateFailure {
		return fmt.Errorf("chmod exited %d", outcome.Code)
	}
	o.logger.Info("data directory permissions fixed")
	return nil
}

// -----------------------------------------------------------------------------
// Engine Pruning
// -----------------------------------------------------------------------------

// PruneBuildCache removes all build cache (`builder prune -af`).
func (o *Operations) PruneBuildCache(ctx context.Context) error {
	return o.prune(ctx, "build cache", "builder", "prune", "-af")
}

// PruneVolumes removes all unused volumes (`volume prune -f`).
// Irreversible; data in unused volumes is deleted.
func (o *Operations) PruneVolumes(ctx context.Context) error {
	return o.prune(ctx, "volumes", "volume", "prune", "-f")
}

// PruneImages removes all unused images (`image prune -af`).
func (o *Operations) PruneImages(ctx context.Context) error {
	return o.prune(ctx, "images", "image", "prune", "-af")
}

// PruneContainers removes all stopped containers (`container prune -f`).
func (o *Operations) PruneContainers(ctx context.Context) error {
	return o.prune(ctx, "containers", "container", "prune", "-f")
}

func (o *Operations) prune(ctx context.Context, what string, args ...string) error {
	o.logger.Info("pruning "+what, "engine", o.cfg.Engine.Binary)
	code, err := o.engine.RunAttached(ctx, nil, o.cfg.Engine.Binary, args...)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("pruning %s exited %d", what, code)
	}
	return nil
}
