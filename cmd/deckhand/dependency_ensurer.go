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
	"github.com/AleutianAI/deckhand/pkg/logging"
)

// DependencyEnsurer checks that a host tool exists and offers to
// install it when it does not. A declined or failed install is logged
// and the console proceeds; the operation that needs the tool will fail
// on its own with a clearer message than a startup abort would give.
type DependencyEnsurer struct {
	proc     process.Manager
	prompter UserPrompter
	logger   *logging.Logger
}

// NewDependencyEnsurer creates an ensurer.
func NewDependencyEnsurer(proc process.Manager, prompter UserPrompter, logger *logging.Logger) *DependencyEnsurer {
	return &DependencyEnsurer{proc: proc, prompter: prompter, logger: logger}
}

// Ensure reports whether tool is on PATH, offering install when it is
// not. install may be nil when no installer exists for the host.
func (e *DependencyEnsurer) Ensure(ctx context.Context, tool string, install func(context.Context) error) bool {
	if _, err := e.proc.LookPath(tool); err == nil {
		e.logger.Debug("dependency present", "tool", tool)
		return true
	}
	e.logger.Warn("dependency missing", "tool", tool)

	if install == nil {
		return false
	}

	granted, err := e.prompter.Confirm(ctx, fmt.Sprintf("%s is not installed. Install it now?", tool))
	if err != nil || !granted {
		e.logger.Warn("dependency install declined", "tool", tool)
		return false
	}

	if err := install(ctx); err != nil {
		e.logger.Error("dependency install failed", "tool", tool, "error", err.Error())
		return false
	}

	if _, err := e.proc.LookPath(tool); err != nil {
		e.logger.Error("dependency still missing after install", "tool", tool)
		return false
	}
	e.logger.Info("dependency installed", "tool", tool)
	return true
}
