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
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/deckhand/cmd/deckhand/config"
	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/compose"
	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/process"
	"github.com/AleutianAI/deckhand/pkg/logging"
)

// Exit codes follow the shell convention for signal deaths.
const (
	exitCodeSIGINT  = 130
	exitCodeSIGTERM = 143
)

var (
	nonInteractive bool
	configPath     string
	verbose        bool

	rootCmd = &cobra.Command{
		Use:   "deckhand",
		Short: "An operator console for the Deckhand deployment stack",
		Long: `Deckhand manages a multi-container deployment on a single host:
start/stop the stack, build and push its images, apply system updates,
and keep the container engine healthy, from one interactive menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runConsole,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deckhand: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false,
		"run the startup sequence and exit without showing the menu")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the config file (default ~/.deckhand/deckhand.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	// SilenceUsage keeps runtime failures (bad credential, missing
	// compose file) from dumping the flag table, but a flag-parse error
	// is operator input error and must still show usage.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.PrintErrln(err)
		cmd.PrintErr(cmd.UsageString())
		return err
	})
}

func runConsole(cmd *cobra.Command, args []string) error {
	// A .env next to the binary may carry DECKHAND_* settings and the
	// sudo credential. Missing file is the normal case.
	_ = godotenv.Load()

	var cfg *config.DeckhandConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "deckhand",
	})
	defer logger.Close()

	// A non-terminal stdin (pipe, cron, CI) forces non-interactive mode
	// so the console never blocks waiting for a menu selection.
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		nonInteractive = true
	}

	session := NewSession(nonInteractive)
	logger = logger.With("session_id", session.ID)
	logger.Info("console starting", "non_interactive", session.NonInteractive)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	installSignalHandler(logger)

	proc := process.NewDefault()
	gate := NewCredentialGate(proc, session, logger)

	var prompter UserPrompter
	if session.NonInteractive {
		prompter = NewAutoApprovePrompter()
	} else {
		prompter = NewInteractivePrompter()
	}

	elevated := newElevatedManager(proc, session)
	runner := NewPrivilegedRunner(proc, session)
	executor := compose.NewDefaultExecutor(elevated, compose.Config{
		Engine: cfg.Engine.Binary,
		File:   cfg.ComposeFile,
	})
	ensurer := NewDependencyEnsurer(proc, prompter, logger)
	ops := NewOperations(cfg, session, runner, executor, elevated, prompter, logger)

	console := NewConsole(session, gate, ensurer, ops, executor, logger, os.Stdin, os.Stdout)
	if err := console.Run(ctx); err != nil {
		logger.Error("console terminated", "error", err.Error())
		return err
	}
	logger.Info("console exiting", "exit_code", 0)
	return nil
}

// installSignalHandler exits immediately with the conventional code on
// SIGINT or SIGTERM. In-flight subprocesses receive the same signal
// from the kernel and are not drained.
func installSignalHandler(logger *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		code := exitCodeSIGTERM
		if sig == syscall.SIGINT {
			code = exitCodeSIGINT
		}
		logger.Info("console interrupted", "signal", sig.String(), "exit_code", code)
		logger.Close()
		os.Exit(code)
	}()
}
