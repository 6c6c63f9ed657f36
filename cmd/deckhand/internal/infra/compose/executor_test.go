// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package compose tests.

# Testing Strategy

All compose invocations go through a process.Mock; tests verify the
exact argv assembly, the compose-file validation gate, and exit-code
handling. No engine is required.
*/
package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/deckhand/cmd/deckhand/internal/infra/process"
)

// writeComposeFile creates a throwaway compose file and returns its path.
func writeComposeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compose.yaml")
	if err := os.WriteFile(path, []byte("services: {}\n"), 0644); err != nil {
		t.Fatalf("write compose file: %v", err)
	}
	return path
}

// newExecutor builds an executor over a mock that always succeeds.
func newExecutor(t *testing.T, mock *process.Mock) *DefaultExecutor {
	t.Helper()
	return NewDefaultExecutor(mock, Config{
		Engine: "docker",
		File:   writeComposeFile(t),
	})
}

// TestExecutor_Up_Args verifies the up argv, with and without --build.
func TestExecutor_Up_Args(t *testing.T) {
	tests := []struct {
		name       string
		opts       UpOptions
		wantSuffix []string
	}{
		{"plain up", UpOptions{}, []string{"up", "-d"}},
		{"force build", UpOptions{ForceBuild: true}, []string{"up", "-d", "--build"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &process.Mock{
				RunAttachedFunc: func(ctx context.Context, input []byte, name string, args ...string) (int, error) {
					return 0, nil
				},
			}
			exec := newExecutor(t, mock)

			if err := exec.Up(context.Background(), tt.opts); err != nil {
				t.Fatalf("Up() unexpected error: %v", err)
			}

			calls := mock.GetCalls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 engine call, got %d", len(calls))
			}
			args := calls[0].Args
			if calls[0].Name != "docker" || args[0] != "compose" || args[1] != "-f" {
				t.Errorf("argv prefix = %s %v, want docker compose -f", calls[0].Name, args[:2])
			}
			got := args[3:]
			if len(got) != len(tt.wantSuffix) {
				t.Fatalf("argv suffix = %v, want %v", got, tt.wantSuffix)
			}
			for i := range got {
				if got[i] != tt.wantSuffix[i] {
					t.Errorf("argv suffix = %v, want %v", got, tt.wantSuffix)
					break
				}
			}
		})
	}
}

// TestExecutor_Down_RemoveVolumes verifies -v is appended only on request.
func TestExecutor_Down_RemoveVolumes(t *testing.T) {
	var captured []string
	mock := &process.Mock{
		RunAttachedFunc: func(ctx context.Context, input []byte, name string, args ...string) (int, error) {
			captured = args
			return 0, nil
		},
	}
	exec := newExecutor(t, mock)

	if err := exec.Down(context.Background(), DownOptions{RemoveVolumes: true}); err != nil {
		t.Fatalf("Down() unexpected error: %v", err)
	}
	last := captured[len(captured)-1]
	if last != "-v" {
		t.Errorf("argv = %v, want trailing -v", captured)
	}
}

// TestExecutor_MissingComposeFile verifies the validation gate fires
// before any engine call.
func TestExecutor_MissingComposeFile(t *testing.T) {
	mock := &process.Mock{
		RunAttachedFunc: func(ctx context.Context, input []byte, name string, args ...string) (int, error) {
			return 0, nil
		},
	}
	exec := NewDefaultExecutor(mock, Config{
		Engine: "docker",
		File:   "/nonexistent/compose.yaml",
	})

	err := exec.Pull(context.Background())
	if !errors.Is(err, ErrComposeFileMissing) {
		t.Fatalf("Pull() error = %v, want ErrComposeFileMissing", err)
	}
	if len(mock.GetCalls()) != 0 {
		t.Errorf("engine invoked despite missing compose file: %v", mock.GetCalls())
	}
}

// TestExecutor_NonZeroExit verifies exit-code failures wrap ErrCommandFailed.
func TestExecutor_NonZeroExit(t *testing.T) {
	mock := &process.Mock{
		RunAttachedFunc: func(ctx context.Context, input []byte, name string, args ...string) (int, error) {
			return 18, nil
		},
	}
	exec := newExecutor(t, mock)

	err := exec.Build(context.Background())
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("Build() error = %v, want ErrCommandFailed", err)
	}
}

// TestExecutor_PullAndBuild_Args verifies the single-verb operations.
func TestExecutor_PullAndBuild_Args(t *testing.T) {
	var verbs []string
	mock := &process.Mock{
		RunAttachedFunc: func(ctx context.Context, input []byte, name string, args ...string) (int, error) {
			verbs = append(verbs, args[len(args)-1])
			return 0, nil
		},
	}
	exec := newExecutor(t, mock)

	ctx := context.Background()
	if err := exec.Pull(ctx); err != nil {
		t.Fatalf("Pull() unexpected error: %v", err)
	}
	if err := exec.Build(ctx); err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}
	if len(verbs) != 2 || verbs[0] != "pull" || verbs[1] != "build" {
		t.Errorf("verbs = %v, want [pull build]", verbs)
	}
}
