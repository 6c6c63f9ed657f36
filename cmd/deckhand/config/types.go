// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

// DeckhandConfig is the console configuration, loaded once at startup
// from ~/.deckhand/deckhand.yaml and passed by reference into every
// component.
type DeckhandConfig struct {
	// Registry is the image repository namespace used by build-and-push,
	// e.g. "registry.example.com/stationapp".
	Registry string `yaml:"registry"`

	// ComposeFile is the path of the deployment's compose file. Its
	// absence is a fatal configuration error.
	ComposeFile string `yaml:"compose_file"`

	// DataDir is the deployment data directory targeted by the
	// fix-permissions operation.
	DataDir string `yaml:"data_dir"`

	// LogDir is where the console appends its log file.
	LogDir string `yaml:"log_dir"`

	// Engine selects the container engine CLI.
	Engine EngineConfig `yaml:"engine"`

	// Services maps a service name to its image build descriptor.
	// Consumed only by build-and-push; iteration order is unspecified.
	Services map[string]ServiceBuild `yaml:"services"`
}

// EngineConfig selects and describes the container engine.
type EngineConfig struct {
	// Binary is the engine CLI, e.g. "docker" or "podman".
	Binary string `yaml:"binary"`
}

// ServiceBuild describes how to build one service image.
type ServiceBuild struct {
	// Context is the build context directory.
	Context string `yaml:"context"`

	// Dockerfile is the definition file, relative to Context when not
	// absolute. Empty means the engine default.
	Dockerfile string `yaml:"dockerfile,omitempty"`
}

// DefaultConfig returns the configuration written on first run. The
// service set mirrors the deployment this console was built for: an
// API, a background worker, the web UI, a reverse proxy, the content
// sync job, and the database.
func DefaultConfig() DeckhandConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	deployDir := filepath.Join(home, "deploy")

	service := func(name string) ServiceBuild {
		return ServiceBuild{
			Context:    filepath.Join(deployDir, name),
			Dockerfile: "Dockerfile",
		}
	}

	return DeckhandConfig{
		Registry:    "registry.local/station",
		ComposeFile: filepath.Join(deployDir, "docker-compose.yml"),
		DataDir:     filepath.Join(deployDir, "data"),
		LogDir:      filepath.Join(home, ".deckhand", "logs"),
		Engine:      EngineConfig{Binary: "docker"},
		Services: map[string]ServiceBuild{
			"api":      service("api"),
			"worker":   service("worker"),
			"ui":       service("frontend"),
			"proxy":    service("proxy"),
			"sync":     service("sync"),
			"database": service("database"),
		},
	}
}
