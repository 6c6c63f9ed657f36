// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	mu     sync.Mutex
	cached *DeckhandConfig
)

// Load reads the default config file (~/.deckhand/deckhand.yaml),
// creating it from DefaultConfig on first run, then applies DECKHAND_*
// environment overrides. The result is cached; subsequent calls return
// the same value.
func Load() (*DeckhandConfig, error) {
	mu.Lock()
	defer mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	cfg, err := LoadFile("")
	if err != nil {
		return nil, err
	}
	cached = cfg
	return cfg, nil
}

// LoadFile reads and parses the config file at path without caching.
// An empty path means the default location.
func LoadFile(path string) (*DeckhandConfig, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not find the user's home directory: %w", err)
		}
		path = filepath.Join(home, ".deckhand", "deckhand.yaml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}

	var cfg DeckhandConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides layers DECKHAND_* environment variables over the
// file values. Only scalar settings can be overridden; the service map
// comes from the file alone.
func applyEnvOverrides(cfg *DeckhandConfig) {
	v := viper.New()
	v.SetEnvPrefix("DECKHAND")
	for _, key := range []string{"registry", "compose_file", "data_dir", "log_dir", "engine"} {
		// BindEnv maps e.g. "compose_file" to DECKHAND_COMPOSE_FILE.
		_ = v.BindEnv(key)
	}

	if s := v.GetString("registry"); s != "" {
		cfg.Registry = s
	}
	if s := v.GetString("compose_file"); s != "" {
		cfg.ComposeFile = s
	}
	if s := v.GetString("data_dir"); s != "" {
		cfg.DataDir = s
	}
	if s := v.GetString("log_dir"); s != "" {
		cfg.LogDir = s
	}
	if s := v.GetString("engine"); s != "" {
		cfg.Engine.Binary = s
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
