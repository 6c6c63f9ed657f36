// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/deckhand/pkg/logging"
)

// newTestLogger returns a silent logger and its capture buffer.
func newTestLogger(t *testing.T) (*logging.Logger, *logging.BufferedExporter) {
	t.Helper()
	exporter := logging.NewBufferedExporter()
	logger := logging.New(logging.Config{Quiet: true, Exporter: exporter})
	t.Cleanup(func() { logger.Close() })
	return logger, exporter
}

// writeOSRelease writes an os-release style file into a temp dir.
func writeOSRelease(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing os-release fixture: %v", err)
	}
	return path
}

func TestDetectDistro_KnownIDs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Distro
	}{
		{
			name:    "fedora unquoted",
			content: "NAME=\"Fedora Linux\"\nID=fedora\nVERSION_ID=40\n",
			want:    DistroFedora,
		},
		{
			name:    "ubuntu double quoted",
			content: "NAME=\"Ubuntu\"\nID=\"ubuntu\"\n",
			want:    DistroUbuntu,
		},
		{
			name:    "arch",
			content: "NAME=\"Arch Linux\"\nID=arch\nBUILD_ID=rolling\n",
			want:    DistroArch,
		},
		{
			name:    "debian single quoted",
			content: "ID='debian'\n",
			want:    DistroDebian,
		},
		{
			name:    "rhel",
			content: "ID=\"rhel\"\nID_LIKE=\"fedora\"\n",
			want:    DistroRHEL,
		},
		{
			name:    "centos",
			content: "ID=\"centos\"\nID_LIKE=\"rhel fedora\"\n",
			want:    DistroCentOS,
		},
		{
			name:    "uppercase id is normalized",
			content: "ID=Fedora\n",
			want:    DistroFedora,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger(t)
			path := writeOSRelease(t, tt.content)
			if got := DetectDistro(path, logger); got != tt.want {
				t.Errorf("DetectDistro() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectDistro_UnknownID(t *testing.T) {
	logger, exporter := newTestLogger(t)
	path := writeOSRelease(t, "ID=gentoo\n")

	if got := DetectDistro(path, logger); got != DistroUnknown {
		t.Errorf("DetectDistro() = %v, want DistroUnknown", got)
	}
	if n := exporter.CountLevel(logging.LevelWarn); n != 1 {
		t.Errorf("warn count = %d, want 1", n)
	}
}

// TestDetectDistro_MissingFile verifies the fixed fallback with exactly
// one warning when the identification file cannot be read.
func TestDetectDistro_MissingFile(t *testing.T) {
	logger, exporter := newTestLogger(t)
	path := filepath.Join(t.TempDir(), "does-not-exist")

	if got := DetectDistro(path, logger); got != fallbackDistro {
		t.Errorf("DetectDistro() = %v, want fallback %v", got, fallbackDistro)
	}
	if n := exporter.CountLevel(logging.LevelWarn); n != 1 {
		t.Errorf("warn count = %d, want exactly 1", n)
	}
}

// TestDetectDistro_IDLikeIgnored verifies only the ID field is read,
// not ID_LIKE appearing earlier in the file.
func TestDetectDistro_IDLikeIgnored(t *testing.T) {
	logger, _ := newTestLogger(t)
	path := writeOSRelease(t, "ID_LIKE=\"rhel fedora\"\nID=centos\n")

	if got := DetectDistro(path, logger); got != DistroCentOS {
		t.Errorf("DetectDistro() = %v, want DistroCentOS", got)
	}
}

func TestDistro_String(t *testing.T) {
	tests := []struct {
		distro Distro
		want   string
	}{
		{DistroFedora, "fedora"},
		{DistroArch, "arch"},
		{DistroUnknown, "unknown"},
		{Distro(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.distro.String(); got != tt.want {
			t.Errorf("Distro(%d).String() = %q, want %q", tt.distro, got, tt.want)
		}
	}
}

// TestPkgTable_ExitMaps pins the documented package manager exit code
// exceptions.
func TestPkgTable_ExitMaps(t *testing.T) {
	fedora, ok := commandsFor(DistroFedora)
	if !ok {
		t.Fatal("no commands for fedora")
	}
	if fedora.checkExitMap[100] != StateSuccess {
		t.Error("dnf check-update 100 should mean updates available")
	}
	if fedora.checkExitMap[0] != StateNoChange {
		t.Error("dnf check-update 0 should mean nothing to do")
	}

	arch, ok := commandsFor(DistroArch)
	if !ok {
		t.Fatal("no commands for arch")
	}
	if arch.checkExitMap[1] != StateNoChange {
		t.Error("pacman -Qu 1 should mean nothing to do")
	}
	if arch.checkExitMap[0] != StateSuccess {
		t.Error("pacman -Qu 0 should mean updates available")
	}
}

// TestPkgTable_AptNoChangeMarker pins the output marker the apt family
// relies on, since apt-get exits 0 with or without pending updates.
func TestPkgTable_AptNoChangeMarker(t *testing.T) {
	for _, d := range []Distro{DistroUbuntu, DistroDebian} {
		cmds, ok := commandsFor(d)
		if !ok {
			t.Fatalf("no commands for %v", d)
		}
		if cmds.checkNoChange != "0 upgraded, 0 newly installed" {
			t.Errorf("%v checkNoChange = %q", d, cmds.checkNoChange)
		}
		if len(cmds.checkExitMap) != 0 {
			t.Errorf("%v must not map exit codes, apt uses output classification", d)
		}
	}
}

func TestCommandsFor_Unknown(t *testing.T) {
	if _, ok := commandsFor(DistroUnknown); ok {
		t.Error("DistroUnknown must have no package commands")
	}
}

// TestPkgTable_Complete verifies every supported family has the full
// command set.
func TestPkgTable_Complete(t *testing.T) {
	for _, d := range []Distro{DistroFedora, DistroRHEL, DistroCentOS, DistroUbuntu, DistroDebian, DistroArch} {
		cmds, ok := commandsFor(d)
		if !ok {
			t.Errorf("%v missing from pkgTable", d)
			continue
		}
		if len(cmds.check) == 0 || len(cmds.upgrade) == 0 || len(cmds.installEngine) == 0 {
			t.Errorf("%v has an incomplete command set", d)
		}
	}
}
