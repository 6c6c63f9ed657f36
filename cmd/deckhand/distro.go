// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/AleutianAI/deckhand/pkg/logging"
)

// Distro is the closed set of distribution families the console knows
// how to drive a package manager for. Keeping this a closed type makes
// "unsupported distro" an explicit DistroUnknown case instead of a
// silent default branch.
type Distro int

const (
	DistroUnknown Distro = iota
	DistroFedora
	DistroRHEL
	DistroCentOS
	DistroUbuntu
	DistroDebian
	DistroArch
)

// String returns the lowercase distribution identifier.
func (d Distro) String() string {
	switch d {
	case DistroFedora:
		return "fedora"
	case DistroRHEL:
		return "rhel"
	case DistroCentOS:
		return "centos"
	case DistroUbuntu:
		return "ubuntu"
	case DistroDebian:
		return "debian"
	case DistroArch:
		return "arch"
	default:
		return "unknown"
	}
}

// distroByID maps normalized os-release ID values to the closed set.
var distroByID = map[string]Distro{
	"fedora": DistroFedora,
	"rhel":   DistroRHEL,
	"centos": DistroCentOS,
	"ubuntu": DistroUbuntu,
	"debian": DistroDebian,
	"arch":   DistroArch,
}

// osReleasePath is the conventional host identification file.
const osReleasePath = "/etc/os-release"

// fallbackDistro is used when the identification file cannot be read.
// The deployment this console ships with targets Fedora hosts.
const fallbackDistro = DistroFedora

// DetectDistro reads the os-release key-value file at path (empty means
// /etc/os-release), extracts the ID field, and maps it to the closed
// distribution set. An unreadable file logs one warning and returns the
// fixed fallback; a readable file with an unrecognized ID returns
// DistroUnknown, which downgrades package operations to logged no-ops.
func DetectDistro(path string, logger *logging.Logger) Distro {
	if path == "" {
		path = osReleasePath
	}
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("host identification file unavailable, assuming fallback distribution",
			"path", path, "fallback", fallbackDistro.String())
		return fallbackDistro
	}
	defer file.Close()

	id := ""
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "ID=") {
			continue
		}
		id = strings.Trim(strings.TrimPrefix(line, "ID="), `"'`)
		id = strings.ToLower(strings.TrimSpace(id))
		break
	}

	distro, ok := distroByID[id]
	if !ok {
		logger.Warn("unrecognized distribution id", "id", id)
		return DistroUnknown
	}
	logger.Info("detected distribution", "id", distro.String())
	return distro
}

// -----------------------------------------------------------------------------
// Package Manager Strategy Table
// -----------------------------------------------------------------------------

// pkgCommands holds the per-family package manager invocations. Argv
// values exclude the sudo prefix; the privileged runner adds it.
type pkgCommands struct {
	// check queries for available updates. checkExitMap declares the
	// documented exit-code exceptions: dnf check-update exits 100 when
	// updates are available and 0 when none; pacman -Qu exits 1 when
	// there is nothing to upgrade.
	check        []string
	checkExitMap map[int]OutcomeState

	// checkNoChange reclassifies a successful check as no-change when
	// its output contains this marker. apt exits 0 either way, so the
	// simulation summary line is the only pending-updates signal.
	checkNoChange string

	// refresh optionally runs before check (apt needs its index
	// refreshed before any upgrade query is meaningful).
	refresh []string

	// upgrade applies all pending updates unattended.
	upgrade []string

	// installEngine installs the container engine packages.
	installEngine []string
}

// pkgTable is the strategy table keyed by distribution family.
// DistroUnknown is deliberately absent: lookups must treat a missing
// entry as "log a warning, do nothing".
var pkgTable = map[Distro]pkgCommands{
	DistroFedora: {
		check:         []string{"dnf", "check-update", "--refresh"},
		checkExitMap:  map[int]OutcomeState{0: StateNoChange, 100: StateSuccess},
		upgrade:       []string{"dnf", "-y", "upgrade"},
		installEngine: []string{"dnf", "-y", "install", "docker", "docker-compose"},
	},
	DistroRHEL: {
		check:         []string{"dnf", "check-update", "--refresh"},
		checkExitMap:  map[int]OutcomeState{0: StateNoChange, 100: StateSuccess},
		upgrade:       []string{"dnf", "-y", "upgrade"},
		installEngine: []string{"dnf", "-y", "install", "docker", "docker-compose"},
	},
	DistroCentOS: {
		check:         []string{"dnf", "check-update", "--refresh"},
		checkExitMap:  map[int]OutcomeState{0: StateNoChange, 100: StateSuccess},
		upgrade:       []string{"dnf", "-y", "upgrade"},
		installEngine: []string{"dnf", "-y", "install", "docker", "docker-compose"},
	},
	DistroUbuntu: {
		refresh:       []string{"apt-get", "update", "-q"},
		check:         []string{"apt-get", "-s", "-q", "upgrade"},
		checkNoChange: "0 upgraded, 0 newly installed",
		upgrade:       []string{"apt-get", "-y", "upgrade"},
		installEngine: []string{"apt-get", "-y", "install", "docker.io", "docker-compose-v2"},
	},
	DistroDebian: {
		refresh:       []string{"apt-get", "update", "-q"},
		check:         []string{"apt-get", "-s", "-q", "upgrade"},
		checkNoChange: "0 upgraded, 0 newly installed",
		upgrade:       []string{"apt-get", "-y", "upgrade"},
		installEngine: []string{"apt-get", "-y", "install", "docker.io", "docker-compose-v2"},
	},
	DistroArch: {
		check:         []string{"pacman", "-Qu"},
		checkExitMap:  map[int]OutcomeState{0: StateSuccess, 1: StateNoChange},
		upgrade:       []string{"pacman", "-Syu", "--noconfirm"},
		installEngine: []string{"pacman", "-S", "--noconfirm", "docker", "docker-compose"},
	},
}

// commandsFor returns the package manager strategy for a distribution,
// with ok=false for DistroUnknown or anything not in the table.
func commandsFor(d Distro) (pkgCommands, bool) {
	cmds, ok := pkgTable[d]
	return cmds, ok
}
