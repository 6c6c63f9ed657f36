// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestRootCmd_UnknownFlagPrintsUsage verifies an unrecognized flag is
// rejected with the usage text, not a bare error line.
func TestRootCmd_UnknownFlagPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"--bogus"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown flag") {
		t.Fatalf("Execute() = %v, want an unknown flag error", err)
	}

	combined := out.String() + errOut.String()
	if !strings.Contains(combined, "Usage:") {
		t.Errorf("output %q missing the usage text", combined)
	}
	if !strings.Contains(combined, "unknown flag: --bogus") {
		t.Errorf("output %q missing the flag error", combined)
	}
}

// TestRootCmd_FlagsRegistered pins the console's flag surface.
func TestRootCmd_FlagsRegistered(t *testing.T) {
	for _, name := range []string{"non-interactive", "config", "verbose"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}
}
