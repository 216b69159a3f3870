// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestParseArgsLongFlags(t *testing.T) {
	opts, err := ParseArgs([]string{"--workdir", "/tmp/w", "--host=http://h:1234", "--model", "llama3.2", "--serial", "--debug"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if opts.WorkDir != "/tmp/w" {
		t.Errorf("WorkDir = %q", opts.WorkDir)
	}
	if opts.Host != "http://h:1234" {
		t.Errorf("Host = %q", opts.Host)
	}
	if opts.Model != "llama3.2" {
		t.Errorf("Model = %q", opts.Model)
	}
	if !opts.Serial || !opts.Debug {
		t.Errorf("bool flags = %+v", opts)
	}
}

func TestParseArgsShortAliases(t *testing.T) {
	opts, err := ParseArgs([]string{"-m", "gemma3", "-w", "/tmp/x"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if opts.Model != "gemma3" || opts.WorkDir != "/tmp/x" {
		t.Errorf("opts = %+v", opts)
	}
}

func TestParseArgsMissingValue(t *testing.T) {
	if _, err := ParseArgs([]string{"--model"}); err == nil {
		t.Error("expected error for missing value")
	}
	if _, err := ParseArgs([]string{"--model", "--serial"}); err == nil {
		t.Error("expected error when value looks like a flag")
	}
}

func TestParseArgsRejectsUnknown(t *testing.T) {
	if _, err := ParseArgs([]string{"--frobnicate"}); err == nil {
		t.Error("expected error for unknown flag")
	}
	if _, err := ParseArgs([]string{"positional"}); err == nil {
		t.Error("expected error for positional argument")
	}
}

func TestParseArgsEmpty(t *testing.T) {
	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if *opts != (Options{}) {
		t.Errorf("opts = %+v, want zero value", opts)
	}
}
