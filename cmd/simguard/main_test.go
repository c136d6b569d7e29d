package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "simguard dev" {
		t.Fatalf("unexpected version output %q", got)
	}
}

func TestServeRejectsBadConfig(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"serve", "--log-level", "shout"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("expected log.level error, got %v", err)
	}
}
