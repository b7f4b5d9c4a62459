package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRebuildCmdEmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	cmd := NewRebuildCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--data-dir", t.TempDir()})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(buf.String(), "0 listings") {
		t.Errorf("expected empty rebuild summary, got %q", buf.String())
	}
}

func TestRebuildCmdReplaysLedger(t *testing.T) {
	dataDir := t.TempDir()
	seedLedger(t, dataDir)

	var buf bytes.Buffer
	cmd := NewRebuildCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--data-dir", dataDir})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "3 listings (1 scraped, 2 unscraped)") {
		t.Errorf("expected rebuild summary with counts, got %q", output)
	}
}

func TestRebuildCmdIsIdempotent(t *testing.T) {
	dataDir := t.TempDir()
	seedLedger(t, dataDir)

	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		cmd := NewRebuildCmd()
		cmd.SetOut(&buf)
		cmd.SetErr(&buf)
		cmd.SetArgs([]string{"--data-dir", dataDir})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute() run %d error = %v", i+1, err)
		}
		if !strings.Contains(buf.String(), "3 listings (1 scraped, 2 unscraped)") {
			t.Errorf("run %d: expected identical counts, got %q", i+1, buf.String())
		}
	}
}
