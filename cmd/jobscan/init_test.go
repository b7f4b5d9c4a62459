package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitCmdCreatesConfigFile(t *testing.T) {
	t.Parallel()

	outPath := filepath.Join(t.TempDir(), ".jobscan.yml")

	var buf bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"-o", outPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	content, err := os.ReadFile(outPath) //nolint:gosec // Test-controlled path
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if !strings.Contains(string(content), "max_requests_per_hour") {
		t.Error("expected template to document max_requests_per_hour")
	}
	if !strings.Contains(string(content), "JOBSCAN_LI_AT") {
		t.Error("expected template to point at the session cookie env var")
	}

	// The template must stay valid YAML even with every setting
	// commented out.
	var decoded map[string]any
	if err := yaml.Unmarshal(content, &decoded); err != nil {
		t.Errorf("template is not valid YAML: %v", err)
	}

	if !strings.Contains(buf.String(), outPath) {
		t.Errorf("expected output to mention %q, got %q", outPath, buf.String())
	}
}

func TestInitCmdRefusesOverwrite(t *testing.T) {
	t.Parallel()

	outPath := filepath.Join(t.TempDir(), ".jobscan.yml")
	if err := os.WriteFile(outPath, []byte("data_dir: /keep/me\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := NewInitCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"-o", outPath})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error when the config file already exists")
	}

	content, err := os.ReadFile(outPath) //nolint:gosec // Test-controlled path
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "data_dir: /keep/me\n" {
		t.Error("existing file must not be touched without --force")
	}
}

func TestInitCmdForceOverwrites(t *testing.T) {
	t.Parallel()

	outPath := filepath.Join(t.TempDir(), ".jobscan.yml")
	if err := os.WriteFile(outPath, []byte("old"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := NewInitCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"-o", outPath, "-f"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	content, err := os.ReadFile(outPath) //nolint:gosec // Test-controlled path
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) == "old" {
		t.Error("expected --force to overwrite the existing file")
	}
}

func TestInitCmdCreatesParentDirectories(t *testing.T) {
	t.Parallel()

	outPath := filepath.Join(t.TempDir(), "nested", "dir", "config.yml")

	cmd := NewInitCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"-o", outPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("expected config file at %s: %v", outPath, err)
	}
}
