/*
DESCRIPTION
  config_test.go tests Load's defaulting and Validate's rejection of
  unrecognized values, in the style of
  ausocean-av/revid/config/config_test.go's TestValidate.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaultsWithNoPath(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := &Config{OutputFormat: OutputSummary, LogLevel: "info", WatchDebounceMS: 500}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDefaultsOnMissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load returned error for a missing file: %v", err)
	}
	if got.OutputFormat != OutputSummary {
		t.Fatalf("OutputFormat = %q, want %q", got.OutputFormat, OutputSummary)
	}
}

func TestLoadParsesYAMLAndLeavesSetFieldsAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avifcore.yaml")
	contents := "output_format: json\nprobe_only: true\nwatch_dir: /tmp/incoming\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := &Config{
		OutputFormat:    OutputJSON,
		LogLevel:        "info", // defaulted, not present in the file
		WatchDebounceMS: 500,    // defaulted
		ProbeOnly:       true,
		WatchDir:        "/tmp/incoming",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Load(%s) mismatch (-want +got):\n%s", path, diff)
	}
}

func TestValidateRejectsUnrecognizedOutputFormat(t *testing.T) {
	c := &Config{OutputFormat: "xml", LogLevel: "info"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected Validate to reject output_format %q", c.OutputFormat)
	}
}

func TestValidateRejectsUnrecognizedLogLevel(t *testing.T) {
	c := &Config{OutputFormat: OutputSummary, LogLevel: "verbose"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected Validate to reject log_level %q", c.LogLevel)
	}
}

func TestValidateAcceptsDefaultedConfig(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate rejected a freshly defaulted config: %v", err)
	}
}
