/*
DESCRIPTION
  config.go loads driver configuration for cmd/avifdump and
  cmd/avifwatch, grounded on ausocean-av/revid/config/config.go's
  shape: a flat struct of option fields plus a Logger/LogLevel pair and
  an Update-style loader — here Load, reading a YAML file via
  gopkg.in/yaml.v3 instead of revid's vars-map-from-netsender Update,
  since this driver has no netsender control channel to poll. Load
  fills unset fields with defaults without logging; Validate only
  rejects unrecognized values.
*/

// Package config is this module's driver-facing configuration loader.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/coral-imaging/avifcore/internal/obslog"
)

// OutputFormat selects what cmd/avifdump prints after a decode.
type OutputFormat string

const (
	OutputSummary OutputFormat = "summary" // human-readable one-line-per-field report
	OutputJSON    OutputFormat = "json"    // structured report, one JSON object per input
)

// Config holds the options shared by this module's drivers. Fields are
// tagged for gopkg.in/yaml.v3 so a config file and command-line flags
// can populate the same struct.
type Config struct {
	// OutputFormat selects cmd/avifdump's report shape.
	OutputFormat OutputFormat `yaml:"output_format"`

	// LogPath routes structured logs through a rotating file sink
	// instead of stderr when set.
	LogPath string `yaml:"log_path"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	// ProbeOnly decodes only as far as required to validate the
	// bitstream's tile syntax (no trailing exit_symbol check), matching
	// internal/tile.Options.ProbeTryExitSymbol's negation.
	ProbeOnly bool `yaml:"probe_only"`

	// DisableCdfUpdate freezes every tile's CDFs, matching
	// internal/tile.Options.DisableCdfUpdate.
	DisableCdfUpdate bool `yaml:"disable_cdf_update"`

	// WatchDir is the directory cmd/avifwatch watches for new .avif
	// files.
	WatchDir string `yaml:"watch_dir"`

	// WatchDebounceMS is how long, in milliseconds, cmd/avifwatch waits
	// after a file's last write event before decoding it, avoiding a
	// double-decode from an editor or copy tool's multiple write
	// syscalls.
	WatchDebounceMS int `yaml:"watch_debounce_ms"`

	Logger obslog.Logger `yaml:"-"`
}

// Load reads a YAML config file at path into a zero-valued Config, then
// applies defaults via defaulted. A missing path is not an error: Load
// returns the all-defaults Config a flag-only invocation would want.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return c.defaulted(), nil
			}
			return nil, errors.Wrapf(err, "config: reading %s", path)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrapf(err, "config: parsing %s", path)
		}
	}
	return c.defaulted(), nil
}

// defaulted fills any zero-valued field with its default, mirroring
// revid/config.Config.Validate's per-field defaulting.
func (c *Config) defaulted() *Config {
	if c.OutputFormat == "" {
		c.OutputFormat = OutputSummary
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.WatchDebounceMS == 0 {
		c.WatchDebounceMS = 500
	}
	return c
}

// Validate reports any field combinations that don't make sense
// together. Defaulting happens unconditionally in Load; Validate only
// catches what defaulting can't fix.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case OutputSummary, OutputJSON:
	default:
		return errors.Errorf("config: unrecognized output_format %q", c.OutputFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("config: unrecognized log_level %q", c.LogLevel)
	}
	return nil
}
