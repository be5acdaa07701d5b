package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultMaxHistoryLength is how many builds a test history keeps unless configured.
const DefaultMaxHistoryLength = 30

// Config is the collector and report configuration of a job.
type Config struct {
	MaxHistoryLength int      `yaml:"max_history_length" toml:"max_history_length"`
	Filters          []string `yaml:"filters" toml:"filters"` // test names that are hidden instead of recorded
	BuildURL         string   `yaml:"build_url" toml:"build_url"`
	Comments         Comments `yaml:"comments" toml:"comments"`
	Notify           Notify   `yaml:"notify" toml:"notify"`
	Skip             Skip     `yaml:"skip" toml:"skip"`
}

// Comments configures the comment thread embedded in HTML reports.
type Comments struct {
	Shortname string `yaml:"shortname" toml:"shortname"` // empty disables the comment widget
}

// Notify configures who receives the regression report.
type Notify struct {
	Recipients     string `yaml:"recipients" toml:"recipients"` // comma separated
	SendToCulprits bool   `yaml:"send_to_culprits" toml:"send_to_culprits"`
}

// Skip selects builds that are not recorded, by their HEAD commit.
type Skip struct {
	Keyword   string `yaml:"keyword" toml:"keyword"`     // found anywhere in the commit message
	Committer string `yaml:"committer" toml:"committer"` // author name or email
}

// Enabled reports whether any skip rule is configured.
func (s Skip) Enabled() bool {
	return s.Keyword != "" || s.Committer != ""
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{MaxHistoryLength: DefaultMaxHistoryLength}
}

// Load reads the config file at path. Files ending in .toml are TOML,
// anything else YAML. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes data, read from source, and validates the result. The
// extension of source picks the format.
func Parse(data []byte, source string) (Config, error) {
	cfg := Default()

	if strings.EqualFold(filepath.Ext(source), ".toml") {
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse TOML in %q: %w", source, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("parse TOML in %q: unknown key %q", source, undecoded[0].String())
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse YAML in %q: %w", source, err)
		}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("invalid config in %q: %s", source, strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Validate returns every problem of cfg, or nil.
func (cfg Config) Validate() []string {
	var errs []string

	if cfg.MaxHistoryLength <= 0 {
		errs = append(errs, fmt.Sprintf("max_history_length must be positive, got %d", cfg.MaxHistoryLength))
	}
	for i, f := range cfg.Filters {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Sprintf("filters[%d] is empty", i))
		}
	}
	if cfg.Skip.Keyword != "" && strings.TrimSpace(cfg.Skip.Keyword) == "" {
		errs = append(errs, "skip.keyword must not be blank")
	}
	if strings.ContainsAny(cfg.Comments.Shortname, "/:. ") {
		errs = append(errs, fmt.Sprintf("comments.shortname %q must be a bare site name", cfg.Comments.Shortname))
	}
	for i, r := range strings.Split(cfg.Notify.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" && !strings.Contains(r, "@") {
			errs = append(errs, fmt.Sprintf("notify.recipients[%d] %q is not an email address", i, r))
		}
	}
	return errs
}

// IsFiltered reports whether testName matches one of the configured filters.
func (cfg Config) IsFiltered(testName string) bool {
	if testName == "" {
		return false
	}
	for _, f := range cfg.Filters {
		if f == testName {
			return true
		}
	}
	return false
}
