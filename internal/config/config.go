// Package config loads the scrape configuration from an optional YAML file.
// CLI flags override file values, which override the defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"glean/internal/embed"
)

// Duration decodes YAML strings like "45s" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds everything one scrape invocation needs.
type Config struct {
	URL      string   `yaml:"url"`
	Prompt   string   `yaml:"prompt"`
	Selector string   `yaml:"selector"`
	Pages    int      `yaml:"pages"`
	Timeout  Duration `yaml:"timeout"`
	Output   string   `yaml:"output"`

	// Embedding is optional; it is active when an endpoint is set.
	Embedding embed.Config `yaml:"embedding"`
	IndexFile string       `yaml:"index_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pages:     3,
		Timeout:   Duration(30 * time.Second),
		Output:    "output.json",
		IndexFile: "index.bin",
	}
}

// Load reads a YAML config file over the defaults. A missing file is an
// error; callers decide whether a config file is required at all.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}
