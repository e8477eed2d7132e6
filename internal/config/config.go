// Package config loads methodmap settings from a YAML file, a .env file
// and METHODMAP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/methodmap/internal/pairing"
	"github.com/phobologic/methodmap/internal/resolve"
	"github.com/phobologic/methodmap/internal/telemetry"
)

// DefaultFile is the config file looked up in the working directory when
// no path is given.
const DefaultFile = ".methodmap.yaml"

// ErrUnknownFormat is returned for an unsupported summary format.
var ErrUnknownFormat = errors.New("unknown output format")

// Config is the complete run configuration.
type Config struct {
	Input struct {
		SourceSuffix   string `yaml:"source_suffix"`
		CompiledSuffix string `yaml:"compiled_suffix"`
		MaxFileSize    int64  `yaml:"max_file_size"`
		Workers        int    `yaml:"workers"` // 0 means GOMAXPROCS
		// RespectGitignore skips documents that git ignores.
		RespectGitignore bool `yaml:"respect_gitignore"`
	} `yaml:"input"`
	Resolve struct {
		ObjectTypes []string `yaml:"object_types"`
	} `yaml:"resolve"`
	Pairing struct {
		TestMarkers []string `yaml:"test_markers"`
	} `yaml:"pairing"`
	Output struct {
		Dir         string `yaml:"dir"`
		MappingFile string `yaml:"mapping_file"`
		GraphFile   string `yaml:"callgraph_file"`
		PairingFile string `yaml:"pairings_file"`
		Format      string `yaml:"format"` // summary format: toon or json
		Top         int    `yaml:"top"`
	} `yaml:"output"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var c Config
	c.Input.SourceSuffix = ".source.json"
	c.Input.CompiledSuffix = ".compiled.json"
	c.Input.MaxFileSize = 10 * 1024 * 1024
	c.Resolve.ObjectTypes = append([]string(nil), resolve.DefaultObjectTypes...)
	c.Pairing.TestMarkers = append([]string(nil), pairing.DefaultMarkers...)
	c.Output.Dir = "methodmap-out"
	c.Output.MappingFile = "mapping.json"
	c.Output.GraphFile = "callgraph.json"
	c.Output.PairingFile = "pairings.json"
	c.Output.Format = "toon"
	c.Output.Top = 10
	c.Log.Level = "info"
	c.Log.Format = "text"
	return &c
}

// Load builds a Config from the defaults, the YAML file at path, a .env
// file in the working directory and the environment. An empty path reads
// DefaultFile if it exists.
func Load(path string) (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from METHODMAP_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("METHODMAP_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("METHODMAP_WORKERS: %w", err)
		}
		c.Input.Workers = n
	}
	if v, ok := lookup("METHODMAP_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("METHODMAP_OUT"); ok && v != "" {
		c.Output.Dir = v
	}
	if v, ok := lookup("METHODMAP_TEST_MARKERS"); ok && v != "" {
		c.Pairing.TestMarkers = splitList(v)
	}
	return nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Input.SourceSuffix == "" || c.Input.CompiledSuffix == "":
		return errors.New("input suffixes must not be empty")
	case strings.HasSuffix(c.Input.SourceSuffix, c.Input.CompiledSuffix),
		strings.HasSuffix(c.Input.CompiledSuffix, c.Input.SourceSuffix):
		return fmt.Errorf("input suffixes %q and %q overlap", c.Input.SourceSuffix, c.Input.CompiledSuffix)
	case c.Input.MaxFileSize <= 0:
		return fmt.Errorf("max_file_size must be positive, got %d", c.Input.MaxFileSize)
	case c.Input.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Input.Workers)
	case c.Output.Top < 0:
		return fmt.Errorf("top must not be negative, got %d", c.Output.Top)
	case c.Output.Dir == "":
		return errors.New("output dir must not be empty")
	}
	if c.Output.Format != "toon" && c.Output.Format != "json" {
		return fmt.Errorf("%w %q (want toon or json)", ErrUnknownFormat, c.Output.Format)
	}
	if _, err := telemetry.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// YAML renders c as a config file.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return append([]byte("# methodmap configuration\n"), data...), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
