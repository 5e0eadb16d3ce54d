// Package config loads the gridsub tool configuration from YAML.
// Flattened into a single struct rather than nested sections.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gridsub/gridsub/pkg/errors"
)

// Config holds process-wide settings. Per-submission settings (resource
// requests, log locations, store directories) live in the manifest; this
// covers the defaults and the paths to external collaborators.
type Config struct {
	// StorePrefix is the mount point of the distributed store
	StorePrefix string `yaml:"store_prefix"`

	// WorkerScript is the wrapper executed on the worker node; the submit
	// descriptor points its executable line here
	WorkerScript string `yaml:"worker_script"`

	// SubmitTemplate optionally overrides the built-in submit descriptor
	// template
	SubmitTemplate string `yaml:"submit_template"`

	// Default resource request, used when a manifest group leaves them unset
	DefaultCPUs   int    `yaml:"default_cpus"`
	DefaultMemory string `yaml:"default_memory"`
	DefaultDisk   string `yaml:"default_disk"`

	// StatusUpdatePeriod is the refresh period in seconds written to
	// NODE_STATUS_FILE directives
	StatusUpdatePeriod int `yaml:"status_update_period"`

	// SubmitsPerInterval throttles how many DAG node submissions the
	// scheduler performs per interval
	SubmitsPerInterval int `yaml:"submits_per_interval"`

	// Binaries for the external collaborators
	SubmitCommand    string `yaml:"submit_command"`
	SubmitDAGCommand string `yaml:"submit_dag_command"`
	StoreCommand     string `yaml:"store_command"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		StorePrefix:        "/hdfs",
		WorkerScript:       "/usr/local/libexec/gridsub/grid_worker.py",
		DefaultCPUs:        1,
		DefaultMemory:      "100MB",
		DefaultDisk:        "100MB",
		StatusUpdatePeriod: 30,
		SubmitsPerInterval: 10,
		SubmitCommand:      "condor_submit",
		SubmitDAGCommand:   "condor_submit_dag",
		StoreCommand:       "hadoop",
		LogLevel:           "INFO",
	}
}

// searchPaths lists the locations probed when no explicit path is given,
// in priority order.
func searchPaths() []string {
	paths := []string{"gridsub-config.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".gridsub", "config.yml"))
	}
	paths = append(paths, "/etc/gridsub/config.yml")
	return paths
}

// Load reads the configuration from the given path, or from the first
// existing search location when path is empty. A missing file is not an
// error when no explicit path was requested; defaults are returned.
// Returns the effective config and the path it was loaded from ("" for
// pure defaults).
func Load(path string) (*Config, string, error) {
	cfg := Defaults()

	if path == "" {
		for _, candidate := range searchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return cfg, "", nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.NewConfigError("gridsub", "", fmt.Errorf("reading %s: %v", path, err))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", errors.NewConfigError("gridsub", "", fmt.Errorf("parsing %s: %v", path, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// Validate checks field values that would otherwise fail far from the
// config that caused them.
func (c *Config) Validate() error {
	if c.StorePrefix == "" || c.StorePrefix == "." {
		return errors.NewConfigError("gridsub", "store_prefix", fmt.Errorf("must not be blank"))
	}
	if !filepath.IsAbs(c.StorePrefix) {
		return errors.NewConfigError("gridsub", "store_prefix", fmt.Errorf("must be absolute, got %q", c.StorePrefix))
	}
	if c.DefaultCPUs < 1 {
		return errors.NewConfigError("gridsub", "default_cpus", fmt.Errorf("must be >= 1, got %d", c.DefaultCPUs))
	}
	if c.StatusUpdatePeriod < 1 {
		return errors.NewConfigError("gridsub", "status_update_period", fmt.Errorf("must be >= 1, got %d", c.StatusUpdatePeriod))
	}
	if c.SubmitsPerInterval < 1 {
		return errors.NewConfigError("gridsub", "submits_per_interval", fmt.Errorf("must be >= 1, got %d", c.SubmitsPerInterval))
	}
	return nil
}
