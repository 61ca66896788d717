package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMavenRepo    = "https://genesis.ugent.be/maven2/"
	DefaultCheckTimeout = 30 * time.Second
	DefaultMemoryMB     = 4096
)

// Config holds the user preferences: where each tool is installed and how
// searches are run.
type Config struct {
	// Install folder per advocate id, e.g. comet: /opt/comet
	Tools map[string]string `yaml:"tools,omitempty"`

	// Java executable used for JVM hosted tools. Empty means discover it.
	Java string `yaml:"java,omitempty"`

	// Heap size handed to JVM hosted tools.
	MemoryMB int `yaml:"memory_mb,omitempty"`

	// Threads given to each engine process.
	Threads int `yaml:"threads,omitempty"`

	// Number of engine processes run side by side.
	Jobs int `yaml:"jobs,omitempty"`

	// Engines enabled for a search, by advocate id.
	Engines []string `yaml:"engines,omitempty"`

	OutputDir string `yaml:"output_dir,omitempty"`

	// MGF files with more spectra than this are split before searching.
	// Zero disables splitting.
	MaxSpectraPerFile int `yaml:"max_spectra_per_file,omitempty"`

	// Append reversed decoy sequences when the FASTA has none. The decoy
	// tag is a search parameter.
	CreateDecoys bool `yaml:"create_decoys,omitempty"`

	ZipResults    bool `yaml:"zip_results,omitempty"`
	PeptideShaker bool `yaml:"peptide_shaker,omitempty"`

	MavenRepo    string `yaml:"maven_repo,omitempty"`
	CheckTimeout string `yaml:"check_timeout,omitempty"`
}

// DefaultConfig returns the preferences used when no file exists.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultConfigPath is the preferences file under the user config dir.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "search-whisperer", "config.yaml")
}

// LoadConfig reads the preferences file at path. A missing file yields the
// defaults so that a first run works without any setup.
func LoadConfig(path string) (Config, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadConfigFile reads the preferences file as written, without defaults or
// environment overrides. Edit and Save this one, so that session values
// never end up in the file.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the preferences to path, creating parent folders.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyDefaults() {
	if c.Tools == nil {
		c.Tools = map[string]string{}
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = DefaultMemoryMB
	}
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.Jobs <= 0 {
		c.Jobs = 1
	}
	if len(c.Engines) == 0 {
		c.Engines = []string{"xtandem", "msgf", "comet"}
	}
	if c.MavenRepo == "" {
		c.MavenRepo = DefaultMavenRepo
	}
	if c.CheckTimeout == "" {
		c.CheckTimeout = DefaultCheckTimeout.String()
	}
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("SW_JAVA")); v != "" {
		c.Java = v
	}
	if v := strings.TrimSpace(os.Getenv("SW_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Threads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SW_MEMORY_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MemoryMB = n
		}
	}
}

// ToolDir returns the configured install folder for an advocate.
func (c Config) ToolDir(id string) (string, bool) {
	dir, ok := c.Tools[strings.ToLower(id)]
	if !ok || strings.TrimSpace(dir) == "" {
		return "", false
	}
	return dir, true
}

// SetToolDir records the install folder for an advocate.
func (c *Config) SetToolDir(id, dir string) {
	if c.Tools == nil {
		c.Tools = map[string]string{}
	}
	c.Tools[strings.ToLower(id)] = dir
}

// CheckTimeoutDuration parses CheckTimeout, falling back to the default
// on bad input.
func (c Config) CheckTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.CheckTimeout)
	if err != nil || d <= 0 {
		return DefaultCheckTimeout
	}
	return d
}
