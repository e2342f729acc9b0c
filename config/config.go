package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the molsim service.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig describes the embedding oracle.
type ModelConfig struct {
	Provider       string `yaml:"provider"`        // "openai" (any compatible endpoint) or "mock"
	Name           string `yaml:"name"`            // model identifier sent to the endpoint
	BaseURL        string `yaml:"base_url"`        // endpoint base, e.g. http://localhost:8080/v1
	APIKeyEnv      string `yaml:"api_key_env"`     // environment variable holding the API key
	Dimension      int    `yaml:"dimension"`       // native embedding dimension
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-call inference timeout
}

// Timeout returns the model call timeout as a duration.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// IndexConfig describes the logical index: supported dimensions (descending,
// all at most the native dimension) and HNSW tuning parameters.
type IndexConfig struct {
	Name           string `yaml:"name"`
	KeyPrefix      string `yaml:"key_prefix"`
	Dimensions     []int  `yaml:"dimensions"`
	M              int    `yaml:"m"`
	EFConstruction int    `yaml:"ef_construction"`
	EFRuntime      int    `yaml:"ef_runtime"`
	InitialCap     int    `yaml:"initial_cap"`
	Metric         string `yaml:"metric"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Workers  int      `yaml:"workers"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// StoreConfig holds backing store connection settings.
type StoreConfig struct {
	Path         string `yaml:"path"`
	MaxRetries   int    `yaml:"max_retries"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
}

// RetryDelay returns the base delay of the startup retry loop.
func (s StoreConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMS) * time.Millisecond
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:       "mock",
			Name:           "Derify/Chem-MRL-alpha",
			BaseURL:        "http://localhost:8080/v1",
			APIKeyEnv:      "MOLSIM_API_KEY",
			Dimension:      1024,
			TimeoutSeconds: 60,
		},
		Index: IndexConfig{
			Name:           "molecule_embeddings",
			KeyPrefix:      "mol:",
			Dimensions:     []int{1024, 768, 512, 256, 128, 64, 32, 16, 8, 4, 2},
			M:              8,
			EFConstruction: 100,
			EFRuntime:      10,
			InitialCap:     100,
			Metric:         "COSINE",
		},
		Search: SearchConfig{
			DefaultK: 6,
		},
		Ingest: IngestConfig{
			Workers:  1,
			Includes: []string{"**/*.csv"},
			Excludes: []string{"**/.*/**"},
		},
		Store: StoreConfig{
			Path:         "",
			MaxRetries:   5,
			RetryDelayMS: 500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Model.Dimension <= 0 {
		return fmt.Errorf("model dimension must be positive, got %d", c.Model.Dimension)
	}
	if len(c.Index.Dimensions) == 0 {
		return fmt.Errorf("at least one supported dimension is required")
	}
	for _, d := range c.Index.Dimensions {
		if d <= 0 {
			return fmt.Errorf("supported dimension must be positive, got %d", d)
		}
		if d > c.Model.Dimension {
			return fmt.Errorf("supported dimension %d exceeds model dimension %d", d, c.Model.Dimension)
		}
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("default_k must be positive, got %d", c.Search.DefaultK)
	}
	if c.Store.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.Store.MaxRetries)
	}
	if c.Store.RetryDelayMS <= 0 {
		return fmt.Errorf("retry_delay_ms must be positive, got %d", c.Store.RetryDelayMS)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for molsim.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "molsim.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".molsim", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath returns the configured store path, defaulting to
// .molsim/index.db under dir.
func (c *Config) StorePath(dir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(dir, ".molsim", "index.db")
}

// EnsureDataDir ensures the .molsim directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".molsim"), 0755)
}
