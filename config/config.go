package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"nlu/internal/domain"
)

// Config holds all configuration for the NLU tool.
type Config struct {
	Parser    ParserConfig    `yaml:"parser"`
	Resources ResourcesConfig `yaml:"resources"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Model     ModelConfig     `yaml:"model"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ParserConfig holds intent parser settings.
type ParserConfig struct {
	Language      string `envconfig:"NLU_LANGUAGE" yaml:"language"`
	TaggingScheme string `envconfig:"NLU_TAGGING_SCHEME" yaml:"tagging_scheme"` // "io", "bio", "bilou"
	Stemming      bool   `envconfig:"NLU_STEMMING" yaml:"stemming"`
}

// ResourcesConfig locates per-language resources.
type ResourcesConfig struct {
	Dir         string `envconfig:"NLU_RESOURCES_DIR" yaml:"dir"`
	StemPattern string `envconfig:"NLU_STEM_PATTERN" yaml:"stem_pattern"`
}

// DatasetConfig selects training files when a directory is given.
type DatasetConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

type ModelConfig struct {
	Path string `envconfig:"NLU_MODEL_PATH" yaml:"path"` // empty means .nlu/model.db
}

// CacheConfig sizes the parse result cache.
type CacheConfig struct {
	Size       int `envconfig:"NLU_CACHE_SIZE" yaml:"size"`
	TTLSeconds int `envconfig:"NLU_CACHE_TTL_SECONDS" yaml:"ttl_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `envconfig:"NLU_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"NLU_LOG_FORMAT" yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Parser: ParserConfig{
			Language:      "en",
			TaggingScheme: "bio",
			Stemming:      false,
		},
		Resources: ResourcesConfig{
			Dir:         "resources",
			StemPattern: "top_*_verbs_conjugated.txt",
		},
		Dataset: DatasetConfig{
			Includes: []string{"**/*.json"},
			Excludes: []string{"**/.nlu/**", "**/node_modules/**", "**/.git/**"},
		},
		Cache: CacheConfig{
			Size:       256,
			TTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for nlu.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "nlu.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".nlu", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Defaults plus environment
	return Load(filepath.Join(dir, "nlu.yaml"))
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := c.Scheme(); err != nil {
		return err
	}
	if c.Parser.Language == "" {
		return fmt.Errorf("parser.language must be set")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative")
	}
	return nil
}

// Scheme returns the configured tagging scheme.
func (c *Config) Scheme() (domain.TaggingScheme, error) {
	return domain.ParseTaggingScheme(c.Parser.TaggingScheme)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ModelDBPath returns the model database path for a project directory.
func (c *Config) ModelDBPath(dir string) string {
	if c.Model.Path != "" {
		if filepath.IsAbs(c.Model.Path) {
			return c.Model.Path
		}
		return filepath.Join(dir, c.Model.Path)
	}
	return ModelDBPath(dir)
}

// ModelDBPath returns the default path to the model database.
func ModelDBPath(dir string) string {
	return filepath.Join(dir, ".nlu", "model.db")
}

// EnsureNLUDir ensures the .nlu directory exists.
func EnsureNLUDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".nlu"), 0755)
}
