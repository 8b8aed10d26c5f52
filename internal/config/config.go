package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/domain/search/scale"
)

// Config holds the semsearch API configuration.
type Config struct {
	HTTP        HTTPConfig         `yaml:"http"`
	Database    DatabaseConfig     `yaml:"database"`
	Embedding   EmbeddingConfig    `yaml:"embedding"`
	Cache       CacheConfig        `yaml:"cache"`
	Search      SearchConfig       `yaml:"search"`
	Index       IndexConfig        `yaml:"index"`
	Collections []CollectionConfig `yaml:"collections"`
	Storage     StorageConfig      `yaml:"storage"`
	Auth        AuthConfig         `yaml:"auth"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the vector index backend connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // label for logs/metrics (default: openai)
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	MaxInputChars int    `yaml:"max_input_chars"` // longer inputs are truncated, not rejected
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Capacity int `yaml:"capacity"` // LRU entries, fixed at startup
}

// SearchConfig holds cross-collection search policy settings.
type SearchConfig struct {
	CollectionTimeoutMS int     `yaml:"collection_timeout_ms"`
	DefaultThreshold    float64 `yaml:"default_threshold"` // used by collections without their own
}

// IndexConfig holds HNSW index parameters.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// CollectionConfig describes one searchable collection.
type CollectionConfig struct {
	Name             string   `yaml:"name"`
	Kind             string   `yaml:"kind"`  // document, entity, relationship
	Scale            string   `yaml:"scale"` // native score scale of the backend
	DefaultThreshold *float64 `yaml:"default_threshold"`
	Filterable       []string `yaml:"filterable"` // metadata keys filters may match on
}

// StorageConfig holds key namespace settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 3000
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 1000
	}
	if c.Search.CollectionTimeoutMS <= 0 {
		c.Search.CollectionTimeoutMS = 300
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "semsearch:"
	}
	if len(c.Collections) == 0 {
		c.Collections = defaultCollections()
	}
	for i := range c.Collections {
		if c.Collections[i].Scale == "" {
			c.Collections[i].Scale = string(scale.CosineDistance)
		}
	}
}

// defaultCollections covers the archive's three item kinds out of the box.
func defaultCollections() []CollectionConfig {
	return []CollectionConfig{
		{Name: "documents", Kind: string(domain.KindDocument), Filterable: []string{"type", "source", "classification"}},
		{Name: "entities", Kind: string(domain.KindEntity), Filterable: []string{"type", "source"}},
		{Name: "relationships", Kind: string(domain.KindRelationship), Filterable: []string{"type"}},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}

	seen := make(map[string]struct{}, len(c.Collections))
	kinds := make(map[string]struct{}, len(c.Collections))
	for i, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("collections[%d].name is required", i)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("duplicate collection name %q", col.Name)
		}
		seen[col.Name] = struct{}{}

		if !domain.Kind(col.Kind).IsValid() {
			return fmt.Errorf("collections[%d].kind must be document, entity or relationship, got %q", i, col.Kind)
		}
		if _, dup := kinds[col.Kind]; dup {
			return fmt.Errorf("more than one collection for kind %q", col.Kind)
		}
		kinds[col.Kind] = struct{}{}

		if _, err := scale.Parse(col.Scale); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
		if col.DefaultThreshold != nil && (*col.DefaultThreshold < 0 || *col.DefaultThreshold > 1) {
			return fmt.Errorf("collections[%d].default_threshold must be in [0,1]", i)
		}
	}

	if c.Search.DefaultThreshold < 0 || c.Search.DefaultThreshold > 1 {
		return fmt.Errorf("search.default_threshold must be in [0,1]")
	}

	return nil
}

// Threshold returns the effective default similarity threshold for a collection.
func (c *Config) Threshold(col CollectionConfig) float64 {
	if col.DefaultThreshold != nil {
		return *col.DefaultThreshold
	}
	return c.Search.DefaultThreshold
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
