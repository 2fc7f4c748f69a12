package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the dokindex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
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

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey               string  `yaml:"api_key"`
	BaseURL              string  `yaml:"base_url"`
	Model                string  `yaml:"model"`
	Dimensions           int     `yaml:"dimensions"`
	MaxBatchSize         int     `yaml:"max_batch_size"`
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"`
	MaxRetries           int     `yaml:"max_retries"`
	RetryBaseDelayMs     int     `yaml:"retry_base_delay_ms"`
	RequestTimeoutSec    int     `yaml:"request_timeout_sec"`
}

// ChunkingConfig holds text chunking settings.
type ChunkingConfig struct {
	ChunkSize          int  `yaml:"chunk_size"`
	ChunkOverlap       int  `yaml:"chunk_overlap"`
	MinChunkSize       int  `yaml:"min_chunk_size"`
	PreserveParagraphs bool `yaml:"preserve_paragraphs"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	MaxSources   int `yaml:"max_sources"`
	DefaultLimit int `yaml:"default_limit"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	Workers            int `yaml:"workers"`
	DownloadTimeoutSec int `yaml:"download_timeout_sec"`
	MaxFileSizeMB      int `yaml:"max_file_size_mb"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// StorageConfig holds storage settings.
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
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 100
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.RetryBaseDelayMs <= 0 {
		c.Embedding.RetryBaseDelayMs = 500
	}
	if c.Embedding.RequestTimeoutSec <= 0 {
		c.Embedding.RequestTimeoutSec = 30
	}
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 1000
	}
	if c.Chunking.ChunkOverlap <= 0 {
		c.Chunking.ChunkOverlap = 200
	}
	if c.Chunking.MinChunkSize <= 0 {
		c.Chunking.MinChunkSize = 100
	}
	if c.Retrieval.MaxSources <= 0 {
		c.Retrieval.MaxSources = 5
	}
	if c.Retrieval.DefaultLimit <= 0 {
		c.Retrieval.DefaultLimit = 5
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.DownloadTimeoutSec <= 0 {
		c.Ingest.DownloadTimeoutSec = 60
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		c.Ingest.MaxFileSizeMB = 50
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "dokindex:"
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
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf(
			"chunking.chunk_overlap (%d) must be smaller than chunking.chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize,
		)
	}
	if c.Chunking.MinChunkSize > c.Chunking.ChunkSize {
		return fmt.Errorf(
			"chunking.min_chunk_size (%d) must not exceed chunking.chunk_size (%d)",
			c.Chunking.MinChunkSize, c.Chunking.ChunkSize,
		)
	}
	if c.Embedding.MaxBatchSize > 100 {
		return fmt.Errorf("embedding.max_batch_size must not exceed 100, got %d", c.Embedding.MaxBatchSize)
	}
	return nil
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
