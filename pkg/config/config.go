package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for datapilot-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, database passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Embedding holds the embedding endpoint settings.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Matcher holds entity matching settings.
	Matcher MatcherConfig `yaml:"matcher"`

	// Executor holds SQL execution settings.
	Executor ExecutorConfig `yaml:"executor"`

	// Vector holds vector index settings.
	Vector VectorConfig `yaml:"vector"`

	// Datasource holds default backend connection settings.
	Datasource DatasourceConfig `yaml:"datasource"`

	// Storage holds dataset file resolution settings.
	Storage StorageConfig `yaml:"storage"`
}

// EmbeddingConfig holds settings for the OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey   string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
}

// MatcherConfig holds entity matching settings.
//
// SimilarityThreshold is deliberately an explicit, named setting: call sites
// that need a stricter or looser cutoff pass an override instead of relying
// on a hidden constant.
type MatcherConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"MATCHER_SIMILARITY_THRESHOLD" env-default:"0.3"`
	MatchLimit          int     `yaml:"match_limit" env:"MATCHER_MATCH_LIMIT" env-default:"10"`
}

// ExecutorConfig holds SQL execution resource ceilings.
type ExecutorConfig struct {
	// MaxExecutionTime is the per-attempt timeout in seconds.
	MaxExecutionTime int `yaml:"max_execution_time" env:"EXECUTOR_MAX_EXECUTION_TIME" env-default:"30"`
	// MaxExecutionTimeCeiling bounds the doubled timeout used by the
	// extended_timeout fallback, in seconds.
	MaxExecutionTimeCeiling int `yaml:"max_execution_time_ceiling" env:"EXECUTOR_MAX_EXECUTION_TIME_CEILING" env-default:"60"`
	// MaxRows caps rows returned by any execution.
	MaxRows int `yaml:"max_rows" env:"EXECUTOR_MAX_ROWS" env-default:"10000"`
}

// VectorConfig holds vector index settings.
type VectorConfig struct {
	// Path is the SQLite file backing the index. ":memory:" keeps it in-process.
	Path string `yaml:"path" env:"VECTOR_INDEX_PATH" env-default:"vectors.db"`
}

// DatasourceConfig holds default backend connection settings.
// Type selects the connector: "sqlite", "postgres", "mysql" or "sqlserver".
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"sqlite"`
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:":memory:"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSLMODE" env-default:"disable"`

	// Engine knobs. These affect resource ceilings, not query semantics.
	MaxConnections    int `yaml:"max_connections" env:"DATASOURCE_MAX_CONNECTIONS" env-default:"4"`
	ConnectionTimeout int `yaml:"connection_timeout" env:"DATASOURCE_CONNECTION_TIMEOUT" env-default:"10"`
}

// StorageConfig holds dataset file resolution settings.
type StorageConfig struct {
	// DatasetDir is the local directory searched by the storage resolver.
	DatasetDir string `yaml:"dataset_dir" env:"STORAGE_DATASET_DIR" env-default:"./datasets"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// If config.yaml does not exist, configuration comes from environment variables
// and defaults alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Executor.MaxRows <= 0 {
		return fmt.Errorf("executor max_rows must be positive, got %d", c.Executor.MaxRows)
	}
	if c.Executor.MaxExecutionTime <= 0 {
		return fmt.Errorf("executor max_execution_time must be positive, got %d", c.Executor.MaxExecutionTime)
	}
	if c.Matcher.SimilarityThreshold < 0 || c.Matcher.SimilarityThreshold > 1 {
		return fmt.Errorf("matcher similarity_threshold must be in [0,1], got %f", c.Matcher.SimilarityThreshold)
	}
	if c.Matcher.MatchLimit <= 0 {
		return fmt.Errorf("matcher match_limit must be positive, got %d", c.Matcher.MatchLimit)
	}
	return nil
}
