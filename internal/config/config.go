// Package config loads the service configuration from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/pkg/persistence/middleware"
	"github.com/pichlex/debitor/pkg/shard"
	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultShardCount        = 1
	DefaultCheckpointDSN     = "sqlite:///./data/graph.db"
	DefaultModelName         = "gpt-4o-mini"
	DefaultOracleTimeout     = 15 * time.Second
	DefaultOracleMaxAttempts = 2
	DefaultHTTPAddr          = ":8080"
	DefaultLockTTL           = 30 * time.Second
)

// Config stores all configuration of the service.
// Keys match the environment variable names in lower case.
type Config struct {
	ShardCount          int    `mapstructure:"shard_count" yaml:"shard_count"`
	CheckpointDSN       string `mapstructure:"checkpoint_dsn" yaml:"checkpoint_dsn"`
	CheckpointDSNShards string `mapstructure:"checkpoint_dsn_shards" yaml:"checkpoint_dsn_shards"`

	ModelName         string        `mapstructure:"model_name" yaml:"model_name"`
	ModelNames        string        `mapstructure:"model_names" yaml:"model_names"`
	OpenAIAPIKey      string        `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	OpenAIAPIKeys     string        `mapstructure:"openai_api_keys" yaml:"openai_api_keys"`
	OpenAIBaseURL     string        `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	AnthropicAPIKey   string        `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	OracleTimeout     time.Duration `mapstructure:"oracle_timeout" yaml:"oracle_timeout"`
	OracleMaxAttempts int           `mapstructure:"oracle_max_attempts" yaml:"oracle_max_attempts"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// EncryptionKey enables at-rest encryption of checkpoints (hex or base64, 32 bytes).
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`

	// PIIPatterns lists comma-separated regular expressions; scratch fields
	// whose keys match are masked before storage.
	PIIPatterns string `mapstructure:"pii_patterns" yaml:"pii_patterns"`

	LockTTL time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`

	HTTPAddr    string `mapstructure:"http_addr" yaml:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// ShardSettings is the resolved configuration of one shard.
type ShardSettings struct {
	Index     int
	DSN       string
	Model     string
	OpenAIKey string
}

// envAliases binds keys whose environment variable is not the upper-cased key.
var envAliases = map[string]string{
	"encryption_key": "DEBITOR_ENCRYPTION_KEY",
	"pii_patterns":   "DEBITOR_PII_PATTERNS",
	"lock_ttl":       "DEBITOR_LOCK_TTL",
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ShardCount:        DefaultShardCount,
		CheckpointDSN:     DefaultCheckpointDSN,
		ModelName:         DefaultModelName,
		OracleTimeout:     DefaultOracleTimeout,
		OracleMaxAttempts: DefaultOracleMaxAttempts,
		LogLevel:          "info",
		LogFormat:         "text",
		HTTPAddr:          DefaultHTTPAddr,
		LockTTL:           DefaultLockTTL,
	}
}

// Load reads configuration from path (when set), then from a debitor.yaml
// in the working directory (when present), then from the environment,
// which wins.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]any{
		"shard_count":           DefaultShardCount,
		"checkpoint_dsn":        DefaultCheckpointDSN,
		"checkpoint_dsn_shards": "",
		"model_name":            DefaultModelName,
		"model_names":           "",
		"openai_api_key":        "",
		"openai_api_keys":       "",
		"openai_base_url":       "",
		"anthropic_api_key":     "",
		"oracle_timeout":        DefaultOracleTimeout,
		"oracle_max_attempts":   DefaultOracleMaxAttempts,
		"log_level":             "info",
		"log_format":            "text",
		"encryption_key":        "",
		"pii_patterns":          "",
		"lock_ttl":              DefaultLockTTL,
		"http_addr":             DefaultHTTPAddr,
		"metrics_addr":          "",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("debitor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var problems []string
	if c.ShardCount < 1 {
		problems = append(problems, fmt.Sprintf("shard_count must be at least 1, got %d", c.ShardCount))
	}
	for name, list := range map[string]string{
		"checkpoint_dsn_shards": c.CheckpointDSNShards,
		"model_names":           c.ModelNames,
		"openai_api_keys":       c.OpenAIAPIKeys,
	} {
		if n := len(shard.ParseCSV(list)); n > c.ShardCount {
			problems = append(problems, fmt.Sprintf("%s has %d entries for %d shards", name, n, c.ShardCount))
		}
	}
	if c.OracleTimeout <= 0 {
		problems = append(problems, "oracle_timeout must be positive")
	}
	if c.OracleMaxAttempts < 1 {
		problems = append(problems, "oracle_max_attempts must be at least 1")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.EncryptionKey); err != nil {
			problems = append(problems, "encryption_key: "+err.Error())
		}
	}
	for _, p := range c.PIIPatternList() {
		if _, err := regexp.Compile(p); err != nil {
			problems = append(problems, fmt.Sprintf("pii pattern %q: %v", p, err))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// Shard resolves the settings of shard i, falling back to the single defaults.
func (c *Config) Shard(i int) ShardSettings {
	return ShardSettings{
		Index:     i,
		DSN:       shard.Pick(shard.ParseCSV(c.CheckpointDSNShards), i, c.CheckpointDSN),
		Model:     shard.Pick(shard.ParseCSV(c.ModelNames), i, c.ModelName),
		OpenAIKey: shard.Pick(shard.ParseCSV(c.OpenAIAPIKeys), i, c.OpenAIAPIKey),
	}
}

// PIIPatternList returns the configured PII key patterns.
func (c *Config) PIIPatternList() []string {
	return shard.ParseCSV(c.PIIPatterns)
}

// ServiceConfig resolves every shard and decodes the secrets into the form
// debitor.New expects.
func (c *Config) ServiceConfig() (debitor.Config, error) {
	out := debitor.Config{
		OpenAIBaseURL:     c.OpenAIBaseURL,
		AnthropicKey:      c.AnthropicAPIKey,
		OracleTimeout:     c.OracleTimeout,
		OracleMaxAttempts: c.OracleMaxAttempts,
		PIIPatterns:       c.PIIPatternList(),
		LockTTL:           c.LockTTL,
	}
	if c.EncryptionKey != "" {
		key, err := middleware.ParseKey(c.EncryptionKey)
		if err != nil {
			return debitor.Config{}, fmt.Errorf("encryption_key: %w", err)
		}
		out.EncryptionKey = key
	}
	for i := 0; i < c.ShardCount; i++ {
		s := c.Shard(i)
		out.Shards = append(out.Shards, debitor.ShardConfig{DSN: s.DSN, Model: s.Model, OpenAIKey: s.OpenAIKey})
	}
	return out, nil
}
