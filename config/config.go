// Package config loads lexrag settings from an optional file and LEXRAG_*
// environment variables.
//
// Every key has a default taken from the owning package, so an empty
// environment yields a working local setup. Nested keys map to environment
// variables with dots replaced by underscores: ai.completion_model is read
// from LEXRAG_AI_COMPLETION_MODEL.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/lexrag"
	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/index/chromem"
	"github.com/poiesic/lexrag/ingestion"
	"github.com/poiesic/lexrag/memory"
	"github.com/poiesic/lexrag/reasoning"
	"github.com/poiesic/lexrag/retrieval"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LEXRAG"

// Config holds all lexrag settings.
type Config struct {
	DataDir    string          `mapstructure:"data_dir"`
	Collection string          `mapstructure:"collection"`
	LogLevel   string          `mapstructure:"log_level"`
	AI         AIConfig        `mapstructure:"ai"`
	Memory     MemoryConfig    `mapstructure:"memory"`
	Retrieval  RetrievalConfig `mapstructure:"retrieval"`
	Reasoning  ReasoningConfig `mapstructure:"reasoning"`
	Ingestion  IngestionConfig `mapstructure:"ingestion"`
}

// AIConfig selects the embedding and completion services.
type AIConfig struct {
	EmbeddingHost      string        `mapstructure:"embedding_host"`
	CompletionHost     string        `mapstructure:"completion_host"`
	EmbeddingModel     string        `mapstructure:"embedding_model"`
	CompletionModel    string        `mapstructure:"completion_model"`
	APIKey             string        `mapstructure:"api_key"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	EmbeddingCacheSize int64         `mapstructure:"embedding_cache_size"`
}

// MemoryConfig tunes conversational memory.
type MemoryConfig struct {
	ShortTermLimit     int     `mapstructure:"short_term_limit"`
	LongTermLimit      int     `mapstructure:"long_term_limit"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	ContextBudget      int     `mapstructure:"context_budget"`
	SummaryLength      int     `mapstructure:"summary_length"`
}

// RetrievalConfig tunes the retrieval fan-out.
type RetrievalConfig struct {
	TopK        int           `mapstructure:"top_k"`
	PoolSize    int           `mapstructure:"pool_size"` // 0 selects the CPU count
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// ReasoningConfig tunes the reasoning stages.
type ReasoningConfig struct {
	RewriteTemperature   float64       `mapstructure:"rewrite_temperature"`
	AnalysisTemperature  float64       `mapstructure:"analysis_temperature"`
	SynthesisTemperature float64       `mapstructure:"synthesis_temperature"`
	MaxTokens            int           `mapstructure:"max_tokens"`
	MaxQueries           int           `mapstructure:"max_queries"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	SystemPrompt         string        `mapstructure:"system_prompt"`
}

// IngestionConfig tunes passage seeding.
type IngestionConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	PoolSize  int `mapstructure:"pool_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("collection", chromem.DefaultCollection)
	v.SetDefault("log_level", "info")

	aiDefaults := ai.DefaultConfig()
	v.SetDefault("ai.embedding_host", aiDefaults.EmbeddingHost)
	v.SetDefault("ai.completion_host", aiDefaults.CompletionHost)
	v.SetDefault("ai.embedding_model", aiDefaults.EmbeddingModel)
	v.SetDefault("ai.completion_model", aiDefaults.CompletionModel)
	v.SetDefault("ai.api_key", aiDefaults.APIKey)
	v.SetDefault("ai.request_timeout", aiDefaults.RequestTimeout)
	v.SetDefault("ai.embedding_cache_size", aiDefaults.EmbeddingCacheSize)

	memDefaults := memory.DefaultConfig()
	v.SetDefault("memory.short_term_limit", memDefaults.ShortTermLimit)
	v.SetDefault("memory.long_term_limit", memDefaults.LongTermLimit)
	v.SetDefault("memory.relevance_threshold", float64(memDefaults.RelevanceThreshold))
	v.SetDefault("memory.context_budget", memDefaults.ContextBudget)
	v.SetDefault("memory.summary_length", memDefaults.SummaryLength)

	v.SetDefault("retrieval.top_k", lexrag.DefaultTopK)
	v.SetDefault("retrieval.pool_size", 0)
	v.SetDefault("retrieval.call_timeout", retrieval.DefaultCallTimeout)

	rsDefaults := reasoning.DefaultConfig()
	v.SetDefault("reasoning.rewrite_temperature", rsDefaults.RewriteTemperature)
	v.SetDefault("reasoning.analysis_temperature", rsDefaults.AnalysisTemperature)
	v.SetDefault("reasoning.synthesis_temperature", rsDefaults.SynthesisTemperature)
	v.SetDefault("reasoning.max_tokens", rsDefaults.MaxTokens)
	v.SetDefault("reasoning.max_queries", rsDefaults.MaxQueries)
	v.SetDefault("reasoning.max_retries", rsDefaults.MaxRetries)
	v.SetDefault("reasoning.retry_base_delay", rsDefaults.RetryBaseDelay)
	v.SetDefault("reasoning.system_prompt", rsDefaults.SystemPrompt)

	v.SetDefault("ingestion.batch_size", ingestion.DefaultBatchSize)
	v.SetDefault("ingestion.pool_size", 0)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lexrag"
	}
	return filepath.Join(home, ".lexrag")
}

// Load reads configuration from path, or from lexrag.{yaml,json,toml} in the
// working directory or ~/.config/lexrag when path is empty. A missing
// default file is not an error; environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("lexrag")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "lexrag"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data_dir is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.AIConfig().Validate(); err != nil {
		return err
	}
	if err := c.MemoryConfig().Validate(); err != nil {
		return err
	}
	if err := c.ReasoningConfig().Validate(); err != nil {
		return err
	}
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > lexrag.MaxTopK {
		return fmt.Errorf("config: retrieval.top_k must be between 1 and %d", lexrag.MaxTopK)
	}
	if c.Retrieval.CallTimeout < 0 {
		return errors.New("config: retrieval.call_timeout cannot be negative")
	}
	if c.Ingestion.BatchSize < 1 {
		return errors.New("config: ingestion.batch_size must be at least 1")
	}
	return nil
}

// AIConfig converts the ai section.
func (c *Config) AIConfig() *ai.Config {
	cfg := &ai.Config{
		EmbeddingHost:      c.AI.EmbeddingHost,
		CompletionHost:     c.AI.CompletionHost,
		EmbeddingModel:     c.AI.EmbeddingModel,
		CompletionModel:    c.AI.CompletionModel,
		APIKey:             c.AI.APIKey,
		RequestTimeout:     c.AI.RequestTimeout,
		EmbeddingCacheSize: c.AI.EmbeddingCacheSize,
	}
	cfg.Normalize()
	return cfg
}

// MemoryConfig converts the memory section.
func (c *Config) MemoryConfig() memory.Config {
	return memory.Config{
		ShortTermLimit:     c.Memory.ShortTermLimit,
		LongTermLimit:      c.Memory.LongTermLimit,
		RelevanceThreshold: float32(c.Memory.RelevanceThreshold),
		ContextBudget:      c.Memory.ContextBudget,
		SummaryLength:      c.Memory.SummaryLength,
	}
}

// ReasoningConfig converts the reasoning section.
func (c *Config) ReasoningConfig() reasoning.Config {
	return reasoning.Config{
		RewriteTemperature:   c.Reasoning.RewriteTemperature,
		AnalysisTemperature:  c.Reasoning.AnalysisTemperature,
		SynthesisTemperature: c.Reasoning.SynthesisTemperature,
		MaxTokens:            c.Reasoning.MaxTokens,
		MaxQueries:           c.Reasoning.MaxQueries,
		MaxRetries:           c.Reasoning.MaxRetries,
		RetryBaseDelay:       c.Reasoning.RetryBaseDelay,
		SystemPrompt:         c.Reasoning.SystemPrompt,
	}
}

// IngestionOptions returns the pipeline options for the ingestion section.
func (c *Config) IngestionOptions() []ingestion.Option {
	opts := []ingestion.Option{ingestion.WithBatchSize(c.Ingestion.BatchSize)}
	if c.Ingestion.PoolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(c.Ingestion.PoolSize))
	}
	return opts
}

// Options returns the assistant options described by the configuration.
func (c *Config) Options(logger *slog.Logger) []lexrag.Option {
	return []lexrag.Option{
		lexrag.WithAIConfig(c.AIConfig()),
		lexrag.WithMemoryConfig(c.MemoryConfig()),
		lexrag.WithReasoningConfig(c.ReasoningConfig()),
		lexrag.WithCollection(c.Collection),
		lexrag.WithPoolSize(c.Retrieval.PoolSize),
		lexrag.WithCallTimeout(c.Retrieval.CallTimeout),
		lexrag.WithLogger(logger),
	}
}

// ParseLogLevel maps debug, info, warn or error to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q", level)
	}
	return l, nil
}
