// Package config loads the controlrag configuration.
//
// Values are applied in the order defaults, YAML file, environment.
// Environment variables use the CONTROLRAG_ prefix, for example
// CONTROLRAG_GENERATOR_REGION or CONTROLRAG_RAG_DEFAULT_TOP_K.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/siherrmann/controlrag/core/pipeline"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/llm"
	"github.com/siherrmann/controlrag/model"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONTROLRAG"

// Config is the complete configuration of the application.
type Config struct {
	Rag       model.RagConfig `yaml:"rag"`
	Generator GeneratorConfig `yaml:"generator"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Private   PrivateConfig   `yaml:"private"`
	Log       LogConfig       `yaml:"log"`
}

// GeneratorConfig selects the Bedrock model.
type GeneratorConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// EmbedderConfig selects the local embedding model.
type EmbedderConfig struct {
	ModelName string `yaml:"model_name"`
	ModelDir  string `yaml:"model_dir"`
	Dimension int    `yaml:"dimension"`
}

// PrivateConfig points at the optional private corpus.
// An empty DSN disables it.
type PrivateConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used without file and environment.
func Default() *Config {
	return &Config{
		Rag: model.DefaultRagConfig(),
		Generator: GeneratorConfig{
			Region:  "us-east-1",
			ModelID: llm.DefaultModelID,
		},
		Embedder: EmbedderConfig{
			ModelName: pipeline.DefaultEmbeddingModel,
			ModelDir:  helper.DefaultModelDir,
			Dimension: 384,
		},
		Private: PrivateConfig{
			Table: "private_documents",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path (if not empty), applies the environment and validates.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, helper.NewError("read config", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, helper.NewError("parse config", err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Rag.Validate(); err != nil {
		return err
	}
	if c.Generator.Region == "" || c.Generator.ModelID == "" {
		return helper.NewError("validate config", errors.New("generator region and model_id must be set"))
	}
	if c.Embedder.ModelName == "" {
		return helper.NewError("validate config", errors.New("embedder model_name must be set"))
	}
	if c.Embedder.Dimension <= 0 {
		return helper.NewError("validate config", fmt.Errorf("embedder dimension must be positive, got %d", c.Embedder.Dimension))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, helper.NewError("parse log level", err)
	}
	return level, nil
}

type lookupFunc func(key string) (string, bool)

type override struct {
	key string
	set func(string) error
}

func (c *Config) overrides() []override {
	return []override{
		{"GENERATOR_REGION", setString(&c.Generator.Region)},
		{"GENERATOR_MODEL_ID", setString(&c.Generator.ModelID)},
		{"EMBEDDER_MODEL_NAME", setString(&c.Embedder.ModelName)},
		{"EMBEDDER_MODEL_DIR", setString(&c.Embedder.ModelDir)},
		{"EMBEDDER_DIMENSION", setInt(&c.Embedder.Dimension)},
		{"PRIVATE_DSN", setString(&c.Private.DSN)},
		{"PRIVATE_TABLE", setString(&c.Private.Table)},
		{"LOG_LEVEL", setString(&c.Log.Level)},
		{"RAG_DEFAULT_TOP_K", setInt(&c.Rag.DefaultTopK)},
		{"RAG_DEFAULT_MAX_TOKENS", setInt(&c.Rag.DefaultMaxTokens)},
		{"RAG_TEMPERATURE", setFloat(&c.Rag.Temperature)},
		{"RAG_BASE_MIN_SCORE", setFloat(&c.Rag.BaseMinScore)},
		{"RAG_CONTROL_MATCH_MIN_SCORE", setFloat(&c.Rag.ControlMatchMinScore)},
		{"RAG_CONTEXT_WINDOW_TOKENS", setInt(&c.Rag.ContextWindowTokens)},
		{"RAG_RESPONSE_RESERVE_TOKENS", setInt(&c.Rag.ResponseReserveTokens)},
	}
}

func (c *Config) applyEnv(lookup lookupFunc) error {
	for _, o := range c.overrides() {
		key := EnvPrefix + "_" + o.key
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := o.set(strings.TrimSpace(value)); err != nil {
			return helper.NewError("environment "+key, err)
		}
	}
	return nil
}

func setString(target *string) func(string) error {
	return func(v string) error {
		*target = v
		return nil
	}
}

func setInt(target *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*target = i
		return nil
	}
}

func setFloat(target *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*target = f
		return nil
	}
}
