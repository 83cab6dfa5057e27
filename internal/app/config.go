package app

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/core"
	pkgkafka "github.com/retention-intel/server/pkg/kafka"
	logx "github.com/retention-intel/server/pkg/logger"
	"github.com/retention-intel/server/pkg/postgres"
	pkgredis "github.com/retention-intel/server/pkg/redis"
)

// Config defines all configurable parameters of the service, sourced from
// environment variables (loaded from .env for local runs).
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres postgres.Config
	Kafka    pkgkafka.Config

	// LLM provider
	Gemini    model.GeminiConfig
	Response  model.ResponseModelConfig
	Guard     model.GuardModelConfig
	Embedding model.EmbeddingConfig

	// Retention pipeline
	Pipeline     model.PipelineConfig
	Guardrail    model.GuardrailConfig
	Evaluation   model.EvaluationConfig
	Conversation model.ConversationConfig
}

// Env returns the parsed deployment environment.
func (c Config) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

// LoadConfig reads envFile when present, then binds the environment.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logx.Warn().Err(err).Str("file", envFile).Msg("could not load env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
