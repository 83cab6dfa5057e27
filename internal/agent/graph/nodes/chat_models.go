package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/retention-intel/server/internal/agent/model"
	logx "github.com/retention-intel/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Gemini      model.GeminiConfig
	RespConfig  *model.ResponseModelConfig
	GuardConfig *model.GuardModelConfig
}

// ChatModels holds the Gemini client and the chat models built on it
type ChatModels struct {
	Client            *genai.Client
	Response          *gemini.ChatModel
	Guard             *gemini.ChatModel
	ResponseModelName string
	GuardModelName    string
}

// NewGenAIClient creates the shared Gemini API client.
func NewGenAIClient(ctx context.Context, cfg model.GeminiConfig) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the response and guard chat models
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.RespConfig == nil || config.GuardConfig == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	client, err := NewGenAIClient(ctx, config.Gemini)
	if err != nil {
		return nil, err
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	// Classification and judging need no thinking budget.
	chatModelGuard, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.GuardConfig.Model,
		Temperature: &config.GuardConfig.Temperature,
		MaxTokens:   &config.GuardConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Guard model")
		return nil, fmt.Errorf("error creating Guard model: %w", err)
	}

	return &ChatModels{
		Client:            client,
		Response:          chatModelResponse,
		Guard:             chatModelGuard,
		ResponseModelName: config.RespConfig.Model,
		GuardModelName:    config.GuardConfig.Model,
	}, nil
}
