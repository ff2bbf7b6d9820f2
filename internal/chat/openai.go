package chat

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"posto-dashboard/internal/config"
)

const systemPrompt = "Você é a assistente do dashboard de um posto de combustíveis com loja de conveniência. " +
	"Responda em português do Brasil, em no máximo três frases, sobre vendas, metas, ranking de colaboradores e indicadores. " +
	"Se a pergunta exigir dados que você não tem, sugira o filtro ou a aba do dashboard que mostra a informação."

type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI returns nil when no API key is configured.
func NewOpenAI(cfg config.ChatConfig) *OpenAI {
	if cfg.OpenAIKey == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), model: cfg.OpenAIModel}
}

func (o *OpenAI) Complete(ctx context.Context, input string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
