// Package llm resolves candidate token mints out of free-form social text
// using the OpenAI chat completions API.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/solwatch/pumpbot/internal/domain"
)

const systemPrompt = "You are an expert crypto trader and analyst. You need to find the token address in the tweet specifically if it is a bull post. The token address is a base58 encoded string usually 32-44 characters long without any spaces and bytes 32. Return the token address in the tweet if you cant find a token address, you need to return null."

// Resolver implements domain.TokenResolver on top of the OpenAI SDK.
type Resolver struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver creates a Resolver. model defaults to gpt-4o when empty.
func NewResolver(apiKey, model string, logger *slog.Logger) (*Resolver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	return &Resolver{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   openai.ChatModel(model),
		timeout: 30 * time.Second,
		logger:  logger.With(slog.String("component", "llm_resolver")),
	}, nil
}

// ResolveToken asks the model for a base58 mint address mentioned bullishly in
// text. A "null" (or empty, or implausible) answer resolves to ("", nil): the
// text simply names no tradable token.
func (r *Resolver) ResolveToken(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: resolve token: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("llm: resolve token: empty response")
	}

	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	mint := sanitizeMint(answer)
	if mint == "" {
		r.logger.Debug("no token in text", slog.String("answer", answer))
		return "", nil
	}

	r.logger.Info("token resolved", slog.String("mint", mint))
	return mint, nil
}

// sanitizeMint normalizes a model answer into a plausible base58 mint, or ""
// when the answer is a refusal or noise.
func sanitizeMint(answer string) string {
	answer = strings.Trim(answer, "\"'` .")
	if answer == "" || strings.EqualFold(answer, "null") || strings.EqualFold(answer, "none") {
		return ""
	}
	if len(answer) < 32 || len(answer) > 44 || strings.ContainsAny(answer, " \t\n") {
		return ""
	}
	for _, c := range answer {
		switch {
		case c >= '1' && c <= '9', c >= 'A' && c <= 'H', c >= 'J' && c <= 'N',
			c >= 'P' && c <= 'Z', c >= 'a' && c <= 'k', c >= 'm' && c <= 'z':
		default:
			return ""
		}
	}
	return answer
}

var _ domain.TokenResolver = (*Resolver)(nil)
