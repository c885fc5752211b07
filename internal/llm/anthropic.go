package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phuslu/log"
)

const completeAttempts = 3

// AnthropicCompleter implements Completer with the Anthropic Messages
// API. Transient failures are retried internally; the error returned
// after exhausted retries is the one the filter records as ERROR.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicCompleter builds a completer for the given model. apiKey
// must be non-empty.
func NewAnthropicCompleter(apiKey, model string, maxTokens int) (*AnthropicCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicCompleter{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Model returns the configured model identifier.
func (c *AnthropicCompleter) Model() string { return c.model }

// Complete sends one message exchange and returns the concatenated text
// blocks of the response.
func (c *AnthropicCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Temperature: anthropic.Float(0),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	var lastErr error
	for attempt := 0; attempt < completeAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt+1) * 2 * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			log.Debug().Int("attempt", attempt+1).Msg("retrying completion")
		}

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}

		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			lastErr = fmt.Errorf("empty completion response")
			continue
		}
		return sb.String(), nil
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", completeAttempts, lastErr)
}
