package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/talkdata-labs/talkdata/internal/config"
)

// AnthropicClient implements Completion against the Anthropic Messages API.
type AnthropicClient struct {
	client     *anthropic.Client
	flashModel string
	proModel   string
	maxTokens  int
	logger     *slog.Logger
}

// NewAnthropicClient builds a client from the models configuration.
func NewAnthropicClient(cfg config.ModelsConfig, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AnthropicClient{
		client:     anthropic.NewClient(cfg.APIKey),
		flashModel: cfg.Flash,
		proModel:   cfg.Pro,
		maxTokens:  cfg.MaxTokens,
		logger:     logger,
	}
}

// Complete sends the prompt to the model for the given tier and returns the
// raw text of the first content block.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, tier Tier) (string, error) {
	model := c.flashModel
	if tier == TierPro {
		model = c.proModel
	}

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		classified := classify(err)
		c.logger.Warn("completion failed", "model", model, "transient", classified.Transient, "error", err)
		return "", classified
	}

	text := firstText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &Error{Transient: true, Err: fmt.Errorf("model %s returned empty response", model)}
	}

	c.logger.Debug("completion ok", "model", model, "chars", len(text))
	return text, nil
}

func firstText(resp anthropic.MessagesResponse) string {
	for _, content := range resp.Content {
		if t := content.GetText(); t != "" {
			return t
		}
	}
	return ""
}

// classify maps transport errors onto the transient/fatal split. Rate limits,
// overload and server errors are worth retrying; authentication and request
// shape problems never are.
func classify(err error) *Error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsRateLimitErr(), apiErr.IsOverloadedErr(), apiErr.IsApiErr():
			return &Error{Transient: true, Err: err}
		default:
			// authentication, permission, invalid request, not found
			return &Error{Transient: false, Err: err}
		}
	}

	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Transient: reqErr.StatusCode >= 500, Err: err}
	}

	// Timeouts, cancelled contexts and network failures.
	return &Error{Transient: true, Err: err}
}

var _ Completion = (*AnthropicClient)(nil)
