package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"webinar2ebook/internal/services"
)

// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicClient struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func newAnthropicClient(apiKey, baseURL, model string, timeout time.Duration) Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicClient{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

func (c *anthropicClient) Name() string { return "anthropic" }

func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	// The messages API has no response_format switch, so JSONResponse is a
	// no-op here. The prompt spells out the JSON contract and DecodeJSON in
	// the caller strips any fence the model wraps around it.

	msg, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", services.Wrap(services.ErrTransient, "llm", "complete", "anthropic response contained no text blocks", nil)
	}
	return strings.Join(parts, ""), nil
}

func classifyAnthropicError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "llm", "complete", "anthropic request timed out", err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && retryableStatus(apiErr.StatusCode) {
		return services.Wrap(services.ErrTransient, "llm", "complete", "anthropic request failed", err)
	}
	return services.Wrap(services.ErrExternalTool, "llm", "complete", "anthropic request failed", err)
}
