// Package llm wraps the chat-completion providers draft generation runs on.
// Providers return raw text; JSON extraction and validation happen in the
// callers that know the expected shape.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/services"
)

// Request describes a single completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature float64
	// JSONResponse asks the provider to emit a JSON object when it has a
	// structured-output switch. The prompt still has to spell out the schema;
	// providers without such a switch ignore the flag.
	JSONResponse bool
}

// Client is the interface both providers implement.
type Client interface {
	// Complete runs one chat completion and returns the assistant text.
	Complete(ctx context.Context, req Request) (string, error)
	// Name identifies the provider for logging.
	Name() string
}

// New builds a client for the configured provider.
func New(cfg *config.Config) (Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new", "config is nil", nil)
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new", "llm api_key is not set", nil)
	}

	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		return newOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, timeout), nil
	case "anthropic":
		return newAnthropicClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, timeout), nil
	default:
		return nil, services.Wrap(
			services.ErrConfiguration,
			"llm",
			"new",
			fmt.Sprintf("unknown provider %q", cfg.LLM.Provider),
			nil,
		)
	}
}

// callContext applies the per-call timeout when one is configured.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// retryableStatus reports whether an HTTP status from a provider is worth
// retrying.
func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
