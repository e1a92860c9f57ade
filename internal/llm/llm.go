package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"

	defaultOpenRouterBase = "https://openrouter.ai/api/v1"
	defaultOpenAIBase     = "https://api.openai.com/v1"
	defaultOllamaHost     = "http://localhost:11434"

	DefaultModel       = "xiaomi/mimo-v2-flash:free"
	defaultOllamaModel = "ministral-3:latest"
)

const defaultLLMHTTPTimeout = 3 * time.Minute

// Config describes how to build an LLM client.
type Config struct {
	Provider   string
	Model      string
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// Client sends a fully assembled prompt to a model and returns its text.
// Failures are reported as *Error so callers can tell transient from
// permanent problems.
type Client interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
	Name() string
}

// NewFromEnv builds a client for cfg.Provider, filling gaps from the
// environment (OPENROUTER_API_KEY, OPENAI_API_KEY, OLLAMA_HOST, OLLAMA_MODEL).
func NewFromEnv(cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenRouter
	}
	switch provider {
	case ProviderOpenRouter, ProviderOpenAI:
		base, envKey := defaultOpenRouterBase, "OPENROUTER_API_KEY"
		if provider == ProviderOpenAI {
			base, envKey = defaultOpenAIBase, "OPENAI_API_KEY"
		}
		if cfg.Endpoint != "" {
			base = cfg.Endpoint
		}
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv(envKey)
		}
		if key == "" {
			return nil, fmt.Errorf("%s provider requires an API key (set %s)", provider, envKey)
		}
		model := cfg.Model
		if model == "" {
			model = DefaultModel
		}
		return &openAIClient{
			provider: provider,
			apiKey:   key,
			model:    model,
			base:     strings.TrimRight(base, "/"),
			client:   pickHTTPClient(cfg.HTTPClient),
		}, nil
	case ProviderOllama:
		host := cfg.Endpoint
		if host == "" {
			if env := os.Getenv("OLLAMA_HOST"); env != "" {
				host = env
			} else {
				host = defaultOllamaHost
			}
		}
		model := cfg.Model
		if model == "" {
			if env := os.Getenv("OLLAMA_MODEL"); env != "" {
				model = env
			} else {
				model = defaultOllamaModel
			}
		}
		return &ollamaClient{
			host:   strings.TrimRight(host, "/"),
			model:  model,
			client: pickHTTPClient(cfg.HTTPClient),
		}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Free OpenRouter models can queue for a long time; cancellation comes from the caller's context.
	return &http.Client{Timeout: defaultLLMHTTPTimeout}
}
