package llm

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestPickHTTPClientHonorsCustomClient(t *testing.T) {
	custom := &http.Client{Timeout: 42 * time.Second}
	if got := pickHTTPClient(custom); got != custom {
		t.Fatalf("expected custom client to be returned")
	}
}

func TestPickHTTPClientUsesLongerTimeout(t *testing.T) {
	client := pickHTTPClient(nil)
	if client.Timeout != defaultLLMHTTPTimeout {
		t.Fatalf("expected default timeout %s, got %s", defaultLLMHTTPTimeout, client.Timeout)
	}
}

func TestNewFromEnvOpenRouterNeedsKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	if _, err := NewFromEnv(Config{}); err == nil {
		t.Fatal("expected missing key error")
	}

	t.Setenv("OPENROUTER_API_KEY", "from-env")
	client, err := NewFromEnv(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oc, ok := client.(*openAIClient)
	if !ok {
		t.Fatalf("expected openAIClient, got %T", client)
	}
	if oc.apiKey != "from-env" || oc.base != defaultOpenRouterBase || oc.model != DefaultModel {
		t.Fatalf("unexpected client settings: %+v", oc)
	}
	if !strings.HasPrefix(client.Name(), "OpenRouter") {
		t.Fatalf("unexpected name %q", client.Name())
	}
}

func TestNewFromEnvOllama(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434/")
	t.Setenv("OLLAMA_MODEL", "")
	client, err := NewFromEnv(Config{Provider: "ollama"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oc, ok := client.(*ollamaClient)
	if !ok {
		t.Fatalf("expected ollamaClient, got %T", client)
	}
	if oc.host != "http://gpu-box:11434" || oc.model != defaultOllamaModel {
		t.Fatalf("unexpected client settings: %+v", oc)
	}
}

func TestNewFromEnvRejectsUnknownProvider(t *testing.T) {
	if _, err := NewFromEnv(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
