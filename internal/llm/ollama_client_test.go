package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var payload struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		if payload.Model != "qwen3-vl:8b" {
			t.Errorf("expected model qwen3-vl:8b, got %s", payload.Model)
		}
		if !strings.Contains(payload.Prompt, "User question: what is new?") {
			t.Errorf("prompt missing question: %s", payload.Prompt)
		}
		if payload.Stream {
			t.Error("expected streaming to be disabled")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"  Three papers on diffusion.  ","done":true}`))
	}))
	defer server.Close()

	client := &ollamaClient{
		host:   server.URL,
		model:  "qwen3-vl:8b",
		client: server.Client(),
	}

	result, err := client.Complete(context.Background(), "User question: what is new?", "")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result != "Three papers on diffusion." {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestOllamaClientEmptyResponseIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"","done":true}`))
	}))
	defer server.Close()

	client := &ollamaClient{host: server.URL, model: "m", client: server.Client()}
	_, err := client.Complete(context.Background(), "prompt", "")
	if err == nil {
		t.Fatal("expected error for empty response")
	}
	if IsTransient(err) {
		t.Fatalf("empty response should be permanent, got %v", err)
	}
}

func TestOllamaClientRejectsEmptyPrompt(t *testing.T) {
	client := &ollamaClient{host: "http://127.0.0.1:0", model: "m", client: http.DefaultClient}
	if _, err := client.Complete(context.Background(), "   ", ""); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
