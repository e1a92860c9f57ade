package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ollamaClient struct {
	host   string
	model  string
	client *http.Client
}

func (c *ollamaClient) Name() string {
	return fmt.Sprintf("Ollama (%s)", c.model)
}

func (c *ollamaClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", permanentError(ProviderOllama, errors.New("prompt cannot be empty"))
	}
	if model == "" {
		model = c.model
	}
	return c.generate(ctx, prompt, model)
}

func (c *ollamaClient) generate(ctx context.Context, prompt, model string) (string, error) {
	payload := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", permanentError(ProviderOllama, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(buf))
	if err != nil {
		return "", permanentError(ProviderOllama, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", transportError(ctx, ProviderOllama, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, ProviderOllama, err)
	}
	if resp.StatusCode >= 400 {
		return "", statusError(ProviderOllama, resp.StatusCode, fmt.Errorf("ollama API error: %s (%s)", resp.Status, strings.TrimSpace(string(body))))
	}

	var parsed struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", permanentError(ProviderOllama, fmt.Errorf("decode response: %w", err))
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return "", permanentError(ProviderOllama, errors.New("ollama returned an empty response"))
	}
	return strings.TrimSpace(parsed.Response), nil
}
