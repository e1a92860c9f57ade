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

// openAIClient speaks the OpenAI chat completions protocol, which OpenRouter
// also implements.
type openAIClient struct {
	provider string
	apiKey   string
	model    string
	base     string
	client   *http.Client
}

func (c *openAIClient) Name() string {
	label := "OpenRouter"
	if c.provider == ProviderOpenAI {
		label = "OpenAI"
	}
	return fmt.Sprintf("%s (%s)", label, c.model)
}

func (c *openAIClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", permanentError(c.provider, errors.New("prompt cannot be empty"))
	}
	if model == "" {
		model = c.model
	}
	return c.chat(ctx, prompt, model)
}

func (c *openAIClient) chat(ctx context.Context, prompt, model string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", permanentError(c.provider, err)
	}

	endpoint := fmt.Sprintf("%s/chat/completions", c.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", permanentError(c.provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.provider == ProviderOpenRouter {
		req.Header.Set("X-Title", "ragtoxiv")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", transportError(ctx, c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, c.provider, err)
	}
	if resp.StatusCode >= 400 {
		return "", statusError(c.provider, resp.StatusCode, fmt.Errorf("%s API error: %s (%s)", c.provider, resp.Status, strings.TrimSpace(string(body))))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", permanentError(c.provider, fmt.Errorf("decode response: %w", err))
	}
	// OpenRouter reports upstream failures inside a 200 body.
	if parsed.Error != nil {
		return "", statusError(c.provider, parsed.Error.Code, fmt.Errorf("%s API error: %s", c.provider, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", permanentError(c.provider, fmt.Errorf("%s API returned no choices", c.provider))
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", permanentError(c.provider, fmt.Errorf("%s API returned an empty message", c.provider))
	}
	return content, nil
}
