package aitext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// openAI speaks the chat completions protocol, which many hosted and local servers accept.
type openAI struct {
	cfg  Config
	http *http.Client
	base string
}

func newOpenAI(cfg Config) *openAI {
	base := "https://api.openai.com/v1"
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &openAI{cfg: cfg, base: base, http: &http.Client{Timeout: cfg.Timeout}}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (o *openAI) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model:       o.cfg.Model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed openAIResponse
	jsonErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode}
		if jsonErr == nil && parsed.Error != nil {
			apiErr.Message = parsed.Error.Message
		}
		return "", apiErr
	}
	if jsonErr != nil {
		return "", fmt.Errorf("unmarshal response: %w", jsonErr)
	}
	if parsed.Error != nil {
		return "", &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}

	return parsed.Choices[0].Message.Content, nil
}
