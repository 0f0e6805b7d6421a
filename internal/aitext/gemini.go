package aitext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type gemini struct {
	cfg  Config
	http *http.Client
	base string
}

func newGemini(cfg Config) *gemini {
	base := "https://generativelanguage.googleapis.com/v1beta"
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &gemini{cfg: cfg, base: base, http: &http.Client{Timeout: cfg.Timeout}}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *gemini) Generate(ctx context.Context, prompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if g.cfg.MaxTokens > 0 || g.cfg.Temperature > 0 {
		payload.GenerationConfig = &geminiGenConfig{
			MaxOutputTokens: g.cfg.MaxTokens,
			Temperature:     g.cfg.Temperature,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.base, g.cfg.Model, url.QueryEscape(g.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed geminiResponse
	jsonErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: ProviderGemini, StatusCode: resp.StatusCode}
		if jsonErr == nil && parsed.Error != nil {
			apiErr.Message = parsed.Error.Message
		}
		return "", apiErr
	}
	if jsonErr != nil {
		return "", fmt.Errorf("unmarshal response: %w", jsonErr)
	}
	if parsed.Error != nil {
		return "", &APIError{Provider: ProviderGemini, StatusCode: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in gemini response")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
