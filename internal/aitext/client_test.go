package aitext_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shDupont/merculy/internal/aitext"
)

func TestNewWithoutKeyIsUnavailable(t *testing.T) {
	g, err := aitext.New(aitext.Config{Provider: aitext.ProviderGemini}, nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "oi")
	require.ErrorIs(t, err, aitext.ErrUnavailable)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := aitext.New(aitext.Config{Provider: "llama-farm", APIKey: "k"}, nil)
	require.Error(t, err)
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")

		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPrompt = body.Contents[0].Parts[0].Text

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Resumo "},{"text":"pronto"}]}}]}`))
	}))
	defer srv.Close()

	g, err := aitext.New(aitext.Config{Provider: aitext.ProviderGemini, APIKey: "secret", Model: "gemini-test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "Resuma isto")
	require.NoError(t, err)
	require.Equal(t, "Resumo pronto", out)
	require.Equal(t, "/models/gemini-test:generateContent", gotPath)
	require.Equal(t, "secret", gotKey)
	require.Equal(t, "Resuma isto", gotPrompt)
}

func TestOpenAIGenerate(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.Equal(t, "/chat/completions", r.URL.Path)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"esquerda"}}]}`))
	}))
	defer srv.Close()

	g, err := aitext.New(aitext.Config{Provider: aitext.ProviderOpenAI, APIKey: "sk", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "viés?")
	require.NoError(t, err)
	require.Equal(t, "esquerda", out)
	require.Equal(t, "Bearer sk", auth)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	g, err := aitext.New(aitext.Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 2}, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, int32(2), calls.Load())
}

func TestRetriesServerErrorWithPlainBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("upstream connect error"))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	g, err := aitext.New(aitext.Config{Provider: aitext.ProviderOpenAI, APIKey: "k", BaseURL: srv.URL, MaxRetries: 2}, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, int32(2), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad prompt"}}`))
	}))
	defer srv.Close()

	g, err := aitext.New(aitext.Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3}, nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "p")
	var apiErr *aitext.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "bad prompt", apiErr.Message)
	require.Equal(t, int32(1), calls.Load())
}
