package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlayer/semlayer/internal/config"
)

func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			var req ollamaGenerateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.False(t, req.Stream)
			assert.Equal(t, "llama3.1", req.Model)
			json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  SELECT 1  \n", Done: true})
		case "/api/chat":
			var req ollamaChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			json.NewEncoder(w).Encode(ollamaChatResponse{Message: Message{Role: "assistant", Content: "Three employees."}, Done: true})
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3.1:latest"},{"name":"qwen3:8b"}]}`))
		default:
			http.Error(w, "model not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaClient(t *testing.T) {
	srv := fakeOllama(t)
	ctx := context.Background()
	c := NewOllamaClient(srv.URL+"/", "llama3.1", 0)

	out, err := c.Complete(ctx, "count employees")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)

	out, err = c.ChatComplete(ctx, []Message{
		{Role: "system", Content: "summarize"},
		{Role: "user", Content: "[]"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Three employees.", out)

	ok, err := c.HasModel(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewOllamaClient(srv.URL, "mistral", 0).HasModel(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model 'nope' not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "nope", 0).Complete(context.Background(), "hi")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, se.Body, "not found")
}

func TestAnthropicClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "be brief", req.System)
		require.Len(t, req.Messages, 1)

		w.Write([]byte(`{"content":[{"type":"text","text":"SELECT "},{"type":"text","text":"42"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(srv.URL+"/v1", "key", "claude", 0)
	out, err := c.ChatComplete(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "answer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 42", out)
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" SELECT 7 "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1", "sk-test", "gpt-4o-mini")
	out, err := c.Complete(context.Background(), "seven")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 7", out)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(NewConfig(ProviderOllama))
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	_, err = NewClient(NewConfig(ProviderOpenAI))
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	c, err = NewClient(NewConfig(ProviderGemini, WithAPIKey("k")))
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)

	_, err = NewClient(Config{Provider: "bedrock", Model: "x"})
	assert.ErrorContains(t, err, "unknown provider")

	_, err = NewClient(Config{Provider: ProviderOllama})
	assert.ErrorContains(t, err, "no model")
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Model = "qwen3:8b"
	cfg.LLM.BaseURL = "http://gpu-box:11434"

	c, err := FromConfig(cfg)
	require.NoError(t, err)
	oc := c.(*OllamaClient)
	assert.Equal(t, "qwen3:8b", oc.model)
	assert.Equal(t, "http://gpu-box:11434", oc.baseURL)

	cfg.LLM.Enabled = false
	_, err = FromConfig(cfg)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestGeminiContents(t *testing.T) {
	contents, system := geminiContents([]Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	})
	require.NotNil(t, system)
	require.Len(t, contents, 2)
	assert.EqualValues(t, "user", contents[0].Role)
	assert.EqualValues(t, "model", contents[1].Role)
}
