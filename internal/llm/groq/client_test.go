package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/llm"
)

func TestClientComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "test-model",
			"choices": [{"message": {"role": "assistant", "content": "{\"summary\":\"ok\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5}
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL + "/openai/v1/", Model: "test-model"}, nil)
	out, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleSystem, Content: "sys"}, {Role: llm.RoleUser, Content: "hi"}},
		Sampling: llm.StructuredSampling,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"ok"}`, out.Content)
	assert.Equal(t, "test-model", out.Model)
	assert.Equal(t, "stop", out.FinishReason)
	assert.Equal(t, 12, out.PromptTokens)
	assert.Equal(t, 5, out.OutputTokens)

	assert.Equal(t, "test-model", got["model"])
	assert.InDelta(t, 0.1, got["temperature"], 1e-9)
	assert.EqualValues(t, 2048, got["max_completion_tokens"])
	assert.EqualValues(t, 1, got["top_p"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestClientCompleteFreeformOmitsResponseFormat(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"plain"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, nil)
	out, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Sampling: llm.FreeformSampling,
	})
	require.NoError(t, err)
	assert.Equal(t, "plain", out.Content)
	assert.NotContains(t, got, "response_format")
	assert.Equal(t, DefaultModel, got["model"])
}

func TestClientCompleteUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		errText string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, "boom"},
		{"rate limited", http.StatusTooManyRequests, `slow down`, "slow down"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"garbage", http.StatusOK, `not json`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, nil)
			_, err := client.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
				Sampling: llm.ChatSampling,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrUpstream)
			assert.Contains(t, err.Error(), tt.errText)
			assert.Equal(t, http.StatusInternalServerError, common.HTTPStatus(err))
		})
	}
}

func TestClientCompleteTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: url, Timeout: time.Second}, nil)
	_, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	require.NotNil(t, cfg.HTTPClient)
	assert.Equal(t, DefaultTimeout, cfg.HTTPClient.Timeout)
}
