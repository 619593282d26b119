package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biaslens/internal/config"
	"biaslens/internal/observability"
)

func chatCompletion(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]interface{}{"role": "assistant", "content": content},
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func newOpenAITestAnalyzer(t *testing.T, handler http.HandlerFunc) *OpenAIAnalyzer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Analysis.OpenAI.BaseURL = srv.URL + "/v1"
	cfg.Analysis.OpenAI.APIKey = "sk-test"
	cfg.Analysis.OpenAI.Model = "test-model"
	return NewOpenAIAnalyzer(cfg, observability.NewNop())
}

func TestOpenAIAnalyzerSendsMarkup(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	analyzer := newOpenAITestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(
			"```json\n{\"neutralized\": \"<p>The politician said something.</p>\", \"biased_phrases\": [\"controversial\"], \"context\": [\"source needed\"]}\n```",
		))
	})

	result, err := analyzer.Analyze(context.Background(), Request{
		Text:   "The controversial politician said something.",
		Markup: "<p>The controversial politician said something.</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", body.Model)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "<p>The controversial politician said something.</p>", body.Messages[1].Content)

	assert.Equal(t, "<p>The politician said something.</p>", result.ReplacementText)
	assert.Equal(t, 1, result.FoundCount)
	assert.Equal(t, []string{"source needed"}, result.ContextNotes)
}

func TestOpenAIAnalyzerAPIError(t *testing.T) {
	analyzer := newOpenAITestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "requests", "code": "rate_limit"}}`))
	})

	_, err := analyzer.Analyze(context.Background(), Request{Text: "x"})

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusTooManyRequests, transportErr.StatusCode)
	assert.Equal(t, "rate limited", transportErr.Message)
}

func TestOpenAIAnalyzerInvalidJSON(t *testing.T) {
	analyzer := newOpenAITestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("I cannot do that."))
	})

	_, err := analyzer.Analyze(context.Background(), Request{Text: "x"})

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "model returned invalid JSON", transportErr.Message)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
}
