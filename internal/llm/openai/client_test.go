package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/qabot/internal/entity"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func judgeReq(style llm.PromptStyle) llm.JudgeRequest {
	return llm.JudgeRequest{
		DocumentText: "Buy now!",
		Batch:        entity.RuleBatch{Index: 2, Rules: []entity.Rule{{Name: "Tone", Text: "Be calm.", Market: "UK", SourceClient: "Acme"}}},
		Style:        style,
	}
}

func TestJudge(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  Tone: too pushy.  "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "gpt-4o", MaxTokens: 300}, quietLogger())
	reply, err := c.Judge(context.Background(), judgeReq(llm.StyleVerdict))
	require.NoError(t, err)
	assert.Equal(t, "Tone: too pushy.", reply)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.EqualValues(t, 300, got["max_tokens"])
	assert.NotContains(t, got, "response_format")
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Contains(t, msgs[1].(map[string]any)["content"], "Rule Name: Tone")
}

func TestJudge_JSONStyle(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"violations\":[]}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, quietLogger())
	reply, err := c.Judge(context.Background(), judgeReq(llm.StyleJSON))
	require.NoError(t, err)
	assert.Equal(t, `{"violations":[]}`, reply)
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestJudge_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error", http.StatusUnauthorized, `{"error":"bad key"}`, "non-2xx status 401"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"bad body", http.StatusOK, `<html>`, "decode openai response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, quietLogger())
			_, err := c.Judge(context.Background(), judgeReq(llm.StyleParagraphs))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	c := NewClient(Config{}, nil)
	assert.Equal(t, "from-env", c.cfg.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", c.cfg.BaseURL)
	assert.NotEmpty(t, c.Model())
	assert.Positive(t, c.cfg.MaxTokens)
}

func TestJudge_ReplyCutOffAtMaxTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Tone: too pushy.\n\nClaims: unsupp"},"finish_reason":"length"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, MaxTokens: 500}, quietLogger())
	reply, err := c.Judge(context.Background(), judgeReq(llm.StyleParagraphs))
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTruncatedReply)
	assert.Contains(t, err.Error(), "max_tokens=500")
	assert.Empty(t, reply)
}
