package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, capture *chatRequest, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestGenerate_BuildsPromptFromContextAndHistory(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, &got, "  the answer  ")
	defer srv.Close()

	g := NewGenerator(Config{BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini", Temperature: 0.2})

	history := []Exchange{{Question: "earlier question", Answer: "earlier answer"}}
	answer, err := g.Generate(context.Background(), "what is the limit?", "the limit is 50 pages", history)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "earlier question", got.Messages[1].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	last := got.Messages[3]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "the limit is 50 pages")
	assert.Contains(t, last.Content, "what is the limit?")
}

func TestGenerate_TrimsHistoryToWindow(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, &got, "ok")
	defer srv.Close()

	g := NewGenerator(Config{BaseURL: srv.URL + "/v1", Model: "m", HistoryWindow: 2})

	history := []Exchange{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3"},
	}
	_, err := g.Generate(context.Background(), "q4", "ctx", history)
	require.NoError(t, err)

	// system + 2 kept exchanges + the new turn.
	require.Len(t, got.Messages, 6)
	assert.Equal(t, "q2", got.Messages[1].Content)
	assert.Equal(t, "q3", got.Messages[3].Content)
}

func TestGenerate_APIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	g := NewGenerator(Config{BaseURL: srv.URL, Model: "m"})
	_, err := g.Generate(context.Background(), "q", "ctx", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_504")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestGenerate_SendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	g := NewGenerator(Config{BaseURL: srv.URL, Model: "m", APIKey: "sk-test"})
	_, err := g.Generate(context.Background(), "q", "ctx", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", auth)
}
