package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TuxLetter/internal/config"
	"TuxLetter/internal/domain"
)

func testConfig(endpoint string) config.OpenRouterConfig {
	return config.OpenRouterConfig{
		Endpoint:  endpoint,
		Model:     "meta-llama/llama-3.1-8b-instruct:free",
		APIKey:    "sk-test",
		Language:  "English",
		Referer:   "https://localhost:3000",
		Title:     "Tux Teller",
		MaxTokens: 2000,
		BodyLimit: 1500,
	}
}

func replyWith(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(payload)
}

func sampleItems() []domain.Item {
	return []domain.Item{
		{Type: domain.ItemNews, Title: "Mesa 25 released", Author: "Phoronix", Date: "today", Body: "Vulkan work.", Link: "https://www.phoronix.com/news/mesa-25"},
		{Type: domain.ItemPatch, Title: "[PATCH] mm: fix leak", Author: "Jane", Date: "Sat", Body: "diff", Link: "https://lore.kernel.org/lkml/1/"},
		{Type: domain.ItemNews, Title: "GNOME 48", Author: "Its FOSS", Date: domain.Unknown, Body: "Shell updates.", Link: "https://news.itsfoss.com/gnome-48/"},
	}
}

func TestSynthesizeEmptySkipsRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	got := NewOpenRouterClient(testConfig(srv.URL), nil).Synthesize(context.Background(), nil)

	assert.Equal(t, EmptyDigestText, got.Text)
	assert.Empty(t, got.References)
	assert.Zero(t, calls.Load())
}

func TestSynthesizeSendsPromptAndKeepsOrder(t *testing.T) {
	t.Parallel()

	var req chatRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(replyWith("Digest prose.")))
	}))
	defer srv.Close()

	items := sampleItems()
	got := NewOpenRouterClient(testConfig(srv.URL), nil).Synthesize(context.Background(), items)

	assert.Equal(t, "Digest prose.", got.Text)
	assert.Equal(t, domain.Links(items), got.References)

	assert.Equal(t, "Bearer sk-test", headers.Get("Authorization"))
	assert.Equal(t, "https://localhost:3000", headers.Get("HTTP-Referer"))
	assert.Equal(t, "Tux Teller", headers.Get("X-Title"))
	assert.Equal(t, 2000, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)

	prompt := req.Messages[0].Content
	kernelAt := strings.Index(prompt, kernelSectionHeader)
	newsAt := strings.Index(prompt, newsSectionHeader)
	require.NotEqual(t, -1, kernelAt)
	require.NotEqual(t, -1, newsAt)
	assert.Less(t, kernelAt, newsAt)
	assert.Less(t, strings.Index(prompt, "[PATCH] mm: fix leak"), newsAt)
	assert.Less(t, strings.Index(prompt, "Mesa 25 released"), strings.Index(prompt, "GNOME 48"))
}

func TestSynthesizeFailureKeepsReferences(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		},
		"bad json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{"))
		},
		"no choices": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(handler)
			defer srv.Close()

			items := sampleItems()
			got := NewOpenRouterClient(testConfig(srv.URL), nil).Synthesize(context.Background(), items)

			assert.Equal(t, FailedDigestText, got.Text)
			assert.Len(t, got.References, len(items))
			assert.Equal(t, domain.Links(items), got.References)
		})
	}
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	for reply, want := range map[string]bool{"OK": true, "ok, I can read you": true, "Hello": false} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(replyWith(reply)))
		}))
		assert.Equal(t, want, NewOpenRouterClient(testConfig(srv.URL), nil).TestConnection(context.Background()), reply)
		srv.Close()
	}
}

func TestTestConnectionMisconfigured(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:0")
	cfg.APIKey = ""

	assert.False(t, NewOpenRouterClient(cfg, nil).TestConnection(context.Background()))
}

func TestBuildPromptClipsBody(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 2000)
	prompt := buildPrompt([]domain.Item{{Type: domain.ItemNews, Body: long}}, "", 1500)

	assert.Contains(t, prompt, "CONTENT: "+strings.Repeat("é", 1500)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("é", 1501))
	assert.NotContains(t, prompt, kernelSectionHeader)
	assert.Contains(t, prompt, "in English")
}
