package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"TuxLetter/internal/config"
	"TuxLetter/internal/domain"
	"TuxLetter/internal/ports"
)

const (
	// EmptyDigestText is returned for an empty batch without calling the API.
	EmptyDigestText = "No new items found."
	// FailedDigestText replaces the synthesis when the API call fails.
	FailedDigestText = "Unable to synthesize the news due to an API error."

	connectionPrompt = `Reply with just "OK" if you can read this.`
)

// OpenRouterClient implements ports.Synthesizer backed by an OpenAI-compatible
// chat-completion endpoint.
type OpenRouterClient struct {
	endpoint    string
	model       string
	apiKey      string
	language    string
	referer     string
	title       string
	maxTokens   int
	temperature float64
	bodyLimit   int
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ ports.Synthesizer = (*OpenRouterClient)(nil)

// NewOpenRouterClient builds a client from configuration.
func NewOpenRouterClient(cfg config.OpenRouterConfig, log *slog.Logger) *OpenRouterClient {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenRouterClient{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		language:    cfg.Language,
		referer:     cfg.Referer,
		title:       cfg.Title,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.SamplingTemperature(),
		bodyLimit:   cfg.BodyLimit,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Synthesize asks the model for one digest text covering items. It never
// fails: API errors yield FailedDigestText with the references intact.
func (c *OpenRouterClient) Synthesize(ctx context.Context, items []domain.Item) domain.Synthesis {
	if len(items) == 0 {
		return domain.Synthesis{Text: EmptyDigestText, References: []string{}}
	}

	references := domain.Links(items)
	prompt := buildPrompt(items, c.language, c.bodyLimit)

	kernel := 0
	for _, item := range items {
		if item.Type.IsKernel() {
			kernel++
		}
	}
	c.logger.Info("synthesis started",
		"items", len(items),
		"kernel_items", kernel,
		"news_items", len(items)-kernel,
		"prompt_length", len(prompt))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Error("synthesis failed", "items", len(items), "error", err)
		return domain.Synthesis{Text: FailedDigestText, References: references}
	}

	c.logger.Info("synthesis finished", "response_length", len(text), "references", len(references))
	return domain.Synthesis{Text: text, References: references}
}

// TestConnection sends a trivial prompt and checks the reply mentions "ok".
func (c *OpenRouterClient) TestConnection(ctx context.Context) bool {
	c.logger.Info("testing model connection", "model", c.model)
	reply, err := c.complete(ctx, connectionPrompt)
	if err != nil {
		c.logger.Error("model connection test failed", "error", err)
		return false
	}
	ok := strings.Contains(strings.ToLower(reply), "ok")
	c.logger.Info("model connection tested", "success", ok, "reply", truncate(reply, 100))
	return ok
}

func (c *OpenRouterClient) complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", errors.New("openrouter client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal openrouter payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("openrouter error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
