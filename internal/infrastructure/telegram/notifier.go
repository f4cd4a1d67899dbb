package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TuxLetter/internal/config"
	"TuxLetter/internal/domain"
	"TuxLetter/internal/ports"
)

// maxMessageRunes is the Bot API limit for one text message.
const maxMessageRunes = 4096

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	location *time.Location
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig, loc *time.Location, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if loc == nil {
		loc = time.UTC
	}
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Notifier{
		apiBase:  base,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		location: loc,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   log,
	}
}

// Send posts the digest as one or more plain-text messages.
func (n *Notifier) Send(ctx context.Context, digest domain.Digest) error {
	if n.botToken == "" || n.chatID == "" {
		return errors.New("telegram notifier misconfigured")
	}
	if digest.Date.IsZero() {
		digest.Date = time.Now()
	}

	parts := split(formatDigest(digest.Date.In(n.location), digest), maxMessageRunes)
	for i, part := range parts {
		form := url.Values{}
		form.Set("chat_id", n.chatID)
		form.Set("text", part)
		form.Set("disable_web_page_preview", "true")

		if err := n.call(ctx, "sendMessage", form, nil); err != nil {
			n.logger.Error("telegram send failed", "chat_id", n.chatID, "part", i+1, "parts", len(parts), "error", err)
			return fmt.Errorf("send telegram message: %w", err)
		}
	}

	n.logger.Info("telegram digest sent", "chat_id", n.chatID, "parts", len(parts), "total_items", digest.TotalItems)
	return nil
}

// TestConnection checks the token with getMe.
func (n *Notifier) TestConnection(ctx context.Context) bool {
	if n.botToken == "" || n.chatID == "" {
		n.logger.Error("telegram notifier misconfigured")
		return false
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := n.call(ctx, "getMe", nil, &me); err != nil {
		n.logger.Error("telegram verification failed", "error", err)
		return false
	}
	n.logger.Info("telegram bot verified", "bot", me.Username)
	return true
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (n *Notifier) call(ctx context.Context, method string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", n.apiBase, n.botToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		return fmt.Errorf("telegram error: %s %s", resp.Status, decoded.Description)
	}
	if out != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func formatDigest(day time.Time, digest domain.Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🐧 Tux Letter • %s • %d updates\n\n", day.Format(time.DateOnly), digest.TotalItems)
	b.WriteString(strings.TrimSpace(digest.Text))
	b.WriteString("\n")

	if len(digest.References) > 0 {
		b.WriteString("\n📎 References\n")
		for i, link := range digest.References {
			fmt.Fprintf(&b, "%d. %s\n", i+1, link)
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "🤖 %d bot checks • 📰 %d items", digest.BotChallenges, digest.TotalItems)
	for _, count := range digest.Counts {
		fmt.Fprintf(&b, " • %d %s", count.Items, count.Source)
	}
	return b.String()
}

// split cuts text into chunks of at most limit runes, preferring line breaks.
func split(text string, limit int) []string {
	var parts []string
	for {
		r := []rune(text)
		if len(r) <= limit {
			return append(parts, text)
		}
		cut := limit
		if nl := strings.LastIndex(string(r[:limit]), "\n"); nl > 0 {
			cut = len([]rune(string(r[:limit])[:nl]))
		}
		parts = append(parts, strings.TrimRight(string(r[:cut]), "\n"))
		text = strings.TrimLeft(string(r[cut:]), "\n")
	}
}
