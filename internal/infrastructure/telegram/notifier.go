// Package telegram posts reconciliation cycle reports to a chat through the bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"CatalogSync/internal/config"
	"CatalogSync/internal/domain"
	"CatalogSync/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

var (
	// ErrNotConfigured is returned when the bot token or chat id is missing.
	ErrNotConfigured = errors.New("telegram notifier misconfigured")
	// ErrRejected wraps a sendMessage call the bot API answered with ok=false.
	ErrRejected = errors.New("telegram rejected message")
)

// Notifier reports finished cycles to a Telegram chat.
type Notifier struct {
	apiBase     string
	botToken    string
	chatID      string
	environment string
	client      *http.Client
}

var _ ports.ChatNotifier = (*Notifier)(nil)

// NewNotifier registers the bot, the chat and the environment label shown in reports.
func NewNotifier(cfg config.TelegramConfig, environment string) *Notifier {
	return &Notifier{
		apiBase:     defaultAPIBase,
		botToken:    cfg.BotToken,
		chatID:      cfg.ChatID,
		environment: environment,
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether both token and chat id are set.
func (n *Notifier) Enabled() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

type sendMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// PublishCycle posts the cycle report. Cycles that deleted nothing and found
// no invalid entries are delivered silently.
func (n *Notifier) PublishCycle(ctx context.Context, summary domain.CycleSummary) error {
	if !n.Enabled() || n.client == nil {
		return ErrNotConfigured
	}

	body, err := json.Marshal(sendMessage{
		ChatID:              n.chatID,
		Text:                n.render(summary),
		ParseMode:           "HTML",
		DisableNotification: summary.Deleted == 0 && summary.Invalid == 0,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		return fmt.Errorf("%w: %s %s", ErrRejected, resp.Status, decoded.Description)
	}
	return nil
}

func (n *Notifier) render(s domain.CycleSummary) string {
	var b strings.Builder
	title := "catalog sync"
	if n.environment != "" {
		title = n.environment + " " + title
	}
	fmt.Fprintf(&b, "<b>%s</b> (%s)\n", html.EscapeString(title), html.EscapeString(string(s.Mode)))
	fmt.Fprintf(&b, "published: %d\nupdated: %d\ndeleted: %d\n", s.Published, s.Updated, s.Deleted)
	if s.Invalid > 0 {
		fmt.Fprintf(&b, "invalid: <b>%d</b>, report mailed\n", s.Invalid)
	} else {
		b.WriteString("invalid: 0\n")
	}
	fmt.Fprintf(&b, "<code>%s</code> %s", html.EscapeString(s.CycleID), s.FinishedAt.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}
