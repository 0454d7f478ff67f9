// Package telegram announces newly discovered products to a channel.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// DefaultAPIBase is the Bot API root.
const DefaultAPIBase = "https://api.telegram.org"

// Notifier posts one message per new catalog entry.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithAPIBase points the notifier at another Bot API host.
func WithAPIBase(base string) Option {
	return func(n *Notifier) { n.apiBase = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default 5s client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string, opts ...Option) *Notifier {
	n := &Notifier{
		apiBase:  DefaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Message renders the announcement for e.
func Message(e *domain.CatalogEntry) string {
	link := e.AffiliateLink
	if link == "" {
		link = e.Link
	}
	return fmt.Sprintf("🔎 Nuevo producto investigado:\nNombre: %s\nPrecio: %s %s\nLink: %s",
		e.Name, e.Price.StringFixed(2), e.Currency, link)
}

// Announce posts the entry to the configured chat.
func (n *Notifier) Announce(ctx context.Context, e *domain.CatalogEntry) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", Message(e))

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

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
