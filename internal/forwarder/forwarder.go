// Package forwarder hands each persisted batch to the sales bot over HTTP.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/version"
)

// DefaultTimeout bounds one delivery.
const DefaultTimeout = 15 * time.Second

// Payload is the body the sales bot expects.
type Payload struct {
	Productos []*domain.CatalogEntry `json:"productos"`
}

// HTTPForwarder posts batches as JSON with a bearer secret.
type HTTPForwarder struct {
	url    string
	token  string
	client *http.Client
}

// New returns a forwarder for url. client may be nil.
func New(url, token string, client *http.Client) *HTTPForwarder {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPForwarder{url: url, token: token, client: client}
}

// Forward delivers entries once. Any transport error or non-2xx answer is a
// domain.ForwardingFailed; the next cycle resends the current state.
func (f *HTTPForwarder) Forward(ctx context.Context, entries []*domain.CatalogEntry) error {
	body, err := json.Marshal(Payload{Productos: entries})
	if err != nil {
		return domain.ForwardingFailed("encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return domain.ForwardingFailed("new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.ForwardingFailed("do request", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ForwardingFailed("deliver", fmt.Errorf("sales bot answered %s", resp.Status))
	}
	return nil
}
