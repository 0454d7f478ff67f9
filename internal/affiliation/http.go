package affiliation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/version"
)

// DefaultTimeout bounds one affiliation request.
const DefaultTimeout = 20 * time.Second

// HTTPClient posts {"product_id": id} to a marketplace affiliation endpoint
// and interprets {status, link} style answers.
type HTTPClient struct {
	endpoint string
	tokens   TokenSource
	client   *http.Client
}

// NewHTTPClient builds a client. tokens may be nil for unauthenticated endpoints.
func NewHTTPClient(endpoint string, tokens TokenSource, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPClient{endpoint: endpoint, tokens: tokens, client: client}
}

type affiliationResponse struct {
	Status        string `json:"status"`
	AffiliateLink string `json:"affiliate_link"`
	Link          string `json:"link"`
	URL           string `json:"url"`
	HotLink       string `json:"hotlink"`
	Message       string `json:"message"`
}

func (r affiliationResponse) link() string {
	for _, l := range []string{r.AffiliateLink, r.Link, r.URL, r.HotLink} {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// Affiliate performs the request, re-authenticating once on 401/403.
func (h *HTTPClient) Affiliate(ctx context.Context, c domain.Candidate) Outcome {
	status, resp, err := h.post(ctx, c.ExternalID)
	if err == nil && (status == http.StatusUnauthorized || status == http.StatusForbidden) && h.tokens != nil {
		h.tokens.Invalidate()
		status, resp, err = h.post(ctx, c.ExternalID)
	}
	if err != nil {
		return unavailable(err.Error())
	}
	return interpret(status, resp)
}

func interpret(status int, resp affiliationResponse) Outcome {
	verdict := strings.ToLower(strings.TrimSpace(resp.Status))

	switch {
	case verdict == "rejected" || verdict == "denied" || verdict == "refused":
		return rejected(firstNonEmpty(resp.Message, "affiliation "+verdict))
	case status == http.StatusOK || status == http.StatusCreated:
		if verdict == "pending" {
			return unavailable("affiliation pending approval")
		}
		if link := resp.link(); link != "" {
			return approved(link)
		}
		return unavailable("approved without affiliate link")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return unavailable(fmt.Sprintf("credentials rejected (%d)", status))
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return unavailable(fmt.Sprintf("upstream throttled (%d)", status))
	case status >= 400 && status < 500:
		return rejected(firstNonEmpty(resp.Message, fmt.Sprintf("upstream answered %d", status)))
	default:
		return unavailable(fmt.Sprintf("upstream answered %d", status))
	}
}

func (h *HTTPClient) post(ctx context.Context, productID string) (int, affiliationResponse, error) {
	var out affiliationResponse

	payload, err := json.Marshal(map[string]string{"product_id": productID})
	if err != nil {
		return 0, out, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	if h.tokens != nil {
		token, err := h.tokens.Token(ctx)
		if err != nil {
			return 0, out, fmt.Errorf("obtain token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, out, fmt.Errorf("request affiliation: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, out, fmt.Errorf("read response: %w", err)
	}
	// Non-JSON bodies are tolerated; only the status code is used then.
	_ = json.Unmarshal(body, &out)

	return resp.StatusCode, out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
