// Package hotmart implements the Hotmart marketplace adapter: OAuth
// client_credentials authentication, catalog listing and the affiliation
// request endpoint.
package hotmart

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/sources"
)

const (
	DefaultBaseURL = "https://api-sec-vlc.hotmart.com"

	tokenPath       = "/security/oauth/token"
	productsPath    = "/catalog/rest/v2/products"
	affiliationPath = "/affiliate/v1/requests"
)

// Options configures the adapter.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Basic        string // preencoded "Basic ..." credential, takes precedence
	HTTPClient   *http.Client
	Logger       logger.Logger
}

// Adapter lists Hotmart products.
type Adapter struct {
	baseURL string
	client  *http.Client
	tokens  *sources.TokenCache
	logger  logger.Logger
}

var _ sources.Adapter = (*Adapter)(nil)

// New returns an adapter, or an error when no credentials are configured.
func New(opts Options) (*Adapter, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = sources.NewHTTPClient(0)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	creds := sources.ClientCredentials{
		TokenURL:     base + tokenPath,
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Basic:        opts.Basic,
		UseBasic:     true,
	}
	if !creds.Configured() {
		return nil, fmt.Errorf("hotmart: client id/secret or basic credential required")
	}
	if _, err := creds.Config(); err != nil {
		return nil, fmt.Errorf("hotmart: %w", err)
	}

	return &Adapter{
		baseURL: base,
		client:  client,
		tokens:  sources.NewTokenCache(creds.Refresher(client), sources.DefaultTokenMargin),
		logger:  log,
	}, nil
}

func (a *Adapter) Name() string { return domain.SourceHotmart }

// Tokens exposes the adapter's token cache so the affiliation client can
// share the same bearer token.
func (a *Adapter) Tokens() *sources.TokenCache { return a.tokens }

// AffiliationURL is the endpoint affiliation requests are posted to.
func (a *Adapter) AffiliationURL() string { return a.baseURL + affiliationPath }

// Fetch lists one page of the catalog.
func (a *Adapter) Fetch(ctx context.Context, page, pageSize int) (sources.Page, error) {
	page, pageSize = sources.ClampPage(page, pageSize)

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	endpoint := a.baseURL + productsPath + "?" + q.Encode()

	start := time.Now()
	body, err := sources.WithReauth(ctx, a.tokens, func(token string) ([]byte, error) {
		h := http.Header{}
		h.Set("Authorization", "Bearer "+token)
		return sources.Get(ctx, a.client, endpoint, h)
	})
	if err != nil {
		return sources.Page{}, domain.SourceUnavailable(a.Name(), err)
	}

	records, err := sources.DecodeRecords(body, "items", "products", "data", "data.items")
	if err != nil {
		return sources.Page{}, domain.SourceUnavailable(a.Name(), err)
	}

	candidates, skipped := sources.MapAll(a.Name(), records, Map, a.logger)

	a.logger.Debug("hotmart page fetched",
		logger.Int("page", page),
		logger.Int("records", len(records)),
		logger.Int("candidates", len(candidates)),
		logger.Int("skipped", skipped),
		logger.Duration("elapsed", time.Since(start)))

	return sources.Page{Candidates: candidates, More: sources.Full(len(records), pageSize)}, nil
}
