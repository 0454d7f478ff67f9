// Package mercadolibre implements the MercadoLibre search adapter.
package mercadolibre

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/sources"
)

const (
	DefaultBaseURL = "https://api.mercadolibre.com"
	DefaultSite    = "MLA"

	tokenPath = "/oauth/token"
)

// Options configures the adapter. ClientID/ClientSecret are optional: the
// public search endpoint is called anonymously when they are empty.
type Options struct {
	BaseURL      string
	Site         string
	Queries      []string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Logger       logger.Logger
}

// Adapter searches MercadoLibre for each configured query.
type Adapter struct {
	baseURL string
	site    string
	queries []string
	client  *http.Client
	tokens  *sources.TokenCache
	logger  logger.Logger
}

var _ sources.Adapter = (*Adapter)(nil)

func New(opts Options) (*Adapter, error) {
	queries := make([]string, 0, len(opts.Queries))
	for _, q := range opts.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("mercadolibre: at least one search query is required")
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	site := strings.ToUpper(strings.TrimSpace(opts.Site))
	if site == "" {
		site = DefaultSite
	}
	client := opts.HTTPClient
	if client == nil {
		client = sources.NewHTTPClient(0)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	a := &Adapter{
		baseURL: base,
		site:    site,
		queries: queries,
		client:  client,
		logger:  log,
	}

	creds := sources.ClientCredentials{
		TokenURL:     base + tokenPath,
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
	}
	if creds.Configured() {
		a.tokens = sources.NewTokenCache(creds.Refresher(client), sources.DefaultTokenMargin)
	}

	return a, nil
}

func (a *Adapter) Name() string { return domain.SourceMercadoLibre }

// Tokens returns the token cache, or nil for anonymous access.
func (a *Adapter) Tokens() *sources.TokenCache { return a.tokens }

// Fetch runs every query for the requested page. A failing query is logged
// and skipped; the fetch only fails when every query failed.
func (a *Adapter) Fetch(ctx context.Context, page, pageSize int) (sources.Page, error) {
	page, pageSize = sources.ClampPage(page, pageSize)

	var (
		out     sources.Page
		lastErr error
		failed  int
	)

	for _, query := range a.queries {
		candidates, full, err := a.search(ctx, query, page, pageSize)
		if err != nil {
			failed++
			lastErr = err
			a.logger.Warn("mercadolibre query failed",
				logger.String("query", query),
				logger.Error(err))
			continue
		}
		out.Candidates = append(out.Candidates, candidates...)
		// Paging goes on while any query still has results upstream.
		out.More = out.More || full
	}

	if failed == len(a.queries) {
		return sources.Page{}, domain.SourceUnavailable(a.Name(), lastErr)
	}
	return out, nil
}

func (a *Adapter) search(ctx context.Context, query string, page, pageSize int) ([]domain.Candidate, bool, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("offset", strconv.Itoa((page-1)*pageSize))
	q.Set("limit", strconv.Itoa(pageSize))
	endpoint := fmt.Sprintf("%s/sites/%s/search?%s", a.baseURL, url.PathEscape(a.site), q.Encode())

	var (
		body []byte
		err  error
	)
	if a.tokens == nil {
		body, err = sources.Get(ctx, a.client, endpoint, nil)
	} else {
		body, err = sources.WithReauth(ctx, a.tokens, func(token string) ([]byte, error) {
			h := http.Header{}
			h.Set("Authorization", "Bearer "+token)
			return sources.Get(ctx, a.client, endpoint, h)
		})
	}
	if err != nil {
		return nil, false, err
	}

	records, err := sources.DecodeRecords(body, "results")
	if err != nil {
		return nil, false, err
	}

	candidates, skipped := sources.MapAll(a.Name(), records, Map, a.logger)
	a.logger.Debug("mercadolibre query fetched",
		logger.String("query", query),
		logger.Int("page", page),
		logger.Int("candidates", len(candidates)),
		logger.Int("skipped", skipped))

	return candidates, sources.Full(len(records), pageSize), nil
}
