// Package amazon scrapes Amazon best-seller listing pages.
package amazon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/sources"
	"github.com/MrSnakeDoc/scout/internal/version"
)

// Options configures the adapter.
type Options struct {
	Pages      []string // listing URLs, e.g. https://www.amazon.com/gp/bestsellers/books
	Currency   string   // currency of the storefront, default USD
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Adapter reads listing pages and yields one candidate per ASIN.
type Adapter struct {
	pages    []*url.URL
	currency string
	client   *http.Client
	logger   logger.Logger
}

var _ sources.Adapter = (*Adapter)(nil)

func New(opts Options) (*Adapter, error) {
	pages := make([]*url.URL, 0, len(opts.Pages))
	for _, raw := range opts.Pages {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("amazon: invalid page url %q", raw)
		}
		pages = append(pages, u)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("amazon: at least one listing page is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = sources.NewHTTPClient(0)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	currency := opts.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	return &Adapter{pages: pages, currency: currency, client: client, logger: log}, nil
}

func (a *Adapter) Name() string { return domain.SourceAmazon }

// Fetch reads page number `page` of every listing. Listings are paginated
// upstream with ?pg=N; pageSize caps the items taken from each listing.
func (a *Adapter) Fetch(ctx context.Context, page, pageSize int) (sources.Page, error) {
	page, pageSize = sources.ClampPage(page, pageSize)

	var (
		out     sources.Page
		lastErr error
		failed  int
	)

	for _, listing := range a.pages {
		u := *listing
		q := u.Query()
		q.Set("pg", strconv.Itoa(page))
		u.RawQuery = q.Encode()

		doc, err := a.fetchDocument(ctx, u.String())
		if err != nil {
			failed++
			lastErr = err
			a.logger.Warn("amazon listing failed",
				logger.String("url", listing.String()),
				logger.Error(err))
			continue
		}

		records := ExtractRecords(doc, listing)
		out.More = out.More || sources.Full(len(records), pageSize)
		if len(records) > pageSize {
			records = records[:pageSize]
		}
		for _, rec := range records {
			rec["currency"] = a.currency
		}

		candidates, skipped := sources.MapAll(a.Name(), records, Map, a.logger)
		a.logger.Debug("amazon listing parsed",
			logger.String("url", listing.String()),
			logger.Int("page", page),
			logger.Int("candidates", len(candidates)),
			logger.Int("skipped", skipped))
		out.Candidates = append(out.Candidates, candidates...)
	}

	if failed == len(a.pages) {
		return sources.Page{}, domain.SourceUnavailable(a.Name(), lastErr)
	}
	return out, nil
}

func (a *Adapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8,es;q=0.6")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amazon returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}
