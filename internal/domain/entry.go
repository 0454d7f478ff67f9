package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// Source identifiers. Each SourceAdapter stamps its candidates with one of these.
	SourceHotmart      = "hotmart"
	SourceAmazon       = "amazon"
	SourceMercadoLibre = "mercadolibre"

	DefaultName     = "Sin nombre"
	DefaultCurrency = "USD"
	DefaultCategory = "General"

	// MaxDescriptionLength bounds the stored description, in characters.
	MaxDescriptionLength = 3000

	// MaxPriceDigits bounds the integer part of a price (below 1e12).
	MaxPriceDigits = 12
	// MaxPriceScale bounds the fractional digits of a price.
	MaxPriceScale = 20
)

// Signals are the raw desirability inputs fed to the Scorer.
type Signals struct {
	Sales  int64   `json:"sales"`
	Rating float64 `json:"rating"`
	Trend  float64 `json:"trend"`
}

// Candidate is a normalized product produced by a SourceAdapter before
// scoring and affiliation. It is never persisted as-is.
type Candidate struct {
	ExternalID  string
	Source      string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Category    string
	Commission  string
	Link        string
	Signals     Signals
}

// Key identifies a candidate within one discovery cycle.
func (c Candidate) Key() string {
	return c.Source + "|" + c.ExternalID
}

// Normalize applies the catalog defaults and bounds. Adapters call it after
// mapping; the pipeline calls it again before persisting.
func (c *Candidate) Normalize() {
	c.ExternalID = strings.TrimSpace(c.ExternalID)
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = DefaultName
	}
	c.Description = TruncateRunes(strings.TrimSpace(c.Description), MaxDescriptionLength)
	if c.Price.IsNegative() {
		c.Price = decimal.Zero
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if len(c.Currency) != 3 {
		c.Currency = DefaultCurrency
	}
	c.Category = strings.TrimSpace(c.Category)
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	c.Link = strings.TrimSpace(c.Link)
	if c.Signals.Sales < 0 {
		c.Signals.Sales = 0
	}
}

// CatalogEntry is the canonical persisted product, unique by ExternalID.
type CatalogEntry struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is a surrogate key assigned on first insert.
	ID uuid.UUID `json:"id"`

	// ExternalID is the identifier assigned by the marketplace.
	// It is the upsert key and never changes.
	ExternalID string `json:"external_id"`

	// Source is the adapter that produced the entry (hotmart, amazon, ...).
	Source string `json:"source"`

	// ─────────────────────────────
	// Product description
	// (overwritten on every re-discovery)
	// ─────────────────────────────

	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`

	// Commission is kept verbatim: sources disagree on percentage vs amount.
	Commission string `json:"commission,omitempty"`

	// Link is the public product page.
	Link string `json:"link,omitempty"`

	// ─────────────────────────────
	// Ranking
	// ─────────────────────────────

	Score  float64 `json:"score"`
	Sales  int64   `json:"sales"`
	Rating float64 `json:"rating"`

	// ─────────────────────────────
	// Affiliation & lifecycle
	// ─────────────────────────────

	// AffiliateLink is set only after a successful affiliation.
	AffiliateLink string `json:"affiliate_link,omitempty"`

	// IsAffiliated is never reset to false once set.
	IsAffiliated bool `json:"is_affiliated"`

	// IsActive is cleared by reconciliation, never by deletion.
	IsActive bool `json:"is_active"`

	// MissedCycles counts consecutive successful discovery cycles of the
	// entry's source that did not report it.
	MissedCycles int `json:"missed_cycles"`

	DiscoveredAt time.Time `json:"discovered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewEntry builds an active, not yet persisted entry from a scored candidate.
// affiliateLink may be empty when the candidate was not approved.
func NewEntry(c Candidate, score float64, affiliateLink string) *CatalogEntry {
	c.Normalize()
	return &CatalogEntry{
		ExternalID:    c.ExternalID,
		Source:        c.Source,
		Name:          c.Name,
		Description:   c.Description,
		Price:         c.Price,
		Currency:      c.Currency,
		Category:      c.Category,
		Commission:    c.Commission,
		Link:          c.Link,
		Score:         SanitizeScore(score),
		Sales:         c.Signals.Sales,
		Rating:        c.Signals.Rating,
		AffiliateLink: affiliateLink,
		IsAffiliated:  affiliateLink != "",
		IsActive:      true,
	}
}

// IsNew reports whether the entry was inserted by its most recent upsert.
func (e *CatalogEntry) IsNew() bool {
	return !e.DiscoveredAt.IsZero() && e.DiscoveredAt.Equal(e.UpdatedAt)
}

// Merge applies an incoming upsert onto the stored row and returns the
// result. The stored identity, discovery time and affiliation are kept;
// everything else mutable is taken from incoming.
func Merge(stored, incoming *CatalogEntry, now time.Time) *CatalogEntry {
	out := *stored

	out.Source = incoming.Source
	out.Name = incoming.Name
	if out.Name == "" {
		out.Name = stored.Name
	}
	out.Description = incoming.Description
	out.Price = incoming.Price
	out.Currency = incoming.Currency
	out.Category = incoming.Category
	out.Commission = incoming.Commission
	if incoming.Link != "" {
		out.Link = incoming.Link
	}
	out.Score = SanitizeScore(incoming.Score)
	out.Sales = incoming.Sales
	out.Rating = incoming.Rating
	out.IsActive = incoming.IsActive
	out.MissedCycles = incoming.MissedCycles

	if incoming.IsAffiliated && incoming.AffiliateLink != "" {
		out.IsAffiliated = true
		out.AffiliateLink = incoming.AffiliateLink
	}

	out.UpdatedAt = now
	return &out
}

// PrepareInsert stamps a brand-new entry.
func PrepareInsert(e *CatalogEntry, now time.Time) *CatalogEntry {
	out := *e
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.Name == "" {
		out.Name = DefaultName
	}
	if out.IsAffiliated && out.AffiliateLink == "" {
		out.IsAffiliated = false
	}
	out.Score = SanitizeScore(out.Score)
	out.DiscoveredAt = now
	out.UpdatedAt = now
	return &out
}

// ValidPrice reports whether p fits the catalog: fewer than MaxPriceDigits
// integer digits and at most MaxPriceScale decimals. It only inspects the
// coefficient and exponent, so amounts like 1e20000000 are rejected without
// being expanded.
func ValidPrice(p decimal.Decimal) bool {
	coef := p.Coefficient()
	if coef.Sign() == 0 {
		return true
	}
	exp := int64(p.Exponent())
	if exp < -MaxPriceScale {
		return false
	}
	digits := int64(len(coef.Abs(coef).String()))
	return digits+exp <= MaxPriceDigits
}

// TruncateRunes cuts s to at most n characters without splitting a rune.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
