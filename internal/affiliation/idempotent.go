package affiliation

import (
	"context"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// Lookup reads the stored entry for an external id. It returns (nil, nil)
// when the entry does not exist.
type Lookup func(ctx context.Context, externalID string) (*domain.CatalogEntry, error)

// Idempotent short-circuits candidates already affiliated in the catalog:
// their stored link is returned without contacting the marketplace.
type Idempotent struct {
	next   Client
	lookup Lookup
}

func NewIdempotent(next Client, lookup Lookup) *Idempotent {
	return &Idempotent{next: next, lookup: lookup}
}

func (i *Idempotent) Affiliate(ctx context.Context, c domain.Candidate) Outcome {
	stored, err := i.lookup(ctx, c.ExternalID)
	if err != nil {
		// Unknown catalog state: never risk a duplicate enrollment.
		return unavailable("catalog lookup failed: " + err.Error())
	}
	if stored != nil && stored.IsAffiliated && stored.AffiliateLink != "" {
		return approved(stored.AffiliateLink)
	}
	return i.next.Affiliate(ctx, c)
}
