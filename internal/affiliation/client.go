// Package affiliation obtains affiliate links for candidates. Every
// implementation reports one of three outcomes and never returns an error:
// transport failures are folded into Unavailable.
package affiliation

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// Status is the outcome of one affiliation attempt.
type Status string

const (
	Approved    Status = "approved"
	Rejected    Status = "rejected"
	Unavailable Status = "unavailable"
)

// Outcome of Affiliate. Link is set only when Status is Approved.
type Outcome struct {
	Status Status
	Link   string
	Reason string
}

func approved(link string) Outcome { return Outcome{Status: Approved, Link: link} }

func rejected(reason string) Outcome { return Outcome{Status: Rejected, Reason: reason} }

func unavailable(reason string) Outcome { return Outcome{Status: Unavailable, Reason: reason} }

// Err converts a non-approved outcome into the matching domain error.
func (o Outcome) Err(op string) error {
	switch o.Status {
	case Approved:
		return nil
	case Rejected:
		return domain.AffiliationRejected(op, errors.New(o.Reason))
	default:
		return domain.AffiliationUnavailable(op, errors.New(o.Reason))
	}
}

// Client requests an affiliate link for one candidate.
type Client interface {
	Affiliate(ctx context.Context, c domain.Candidate) Outcome
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, c domain.Candidate) Outcome

func (f ClientFunc) Affiliate(ctx context.Context, c domain.Candidate) Outcome { return f(ctx, c) }

// TokenSource supplies bearer tokens; sources.TokenCache satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}
