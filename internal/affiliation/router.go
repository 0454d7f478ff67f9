package affiliation

import (
	"context"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// Router dispatches to the client registered for the candidate's source.
// With autoApprove set, sources without a client approve the candidate's
// own product link.
type Router struct {
	clients     map[string]Client
	autoApprove bool
}

func NewRouter(autoApprove bool) *Router {
	return &Router{clients: make(map[string]Client), autoApprove: autoApprove}
}

// Handle registers c for source. Not safe to call concurrently with Affiliate.
func (r *Router) Handle(source string, c Client) {
	r.clients[source] = c
}

func (r *Router) Affiliate(ctx context.Context, c domain.Candidate) Outcome {
	if client, ok := r.clients[c.Source]; ok {
		return client.Affiliate(ctx, c)
	}
	if r.autoApprove && c.Link != "" {
		return approved(c.Link)
	}
	return unavailable("no affiliation client for source " + c.Source)
}
