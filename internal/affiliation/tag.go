package affiliation

import (
	"context"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// TagLinker builds associate links locally by appending a partner tag to
// the product URL. It is used for stores whose programs do not expose a
// per-product enrollment API.
type TagLinker struct {
	host string
	tag  string
}

// NewTagLinker returns a linker for host (e.g. www.amazon.com).
func NewTagLinker(host, tag string) *TagLinker {
	if host == "" {
		host = "www.amazon.com"
	}
	return &TagLinker{host: host, tag: strings.TrimSpace(tag)}
}

func (t *TagLinker) Affiliate(_ context.Context, c domain.Candidate) Outcome {
	if t.tag == "" {
		return unavailable("no partner tag configured")
	}
	if c.ExternalID == "" {
		return rejected("candidate has no product id")
	}

	u := url.URL{
		Scheme: "https",
		Host:   t.host,
		Path:   "/dp/" + url.PathEscape(c.ExternalID),
	}
	q := url.Values{}
	q.Set("tag", t.tag)
	u.RawQuery = q.Encode()

	return approved(u.String())
}
