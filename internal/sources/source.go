// Package sources defines the marketplace adapter contract and the helpers
// shared by every concrete adapter: raw record probing, tagged normalization
// results and the bearer token cache.
package sources

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
)

const (
	// DefaultPageSize is used when a caller passes pageSize <= 0.
	DefaultPageSize = 50
	// MaxPageSize bounds a single upstream request.
	MaxPageSize = 100
)

// Adapter fetches one page of candidates from a marketplace.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, page, pageSize int) (Page, error)
}

// Page is one fetched page. More reflects the raw upstream record count,
// not the mapped candidates: skipped records never end paging early.
type Page struct {
	Candidates []domain.Candidate
	More       bool
}

// Full reports whether an upstream page returned as many records as asked,
// which is the only signal that a next page may exist.
func Full(records, pageSize int) bool {
	return records > 0 && records >= pageSize
}

// Result is the tagged outcome of normalizing one raw record:
// either a Candidate or the reason it was skipped.
type Result struct {
	Candidate domain.Candidate
	Skipped   bool
	Reason    string
}

// Ok wraps a normalized candidate. A price outside the catalog range turns
// the record into a skip.
func Ok(c domain.Candidate) Result {
	if !domain.ValidPrice(c.Price) {
		return Skip("item %s has an out of range price", c.ExternalID)
	}
	c.Normalize()
	return Result{Candidate: c}
}

// Skip drops a record with a reason.
func Skip(format string, args ...interface{}) Result {
	return Result{Skipped: true, Reason: fmt.Sprintf(format, args...)}
}

// Mapper turns one raw record into a Result.
type Mapper func(Record) Result

// MapAll applies m to every record. A panicking mapper only loses its own
// record. Skips are logged at debug level and counted.
func MapAll(source string, records []Record, m Mapper, log logger.Logger) ([]domain.Candidate, int) {
	out := make([]domain.Candidate, 0, len(records))
	skipped := 0

	for i, rec := range records {
		res := safeMap(m, rec)
		if res.Skipped {
			skipped++
			log.Debug("record skipped",
				logger.String("source", source),
				logger.Int("index", i),
				logger.Error(domain.SourceDataInvalid(source, fmt.Errorf("%s", res.Reason))))
			continue
		}
		out = append(out, res.Candidate)
	}

	return out, skipped
}

func safeMap(m Mapper, rec Record) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Skip("mapper panic: %v", r)
		}
	}()
	return m(rec)
}

// ClampPage validates paging arguments.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
