package amazon

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/sources"
)

var (
	asinPattern   = regexp.MustCompile(`^[A-Z0-9]{10}$`)
	numberPattern = regexp.MustCompile(`[0-9]+(?:[.,][0-9]+)*`)

	titleSelectors = []string{
		`[data-testid="title"]`,
		".p13n-sc-truncate",
		".p13n-sc-truncated",
		"._cDEzb_p13n-sc-css-line-clamp-1_1Fn1y",
		".a-link-normal span > div",
	}
	priceSelectors = []string{
		".a-price .a-offscreen",
		".p13n-sc-price",
		"._cDEzb_p13n-sc-price_3mJ9Z",
	}
)

// ExtractRecords walks a listing document and returns one raw record per
// distinct ASIN, in page order. Field values are raw strings; Map does the
// normalization.
func ExtractRecords(doc *goquery.Document, base *url.URL) []sources.Record {
	var records []sources.Record
	seen := make(map[string]bool)

	doc.Find("[data-asin]").Each(func(_ int, item *goquery.Selection) {
		asin := strings.TrimSpace(item.AttrOr("data-asin", ""))
		if asin == "" || seen[asin] {
			return
		}
		seen[asin] = true

		rec := sources.Record{"asin": asin}

		if title := firstText(item, titleSelectors); title != "" {
			rec["title"] = title
		} else if alt := strings.TrimSpace(item.Find("img[alt]").First().AttrOr("alt", "")); alt != "" {
			rec["title"] = alt
		}
		if price := firstText(item, priceSelectors); price != "" {
			rec["price"] = price
		}
		if rating := strings.TrimSpace(item.Find(".a-icon-alt").First().Text()); rating != "" {
			rec["rating"] = rating
		}
		if reviews := strings.TrimSpace(item.Find(`a[href*="product-reviews"] .a-size-small`).First().Text()); reviews != "" {
			rec["reviews"] = reviews
		}
		if rank := strings.TrimSpace(item.Find(".zg-bdg-text").First().Text()); rank != "" {
			rec["rank"] = rank
		}
		if href, ok := item.Find(`a[href*="/dp/"]`).First().Attr("href"); ok {
			rec["link"] = absolute(base, href)
		} else {
			rec["link"] = absolute(base, "/dp/"+asin)
		}

		records = append(records, rec)
	})

	return records
}

// Map normalizes one scraped record.
func Map(r sources.Record) sources.Result {
	asin := strings.ToUpper(r.String("asin"))
	if !asinPattern.MatchString(asin) {
		return sources.Skip("invalid asin %q", asin)
	}
	title := r.String("title")
	if title == "" {
		return sources.Skip("asin %s has no title", asin)
	}

	c := domain.Candidate{
		ExternalID: asin,
		Source:     domain.SourceAmazon,
		Name:       title,
		Currency:   r.String("currency"),
		Category:   r.String("category"),
		Link:       r.String("link"),
	}

	if price, ok := sources.ParseAmount(r.String("price")); ok {
		c.Price = price
	}
	// "4.6 out of 5 stars"
	if m := numberPattern.FindString(r.String("rating")); m != "" {
		if v, ok := sources.ParseAmount(m); ok {
			c.Signals.Rating, _ = v.Float64()
		}
	}
	// Review count is the closest public proxy for sales volume.
	if m := numberPattern.FindString(r.String("reviews")); m != "" {
		if v, ok := sources.ParseAmount(strings.NewReplacer(",", "", ".", "").Replace(m)); ok {
			c.Signals.Sales = v.IntPart()
		}
	}
	// Best-seller rank "#3" becomes a trend signal: higher for better ranks.
	if m := numberPattern.FindString(r.String("rank")); m != "" {
		if v, ok := sources.ParseAmount(m); ok && v.IntPart() > 0 && v.IntPart() <= 100 {
			c.Signals.Trend = float64(101 - v.IntPart())
		}
	}

	return sources.Ok(c)
}

func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if txt := strings.TrimSpace(s.Find(sel).First().Text()); txt != "" {
			return txt
		}
	}
	return ""
}

func absolute(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.RawQuery = ""
	abs.Fragment = ""
	return abs.String()
}
