package hotmart

import (
	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/sources"
)

// Map normalizes one Hotmart catalog record.
func Map(r sources.Record) sources.Result {
	if r == nil {
		return sources.Skip("record is not an object")
	}

	id := r.String("product_id", "id", "ucode", "product.id")
	if id == "" {
		return sources.Skip("missing product id")
	}

	name := r.String("title", "name", "productName", "product.name")
	if name == "" {
		return sources.Skip("product %s has no title", id)
	}

	if available, ok := r.Bool("affiliate_available", "affiliation.available"); ok && !available {
		return sources.Skip("product %s does not accept affiliates", id)
	}

	c := domain.Candidate{
		ExternalID:  id,
		Source:      domain.SourceHotmart,
		Name:        name,
		Description: r.String("description", "product.description"),
		Currency:    r.String("currency", "currency_code", "price.currency_code", "price.currency"),
		Category:    r.String("category", "category.name", "format"),
		Commission:  r.String("commission", "commission_percentage", "commission.value"),
		Link:        r.String("link", "url", "sales_page", "product.url"),
	}

	if price, ok := r.Decimal("price", "price.value", "price.amount"); ok {
		c.Price = price
	}
	if sales, ok := r.Int("sales", "sales_count", "total_sales", "stats.sales"); ok {
		c.Signals.Sales = sales
	}
	if rating, ok := r.Float("rating", "rating.average", "reviews.rating", "reviews.average"); ok {
		c.Signals.Rating = rating
	}
	if trend, ok := r.Float("temperature", "trending_score", "trend"); ok {
		c.Signals.Trend = trend
	}

	return sources.Ok(c)
}
