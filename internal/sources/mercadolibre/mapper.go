package mercadolibre

import (
	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/sources"
)

// Map normalizes one search result.
func Map(r sources.Record) sources.Result {
	if r == nil {
		return sources.Skip("record is not an object")
	}

	id := r.String("id", "item_id")
	if id == "" {
		return sources.Skip("missing item id")
	}
	title := r.String("title", "name")
	if title == "" {
		return sources.Skip("item %s has no title", id)
	}

	c := domain.Candidate{
		ExternalID: id,
		Source:     domain.SourceMercadoLibre,
		Name:       title,
		Currency:   r.String("currency_id", "currency", "prices.presentation.display_currency"),
		Category:   r.String("category_name", "category_id", "domain_id"),
		Link:       r.String("permalink", "link", "url"),
	}

	if price, ok := r.Decimal("price", "sale_price.amount", "prices.prices.amount"); ok {
		c.Price = price
	}
	if sold, ok := r.Int("sold_quantity", "sales", "seller.seller_reputation.transactions.completed"); ok {
		c.Signals.Sales = sold
	}
	if rating, ok := r.Float("reviews.rating_average", "rating_average", "rating"); ok {
		c.Signals.Rating = rating
	}
	if discount, ok := r.Float("discount_percentage", "sale_price.metadata.promotion_discount"); ok {
		c.Signals.Trend = discount
	}

	return sources.Ok(c)
}
