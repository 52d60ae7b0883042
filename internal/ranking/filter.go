package ranking

import (
	"strings"

	"github.com/nepbay/voice-search/internal/models"
)

// Sentinel defaults for optional product fields, used during filtering and
// sorting instead of rejecting the product.
const (
	missingPrice        = 0.0
	missingRating       = 0.0
	missingDeliveryDays = 999
)

// effectivePrice is the price the buyer would actually pay in this intent
// context: the B2B price in a B2B search, the listed price otherwise.
func effectivePrice(p *models.Product, intent *models.SearchIntent) float64 {
	if intent.IsB2B && p.B2BPrice != nil {
		return *p.B2BPrice
	}
	return p.ListedPrice
}

func deliveryDays(p *models.Product) int {
	if p.EstimatedDeliveryDays == nil {
		return missingDeliveryDays
	}
	return *p.EstimatedDeliveryDays
}

func rating(p *models.Product) float64 {
	if p.Rating == nil {
		return missingRating
	}
	return *p.Rating
}

// FilterByIntent removes candidates that violate the intent's hard
// constraints. Locality preference is deliberately absent here: made-in-nepal
// is a soft preference handled by ordering, never by exclusion.
func FilterByIntent(products []models.Product, intent *models.SearchIntent) []models.Product {
	filtered := make([]models.Product, 0, len(products))
	for i := range products {
		p := &products[i]

		if !p.IsAvailable {
			continue
		}

		// A B2B search only surfaces products that actually carry a B2B price.
		if intent.IsB2B && p.B2BPrice == nil {
			continue
		}

		price := effectivePrice(p, intent)
		if intent.MaxPrice != nil && price > *intent.MaxPrice {
			continue
		}
		if intent.MinPrice != nil && price < *intent.MinPrice {
			continue
		}

		// Absence of a product color is not a mismatch.
		if intent.Color != "" && p.Color != "" &&
			!strings.Contains(strings.ToLower(p.Color), strings.ToLower(intent.Color)) {
			continue
		}

		filtered = append(filtered, *p)
	}
	return filtered
}
