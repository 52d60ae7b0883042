package ranking

import (
	"fmt"
	"strings"

	"github.com/nepbay/voice-search/internal/models"
)

// ExplainIntent renders a human-readable, pipe-separated summary of every
// non-default field of the intent. An intent with no detected signal yields
// "Standard search".
func ExplainIntent(intent *models.SearchIntent) string {
	var parts []string

	if intent.IsB2B {
		parts = append(parts, "B2B pricing")
	}
	if intent.MadeInNepal {
		parts = append(parts, "Made in Nepal preferred")
	}

	switch {
	case intent.MinPrice != nil && intent.MaxPrice != nil:
		parts = append(parts, fmt.Sprintf("Price Rs. %s to Rs. %s",
			formatPrice(*intent.MinPrice), formatPrice(*intent.MaxPrice)))
	case intent.MaxPrice != nil:
		parts = append(parts, fmt.Sprintf("Under Rs. %s", formatPrice(*intent.MaxPrice)))
	case intent.MinPrice != nil:
		parts = append(parts, fmt.Sprintf("Above Rs. %s", formatPrice(*intent.MinPrice)))
	}

	if intent.Color != "" {
		parts = append(parts, "Color: "+intent.Color)
	}
	if intent.Size != "" {
		parts = append(parts, "Size: "+intent.Size)
	}

	if intent.Urgency != models.UrgencyNormal {
		parts = append(parts, "Urgency: "+intent.Urgency.String())
	}

	switch intent.SortBy {
	case models.SortPriceAsc:
		parts = append(parts, "Sorted by lowest price")
	case models.SortPriceDesc:
		parts = append(parts, "Sorted by highest price")
	case models.SortDeliverySpeed:
		parts = append(parts, "Sorted by fastest delivery")
	}

	if len(parts) == 0 {
		return "Standard search"
	}
	return strings.Join(parts, " | ")
}

func formatPrice(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
