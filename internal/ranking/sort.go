package ranking

import (
	"sort"

	"github.com/nepbay/voice-search/internal/models"
)

// SortByIntent orders products by the intent's suggested sort key. The sort is
// stable: products with equal keys keep their incoming relative order. The
// input slice is not mutated.
func SortByIntent(products []models.Product, sortBy models.SortOrder, intent *models.SearchIntent) []models.Product {
	out := make([]models.Product, len(products))
	copy(out, products)

	switch sortBy {
	case models.SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return effectivePrice(&out[i], intent) < effectivePrice(&out[j], intent)
		})
	case models.SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return effectivePrice(&out[i], intent) > effectivePrice(&out[j], intent)
		})
	case models.SortDeliverySpeed:
		// Featured products lead regardless of delivery days.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].IsFeatured != out[j].IsFeatured {
				return out[i].IsFeatured
			}
			return deliveryDays(&out[i]) < deliveryDays(&out[j])
		})
	default: // relevance
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].IsFeatured != out[j].IsFeatured {
				return out[i].IsFeatured
			}
			return rating(&out[i]) > rating(&out[j])
		})
	}

	return out
}

// ApplyGeographicBoost moves locally made products to the front when the
// intent prefers them. Without the preference the input is returned unchanged,
// same slice, so callers can rely on a true no-op.
func ApplyGeographicBoost(products []models.Product, intent *models.SearchIntent) []models.Product {
	if !intent.MadeInNepal {
		return products
	}

	out := make([]models.Product, len(products))
	copy(out, products)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsMadeInNepal && !out[j].IsMadeInNepal
	})
	return out
}

// ApplyUrgencyBoost moves fast-delivery products (one day or less) ahead of
// everything else when the search is urgent, keeping each group ordered by
// delivery days ascending.
func ApplyUrgencyBoost(products []models.Product, urgency models.Urgency) []models.Product {
	if urgency == models.UrgencyNormal {
		return products
	}

	out := make([]models.Product, len(products))
	copy(out, products)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := deliveryDays(&out[i]), deliveryDays(&out[j])
		fi, fj := di <= 1, dj <= 1
		if fi != fj {
			return fi
		}
		return di < dj
	})
	return out
}
