package ranking

import (
	"testing"

	"github.com/nepbay/voice-search/internal/models"
)

func TestSortByIntent_PriceAsc(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 300},
		{ID: 2, ListedPrice: 100},
		{ID: 3, ListedPrice: 200},
	}

	sorted := SortByIntent(products, models.SortPriceAsc, &models.SearchIntent{})
	assertOrder(t, sorted, []int64{2, 3, 1})
}

func TestSortByIntent_PriceDesc(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 300},
		{ID: 2, ListedPrice: 100},
		{ID: 3, ListedPrice: 200},
	}

	sorted := SortByIntent(products, models.SortPriceDesc, &models.SearchIntent{})
	assertOrder(t, sorted, []int64{1, 3, 2})
}

func TestSortByIntent_PriceAsc_B2BPrice(t *testing.T) {
	// In a B2B context the B2B price is the sort key.
	products := []models.Product{
		{ID: 1, ListedPrice: 100, B2BPrice: fptr(90)},
		{ID: 2, ListedPrice: 300, B2BPrice: fptr(50)},
	}

	sorted := SortByIntent(products, models.SortPriceAsc, &models.SearchIntent{IsB2B: true})
	assertOrder(t, sorted, []int64{2, 1})
}

func TestSortByIntent_StableOnEqualKeys(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 100},
		{ID: 2, ListedPrice: 100},
		{ID: 3, ListedPrice: 100},
	}

	sorted := SortByIntent(products, models.SortPriceAsc, &models.SearchIntent{})
	assertOrder(t, sorted, []int64{1, 2, 3})
}

func TestSortByIntent_DeliverySpeed(t *testing.T) {
	products := []models.Product{
		{ID: 1, EstimatedDeliveryDays: iptr(5)},
		{ID: 2, EstimatedDeliveryDays: iptr(2)},
		{ID: 3, EstimatedDeliveryDays: iptr(7), IsFeatured: true},
		{ID: 4}, // missing delivery days sorts as 999
	}

	sorted := SortByIntent(products, models.SortDeliverySpeed, &models.SearchIntent{})
	assertOrder(t, sorted, []int64{3, 2, 1, 4})
}

func TestSortByIntent_Relevance(t *testing.T) {
	products := []models.Product{
		{ID: 1, Rating: fptr(3.5)},
		{ID: 2, Rating: fptr(4.8)},
		{ID: 3, Rating: fptr(2.0), IsFeatured: true},
		{ID: 4}, // missing rating sorts as 0
	}

	sorted := SortByIntent(products, models.SortRelevance, &models.SearchIntent{})
	assertOrder(t, sorted, []int64{3, 2, 1, 4})
}

func TestSortByIntent_DoesNotMutateInput(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 300},
		{ID: 2, ListedPrice: 100},
	}

	SortByIntent(products, models.SortPriceAsc, &models.SearchIntent{})
	assertOrder(t, products, []int64{1, 2})
}

func TestApplyGeographicBoost_NoPreferenceIsNoOp(t *testing.T) {
	products := []models.Product{
		{ID: 1, IsMadeInNepal: false},
		{ID: 2, IsMadeInNepal: true},
	}

	boosted := ApplyGeographicBoost(products, &models.SearchIntent{MadeInNepal: false})

	if &boosted[0] != &products[0] {
		t.Error("expected the same slice back, unreordered")
	}
	assertOrder(t, boosted, []int64{1, 2})
}

func TestApplyGeographicBoost_LocalFirst(t *testing.T) {
	products := []models.Product{
		{ID: 1, IsMadeInNepal: false},
		{ID: 2, IsMadeInNepal: true},
		{ID: 3, IsMadeInNepal: false},
		{ID: 4, IsMadeInNepal: true},
	}

	boosted := ApplyGeographicBoost(products, &models.SearchIntent{MadeInNepal: true})

	// Relative order within each group is preserved.
	assertOrder(t, boosted, []int64{2, 4, 1, 3})
}

func TestApplyUrgencyBoost_NormalIsNoOp(t *testing.T) {
	products := []models.Product{
		{ID: 1, EstimatedDeliveryDays: iptr(5)},
		{ID: 2, EstimatedDeliveryDays: iptr(1)},
	}

	boosted := ApplyUrgencyBoost(products, models.UrgencyNormal)

	if &boosted[0] != &products[0] {
		t.Error("expected the same slice back, unreordered")
	}
	assertOrder(t, boosted, []int64{1, 2})
}

func TestApplyUrgencyBoost_FastDeliveryFirst(t *testing.T) {
	products := []models.Product{
		{ID: 1, EstimatedDeliveryDays: iptr(5)},
		{ID: 2, EstimatedDeliveryDays: iptr(1)},
	}

	boosted := ApplyUrgencyBoost(products, models.UrgencyHigh)
	assertOrder(t, boosted, []int64{2, 1})
}

func TestApplyUrgencyBoost_OrdersWithinGroups(t *testing.T) {
	products := []models.Product{
		{ID: 1, EstimatedDeliveryDays: iptr(4)},
		{ID: 2}, // missing: 999 sentinel, last
		{ID: 3, EstimatedDeliveryDays: iptr(1)},
		{ID: 4, EstimatedDeliveryDays: iptr(0)},
		{ID: 5, EstimatedDeliveryDays: iptr(2)},
	}

	boosted := ApplyUrgencyBoost(products, models.UrgencyVeryHigh)
	assertOrder(t, boosted, []int64{4, 3, 5, 1, 2})
}
