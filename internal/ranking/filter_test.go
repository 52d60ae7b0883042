package ranking

import (
	"testing"

	"github.com/nepbay/voice-search/internal/models"
)

func fptr(v float64) *float64 { return &v }

func iptr(v int) *int { return &v }

func productIDs(products []models.Product) []int64 {
	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func assertOrder(t *testing.T, got []models.Product, want []int64) {
	t.Helper()
	ids := productIDs(got)
	if len(ids) != len(want) {
		t.Fatalf("expected %d products %v, got %v", len(want), want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, ids)
		}
	}
}

func TestFilterByIntent_MaxPrice(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 600, IsAvailable: true},
		{ID: 2, ListedPrice: 400, IsAvailable: true},
	}
	intent := &models.SearchIntent{MaxPrice: fptr(500)}

	assertOrder(t, FilterByIntent(products, intent), []int64{2})
}

func TestFilterByIntent_MinPrice(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 600, IsAvailable: true},
		{ID: 2, ListedPrice: 400, IsAvailable: true},
	}
	intent := &models.SearchIntent{MinPrice: fptr(500)}

	assertOrder(t, FilterByIntent(products, intent), []int64{1})
}

func TestFilterByIntent_InclusiveBounds(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 500, IsAvailable: true},
	}
	intent := &models.SearchIntent{MinPrice: fptr(500), MaxPrice: fptr(500)}

	assertOrder(t, FilterByIntent(products, intent), []int64{1})
}

func TestFilterByIntent_B2BRequiresB2BPrice(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 100, IsAvailable: true},
		{ID: 2, ListedPrice: 100, B2BPrice: fptr(80), IsAvailable: true},
	}
	intent := &models.SearchIntent{IsB2B: true}

	assertOrder(t, FilterByIntent(products, intent), []int64{2})
}

func TestFilterByIntent_B2BUsesB2BPriceForBounds(t *testing.T) {
	// Listed price is over budget but the B2B price is within it.
	products := []models.Product{
		{ID: 1, ListedPrice: 600, B2BPrice: fptr(450), IsAvailable: true},
	}
	intent := &models.SearchIntent{IsB2B: true, MaxPrice: fptr(500)}

	assertOrder(t, FilterByIntent(products, intent), []int64{1})
}

func TestFilterByIntent_ColorMismatch(t *testing.T) {
	products := []models.Product{
		{ID: 1, Color: "blue", IsAvailable: true},
		{ID: 2, Color: "dark red", IsAvailable: true},
		{ID: 3, IsAvailable: true}, // no color attribute: not excluded
	}
	intent := &models.SearchIntent{Color: "RED"}

	assertOrder(t, FilterByIntent(products, intent), []int64{2, 3})
}

func TestFilterByIntent_Unavailable(t *testing.T) {
	products := []models.Product{
		{ID: 1, IsAvailable: false},
		{ID: 2, IsAvailable: true},
	}
	intent := &models.SearchIntent{}

	assertOrder(t, FilterByIntent(products, intent), []int64{2})
}

func TestFilterByIntent_LocalityIsNotAHardFilter(t *testing.T) {
	products := []models.Product{
		{ID: 1, IsMadeInNepal: false, IsAvailable: true},
		{ID: 2, IsMadeInNepal: true, IsAvailable: true},
	}
	intent := &models.SearchIntent{MadeInNepal: true}

	assertOrder(t, FilterByIntent(products, intent), []int64{1, 2})
}

func TestFilterByIntent_Idempotent(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 600, IsAvailable: true},
		{ID: 2, ListedPrice: 400, IsAvailable: true},
		{ID: 3, ListedPrice: 300, IsAvailable: false},
		{ID: 4, ListedPrice: 450, Color: "blue", IsAvailable: true},
	}
	intent := &models.SearchIntent{MaxPrice: fptr(500), Color: "RED"}

	once := FilterByIntent(products, intent)
	twice := FilterByIntent(once, intent)

	assertOrder(t, twice, productIDs(once))
}

func TestFilterByIntent_DoesNotMutateInput(t *testing.T) {
	products := []models.Product{
		{ID: 1, ListedPrice: 600, IsAvailable: true},
		{ID: 2, ListedPrice: 400, IsAvailable: true},
	}
	intent := &models.SearchIntent{MaxPrice: fptr(500)}

	FilterByIntent(products, intent)

	assertOrder(t, products, []int64{1, 2})
}
