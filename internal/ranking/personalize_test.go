package ranking

import (
	"testing"
	"time"

	"github.com/nepbay/voice-search/internal/models"
)

var boostNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func view(productID, categoryID int64, ago time.Duration) models.UserInteraction {
	return models.UserInteraction{
		UserID:          "u1",
		ProductID:       productID,
		CategoryID:      categoryID,
		InteractionType: models.InteractionView,
		Timestamp:       boostNow.Add(-ago),
	}
}

func purchase(productID, categoryID int64) models.UserInteraction {
	return models.UserInteraction{
		UserID:          "u1",
		ProductID:       productID,
		CategoryID:      categoryID,
		InteractionType: models.InteractionPurchase,
		Timestamp:       boostNow.Add(-30 * 24 * time.Hour),
	}
}

func TestComputeBoosts_CategoryAffinity(t *testing.T) {
	products := []models.Product{{ID: 1, CategoryID: 7}}
	interactions := []models.UserInteraction{
		view(100, 7, 40*24*time.Hour),
		view(101, 7, 41*24*time.Hour),
	}

	boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)

	want := 0.2 * 0.3 // two interactions, capped contribution times category weight
	if diff := boosts[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected score %v, got %v", want, boosts[0].Score)
	}
	if boosts[0].Reason != models.ReasonCategoryMatch {
		t.Errorf("expected category_match reason, got %q", boosts[0].Reason)
	}
}

func TestComputeBoosts_CategoryAffinityCapped(t *testing.T) {
	products := []models.Product{{ID: 1, CategoryID: 7}}
	var interactions []models.UserInteraction
	for i := 0; i < 10; i++ {
		interactions = append(interactions, view(int64(100+i), 7, 40*24*time.Hour))
	}

	boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)

	want := 0.3 * 0.3 // capped at 0.3 before the weight
	if diff := boosts[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected capped score %v, got %v", want, boosts[0].Score)
	}
}

func TestComputeBoosts_BrandAffinity(t *testing.T) {
	products := []models.Product{{ID: 1, Brand: "goldstar"}}
	interactions := []models.UserInteraction{
		{UserID: "u1", ProductID: 200, BrandID: "goldstar", InteractionType: models.InteractionClick, Timestamp: boostNow.Add(-20 * 24 * time.Hour)},
	}

	boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)

	want := 0.1 * 0.2
	if diff := boosts[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected score %v, got %v", want, boosts[0].Score)
	}
	if boosts[0].Reason != models.ReasonBrandMatch {
		t.Errorf("expected brand_match reason, got %q", boosts[0].Reason)
	}
}

func TestComputeBoosts_PurchaseHistory(t *testing.T) {
	products := []models.Product{{ID: 1}}
	interactions := []models.UserInteraction{purchase(1, 0)}

	boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)

	if diff := boosts[0].Score - 0.25; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected flat 0.25 purchase boost, got %v", boosts[0].Score)
	}
	if boosts[0].Reason != models.ReasonPurchaseHistory {
		t.Errorf("expected purchase_history reason, got %q", boosts[0].Reason)
	}
}

func TestComputeBoosts_RecentViewDecay(t *testing.T) {
	products := []models.Product{{ID: 1}}

	tests := []struct {
		name string
		ago  time.Duration
		want float64
	}{
		{"just viewed", 0, 1.0 * 0.2 * 0.15},
		{"half window", 60 * time.Hour, 0.5 * 0.2 * 0.15}, // 2.5 days
		{"outside window", 6 * 24 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interactions := []models.UserInteraction{view(1, 0, tt.ago)}
			boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)
			if diff := boosts[0].Score - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("expected score %v, got %v", tt.want, boosts[0].Score)
			}
		})
	}
}

func TestComputeBoosts_MostRecentViewWins(t *testing.T) {
	products := []models.Product{{ID: 1}}
	interactions := []models.UserInteraction{
		view(1, 0, 4*24*time.Hour),
		view(1, 0, 1*24*time.Hour),
	}

	boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)

	want := (1 - 1.0/5.0) * 0.2 * 0.15
	if diff := boosts[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected decay from the most recent view %v, got %v", want, boosts[0].Score)
	}
}

func TestComputeBoosts_ReasonPriority(t *testing.T) {
	// Purchase outranks category, brand and recent view no matter the
	// evaluation order.
	products := []models.Product{{ID: 1, CategoryID: 7, Brand: "goldstar"}}
	interactions := []models.UserInteraction{
		view(1, 7, 24*time.Hour),
		{UserID: "u1", ProductID: 1, CategoryID: 7, BrandID: "goldstar", InteractionType: models.InteractionPurchase, Timestamp: boostNow.Add(-10 * 24 * time.Hour)},
	}

	boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)

	if boosts[0].Reason != models.ReasonPurchaseHistory {
		t.Errorf("expected purchase_history to win, got %q", boosts[0].Reason)
	}
}

func TestComputeBoosts_CategoryOutranksBrand(t *testing.T) {
	products := []models.Product{{ID: 1, CategoryID: 7, Brand: "goldstar"}}
	interactions := []models.UserInteraction{
		{UserID: "u1", ProductID: 300, CategoryID: 7, BrandID: "goldstar", InteractionType: models.InteractionClick, Timestamp: boostNow.Add(-10 * 24 * time.Hour)},
	}

	boosts := ComputeBoosts(products, &models.SearchIntent{}, interactions, boostNow)

	if boosts[0].Reason != models.ReasonCategoryMatch {
		t.Errorf("expected category_match to outrank brand_match, got %q", boosts[0].Reason)
	}
}

func TestComputeBoosts_ScoreClamped(t *testing.T) {
	max := 100000.0
	products := []models.Product{{ID: 1, CategoryID: 7, Brand: "goldstar", ListedPrice: 500}}
	var interactions []models.UserInteraction
	for i := 0; i < 50; i++ {
		interactions = append(interactions, view(1, 7, time.Hour))
	}
	interactions = append(interactions, purchase(1, 7))

	boosts := ComputeBoosts(products, &models.SearchIntent{MaxPrice: &max}, interactions, boostNow)

	for _, b := range boosts {
		if b.Score < 0 || b.Score > 1 {
			t.Errorf("boost score %v outside [0,1]", b.Score)
		}
	}
}

func TestApplyPersonalization_NoUserIsNoOp(t *testing.T) {
	products := []models.Product{{ID: 1}, {ID: 2}}
	interactions := []models.UserInteraction{purchase(2, 0)}

	out := applyPersonalizationAt(products, &models.SearchIntent{}, interactions, "", boostNow)
	if &out[0] != &products[0] {
		t.Error("expected pass-through without a user id")
	}

	out = applyPersonalizationAt(products, &models.SearchIntent{}, nil, "u1", boostNow)
	if &out[0] != &products[0] {
		t.Error("expected pass-through without interaction history")
	}
}

func TestApplyPersonalization_SortsByBoostDescending(t *testing.T) {
	products := []models.Product{{ID: 1}, {ID: 2}, {ID: 3}}
	interactions := []models.UserInteraction{
		purchase(3, 0),
		view(2, 0, 24*time.Hour),
	}

	out := applyPersonalizationAt(products, &models.SearchIntent{}, interactions, "u1", boostNow)
	assertOrder(t, out, []int64{3, 2, 1})
}

func TestApplyPersonalization_TiesPreserveOrder(t *testing.T) {
	products := []models.Product{{ID: 1}, {ID: 2}, {ID: 3}}
	interactions := []models.UserInteraction{
		{UserID: "u1", ProductID: 99, CategoryID: 1, InteractionType: models.InteractionView, Timestamp: boostNow.Add(-100 * 24 * time.Hour)},
	}

	out := applyPersonalizationAt(products, &models.SearchIntent{}, interactions, "u1", boostNow)
	assertOrder(t, out, []int64{1, 2, 3})
}
