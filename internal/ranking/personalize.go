package ranking

import (
	"sort"
	"time"

	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
)

// Personalization weights. Each affinity contribution is capped before its
// weight is applied; the final score is clamped to [0, 1].
const (
	categoryWeight   = 0.3
	brandWeight      = 0.2
	recentViewWeight = 0.15
	priceMatchWeight = 0.02

	affinityPerInteraction = 0.1
	affinityCap            = 0.3

	purchaseBoost = 0.25

	recentViewWindowDays = 5.0
	recentViewScale      = 0.2

	priceMatchBase = 0.05
)

// ComputeBoosts calculates one RecommendationBoost per product from the user's
// interaction history. Category affinity compares the interaction's category
// against the product's CategoryID; earlier renditions of this pipeline
// compared it against the product's own id, which only ever matched by
// coincidence.
//
// The reason field reports the highest-priority contributing signal through an
// explicit priority table (purchase_history > category_match > brand_match >
// recent_view) rather than whichever check happened to run last.
func ComputeBoosts(products []models.Product, intent *models.SearchIntent, interactions []models.UserInteraction, now time.Time) []models.RecommendationBoost {
	boosts := make([]models.RecommendationBoost, len(products))
	for i := range products {
		boosts[i] = computeBoost(&products[i], intent, interactions, now)
		observability.PersonalizationBoostScore.Observe(boosts[i].Score)
	}
	return boosts
}

type boostSignals struct {
	category   bool
	brand      bool
	purchase   bool
	recentView bool
}

func (s boostSignals) reason() models.BoostReason {
	switch {
	case s.purchase:
		return models.ReasonPurchaseHistory
	case s.category:
		return models.ReasonCategoryMatch
	case s.brand:
		return models.ReasonBrandMatch
	case s.recentView:
		return models.ReasonRecentView
	default:
		return ""
	}
}

func computeBoost(p *models.Product, intent *models.SearchIntent, interactions []models.UserInteraction, now time.Time) models.RecommendationBoost {
	var score float64
	var signals boostSignals

	categoryCount := 0
	brandCount := 0
	purchased := false
	var lastView time.Time

	for _, it := range interactions {
		if p.CategoryID != 0 && it.CategoryID == p.CategoryID {
			categoryCount++
		}
		if p.Brand != "" && it.BrandID == p.Brand {
			brandCount++
		}
		if it.ProductID == p.ID {
			if it.InteractionType == models.InteractionPurchase {
				purchased = true
			}
			if it.InteractionType == models.InteractionView && it.Timestamp.After(lastView) {
				lastView = it.Timestamp
			}
		}
	}

	if categoryCount > 0 {
		score += cappedAffinity(categoryCount) * categoryWeight
		signals.category = true
	}

	if brandCount > 0 {
		score += cappedAffinity(brandCount) * brandWeight
		signals.brand = true
	}

	if purchased {
		score += purchaseBoost
		signals.purchase = true
	}

	if !lastView.IsZero() {
		days := now.Sub(lastView).Hours() / 24
		if days >= 0 && days < recentViewWindowDays {
			score += (1 - days/recentViewWindowDays) * recentViewScale * recentViewWeight
			signals.recentView = true
		}
	}

	// Negligible nudge for products inside the stated budget.
	if intent.MaxPrice != nil && p.ListedPrice <= *intent.MaxPrice {
		score += priceMatchBase * priceMatchWeight
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	return models.RecommendationBoost{
		ProductID: p.ID,
		Score:     score,
		Reason:    signals.reason(),
	}
}

func cappedAffinity(count int) float64 {
	v := float64(count) * affinityPerInteraction
	if v > affinityCap {
		v = affinityCap
	}
	return v
}

// ApplyPersonalization re-sorts products by descending boost score. Without a
// user id or any interaction history it is a pass-through, same slice.
func ApplyPersonalization(products []models.Product, intent *models.SearchIntent, interactions []models.UserInteraction, userID string) []models.Product {
	return applyPersonalizationAt(products, intent, interactions, userID, time.Now())
}

func applyPersonalizationAt(products []models.Product, intent *models.SearchIntent, interactions []models.UserInteraction, userID string, now time.Time) []models.Product {
	if userID == "" || len(interactions) == 0 {
		return products
	}

	boosts := ComputeBoosts(products, intent, interactions, now)
	scores := make(map[int64]float64, len(boosts))
	for _, b := range boosts {
		scores[b.ProductID] = b.Score
	}

	out := make([]models.Product, len(products))
	copy(out, products)
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	return out
}
