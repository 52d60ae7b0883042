package ranking

import (
	"errors"

	"github.com/nepbay/voice-search/internal/models"
)

// ErrNilProducts and ErrNilIntent mark programmer errors: ranking a list that
// was never fetched is a bug at the call site, not a recoverable condition.
var (
	ErrNilProducts = errors.New("ranking: nil product list")
	ErrNilIntent   = errors.New("ranking: nil intent")
)

// RankProducts runs the full ranking pipeline over a candidate list:
// hard-constraint filtering, intent ordering, geographic and urgency boosts,
// then personalization when user context is present. Every stage is a pure
// reordering or subset; the input slice and its elements are never mutated.
func RankProducts(products []models.Product, intent *models.SearchIntent, interactions []models.UserInteraction, userID string) ([]models.Product, error) {
	if products == nil {
		return nil, ErrNilProducts
	}
	if intent == nil {
		return nil, ErrNilIntent
	}

	out := FilterByIntent(products, intent)
	out = SortByIntent(out, intent.SortBy, intent)
	out = ApplyGeographicBoost(out, intent)
	out = ApplyUrgencyBoost(out, intent.Urgency)
	out = ApplyPersonalization(out, intent, interactions, userID)
	return out, nil
}
