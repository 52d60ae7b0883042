package interactions

import (
	"testing"
	"time"

	"github.com/nepbay/voice-search/internal/models"
)

func validInteraction() *models.UserInteraction {
	return &models.UserInteraction{
		UserID:          "u-42",
		ProductID:       7,
		CategoryID:      3,
		BrandID:         "everest",
		InteractionType: models.InteractionView,
		Timestamp:       time.Now(),
	}
}

func TestValidate_Accepted(t *testing.T) {
	types := []models.InteractionType{
		models.InteractionView,
		models.InteractionClick,
		models.InteractionPurchase,
		models.InteractionAddToCart,
	}

	for _, typ := range types {
		t.Run(string(typ), func(t *testing.T) {
			it := validInteraction()
			it.InteractionType = typ
			if err := validate(it); err != nil {
				t.Errorf("expected valid interaction, got %v", err)
			}
		})
	}
}

func TestValidate_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(it *models.UserInteraction)
	}{
		{"missing user", func(it *models.UserInteraction) { it.UserID = "" }},
		{"missing product", func(it *models.UserInteraction) { it.ProductID = 0 }},
		{"unknown type", func(it *models.UserInteraction) { it.InteractionType = "hover" }},
		{"empty type", func(it *models.UserInteraction) { it.InteractionType = "" }},
		{"zero timestamp", func(it *models.UserInteraction) { it.Timestamp = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := validInteraction()
			tt.mutate(it)
			if err := validate(it); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
