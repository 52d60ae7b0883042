package indexing

import (
	"testing"
	"time"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/models"
)

func TestBuildInvalidationKeys_AlwaysInvalidatesResults(t *testing.T) {
	event := &models.CatalogEvent{ProductID: "42"}

	keys := buildInvalidationKeys(event)

	if len(keys) != 1 || keys[0] != "sr:*" {
		t.Errorf("expected only sr:* pattern, got %v", keys)
	}
}

func TestBuildInvalidationKeys_WithRegion(t *testing.T) {
	event := &models.CatalogEvent{ProductID: "42", Region: "bagmati"}

	keys := buildInvalidationKeys(event)

	found := false
	for _, k := range keys {
		if k == "trend:bagmati" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'trend:bagmati' in keys, got %v", keys)
	}
}

func TestExtractIndexFields(t *testing.T) {
	doc := map[string]any{
		"id":               float64(42),
		"name":             "Wool Sweater",
		"listed_price":     float64(2500),
		"b2b_price":        float64(2000),
		"category_id":      float64(7),
		"brand":            "everest",
		"is_made_in_nepal": true,
		"is_available":     true,
		"supplier_email":   "should not appear",
		"cost_price":       float64(1200),
	}

	fields := extractIndexFields(doc)

	for _, f := range []string{"id", "name", "listed_price", "b2b_price", "category_id", "brand", "is_made_in_nepal", "is_available", "updated_at"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("expected field %q in indexed fields", f)
		}
	}

	if _, ok := fields["supplier_email"]; ok {
		t.Error("supplier_email should not be indexed")
	}
	if _, ok := fields["cost_price"]; ok {
		t.Error("cost_price should not be indexed")
	}
}

func TestExtractIndexFields_EmptyDoc(t *testing.T) {
	fields := extractIndexFields(map[string]any{})

	if _, ok := fields["updated_at"]; !ok {
		t.Error("expected updated_at even for empty doc")
	}
	if len(fields) != 1 {
		t.Errorf("expected 1 field for empty doc, got %d", len(fields))
	}
}

func TestTransformEvent_Create(t *testing.T) {
	cp := &CatalogProcessor{esCfg: config.ElasticsearchConfig{ProductIndex: "products"}}

	event := &models.CatalogEvent{
		Type:      "CREATE",
		ProductID: "42",
		Region:    "bagmati",
		Document: map[string]any{
			"name":         "Wool Sweater",
			"listed_price": float64(2500),
		},
		Timestamp: time.Now(),
	}

	action, err := cp.transformEvent(event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if action.Action != "index" {
		t.Errorf("expected index action, got %q", action.Action)
	}
	if action.Index != "products" {
		t.Errorf("expected products index, got %q", action.Index)
	}
	if action.ID != "42" {
		t.Errorf("expected id 42, got %q", action.ID)
	}
	if action.Routing != "bagmati" {
		t.Errorf("expected routing bagmati, got %q", action.Routing)
	}
	if action.Body["name"] != "Wool Sweater" {
		t.Errorf("expected name in body, got %v", action.Body)
	}
}

func TestTransformEvent_Delete(t *testing.T) {
	cp := &CatalogProcessor{esCfg: config.ElasticsearchConfig{ProductIndex: "products"}}

	event := &models.CatalogEvent{
		Type:      "DELETE",
		ProductID: "7",
		Timestamp: time.Now(),
	}

	action, err := cp.transformEvent(event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if action.Action != "delete" {
		t.Errorf("expected delete action, got %q", action.Action)
	}
	if action.Body != nil {
		t.Errorf("delete action should carry no body, got %v", action.Body)
	}
}

func TestTransformEvent_UnknownType(t *testing.T) {
	cp := &CatalogProcessor{esCfg: config.ElasticsearchConfig{ProductIndex: "products"}}

	event := &models.CatalogEvent{Type: "UPSERT", ProductID: "7"}

	if _, err := cp.transformEvent(event); err == nil {
		t.Error("expected error for unknown event type")
	}
}
