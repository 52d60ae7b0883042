package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/kafka"
)

func newTestHandler() *Handler {
	return &Handler{
		logger: zap.NewNop(),
	}
}

func TestParseSearchRequest_GET(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/search?q=red+shoes&page=2&page_size=30&region=bagmati&user_id=u123&session_key=s-1&force_fresh=true", nil)

	sr, err := h.parseSearchRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Query != "red shoes" {
		t.Errorf("expected query 'red shoes', got %q", sr.Query)
	}
	if sr.Page != 2 {
		t.Errorf("expected page 2, got %d", sr.Page)
	}
	if sr.PageSize != 30 {
		t.Errorf("expected page_size 30, got %d", sr.PageSize)
	}
	if sr.Region != "bagmati" {
		t.Errorf("expected region 'bagmati', got %q", sr.Region)
	}
	if sr.UserID != "u123" {
		t.Errorf("expected user_id 'u123', got %q", sr.UserID)
	}
	if sr.SessionKey != "s-1" {
		t.Errorf("expected session_key 's-1', got %q", sr.SessionKey)
	}
	if !sr.ForceFresh {
		t.Error("expected ForceFresh true")
	}
}

func TestParseSearchRequest_GET_Defaults(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/search?q=laptop", nil)
	sr, err := h.parseSearchRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Page != 0 {
		t.Errorf("expected default page 0, got %d", sr.Page)
	}
	if sr.PageSize != 0 {
		t.Errorf("expected default page_size 0, got %d", sr.PageSize)
	}
	if sr.ForceFresh {
		t.Error("expected ForceFresh false by default")
	}
}

func TestParseSearchRequest_GET_BadPagination(t *testing.T) {
	h := newTestHandler()

	tests := []struct {
		name string
		url  string
	}{
		{"non-numeric page", "/search?q=laptop&page=abc"},
		{"negative page", "/search?q=laptop&page=-1"},
		{"non-numeric page size", "/search?q=laptop&page_size=abc"},
		{"zero page size", "/search?q=laptop&page_size=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			sr, err := h.parseSearchRequest(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sr.Page != 0 || sr.PageSize != 0 {
				t.Errorf("expected defaults for bad input, got page=%d page_size=%d", sr.Page, sr.PageSize)
			}
		})
	}
}

func TestParseSearchRequest_POST(t *testing.T) {
	h := newTestHandler()

	body := `{"query":"wholesale bricks under 500","page":1,"page_size":25,"user_id":"u-9","session_key":"s-2"}`
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))

	sr, err := h.parseSearchRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Query != "wholesale bricks under 500" {
		t.Errorf("unexpected query %q", sr.Query)
	}
	if sr.Page != 1 || sr.PageSize != 25 {
		t.Errorf("unexpected pagination page=%d page_size=%d", sr.Page, sr.PageSize)
	}
	if sr.SessionKey != "s-2" {
		t.Errorf("unexpected session_key %q", sr.SessionKey)
	}
}

func TestParseSearchRequest_POST_InvalidJSON(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("{not json"))
	if _, err := h.parseSearchRequest(req); err == nil {
		t.Error("expected error for invalid JSON body")
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rec := httptest.NewRecorder()

	h.Search(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body["code"] != "missing_query" {
		t.Errorf("expected missing_query code, got %q", body["code"])
	}
}

func TestVoiceSearch_NonMultipart(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/search/voice", strings.NewReader("plain body"))
	rec := httptest.NewRecorder()

	h.VoiceSearch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-multipart body, got %d", rec.Code)
	}
}

func TestExplain_MissingQuery(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/search/explain", nil)
	rec := httptest.NewRecorder()

	h.Explain(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSuggest_MissingQuery(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/suggest", nil)
	rec := httptest.NewRecorder()

	h.Suggest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRecordInteraction_NoProducer(t *testing.T) {
	h := newTestHandler()

	body := `{"user_id":"u1","product_id":42,"interaction_type":"click"}`
	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.RecordInteraction(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without producer, got %d", rec.Code)
	}
}

func TestRecordInteraction_Invalid(t *testing.T) {
	h := newTestHandler()
	h.producer = kafka.NewProducer(config.KafkaConfig{
		Brokers:           []string{"localhost:9092"},
		TopicCatalog:      "catalog.changes",
		TopicInteractions: "user.interactions",
	}, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"missing user", `{"product_id":42,"interaction_type":"click"}`},
		{"missing product", `{"user_id":"u1","interaction_type":"click"}`},
		{"missing type", `{"user_id":"u1","product_id":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.RecordInteraction(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestWriteError_Shape(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()

	h.writeError(rec, http.StatusConflict, "superseded", "A newer search replaced this one")

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body["code"] != "superseded" || body["error"] == "" {
		t.Errorf("unexpected error body: %v", body)
	}
}
