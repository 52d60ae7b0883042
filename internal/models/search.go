package models

import "time"

type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyHigh
	UrgencyVeryHigh
)

func (u Urgency) String() string {
	switch u {
	case UrgencyNormal:
		return "normal"
	case UrgencyHigh:
		return "high"
	case UrgencyVeryHigh:
		return "very_high"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the urgency as its string form so API clients see
// "normal" | "high" | "very_high" rather than an integer.
func (u Urgency) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

func (u *Urgency) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"high"`:
		*u = UrgencyHigh
	case `"very_high"`:
		*u = UrgencyVeryHigh
	default:
		*u = UrgencyNormal
	}
	return nil
}

// SortOrder is the ranking order suggested by a parsed intent.
type SortOrder string

const (
	SortRelevance     SortOrder = "relevance"
	SortPriceAsc      SortOrder = "price_asc"
	SortPriceDesc     SortOrder = "price_desc"
	SortDeliverySpeed SortOrder = "delivery_speed"
)

func ValidSortOrders() []SortOrder {
	return []SortOrder{SortRelevance, SortPriceAsc, SortPriceDesc, SortDeliverySpeed}
}

func IsValidSortOrder(s SortOrder) bool {
	for _, v := range ValidSortOrders() {
		if v == s {
			return true
		}
	}
	return false
}

// SearchIntent is the structured form of a free-text query. It is derived
// fresh per search and discarded afterwards; Query holds the cleaned residual
// terms, not the original text.
type SearchIntent struct {
	Query       string    `json:"query"`
	MinPrice    *float64  `json:"min_price,omitempty"`
	MaxPrice    *float64  `json:"max_price,omitempty"`
	IsB2B       bool      `json:"is_b2b"`
	MadeInNepal bool      `json:"made_in_nepal"`
	Color       string    `json:"color,omitempty"`
	Size        string    `json:"size,omitempty"`
	Urgency     Urgency   `json:"urgency"`
	SortBy      SortOrder `json:"sort_by"`
	Confidence  float64   `json:"confidence"`
}

// Product is a read-only candidate snapshot returned by the product index.
// The ranking pipeline filters and reorders product slices but never mutates
// the elements.
type Product struct {
	ID                    int64    `json:"id"`
	Name                  string   `json:"name"`
	ListedPrice           float64  `json:"listed_price"`
	B2BPrice              *float64 `json:"b2b_price,omitempty"`
	DiscountedPrice       *float64 `json:"discounted_price,omitempty"`
	CategoryID            int64    `json:"category_id,omitempty"`
	Brand                 string   `json:"brand,omitempty"`
	Color                 string   `json:"color,omitempty"`
	Size                  string   `json:"size,omitempty"`
	IsMadeInNepal         bool     `json:"is_made_in_nepal"`
	EstimatedDeliveryDays *int     `json:"estimated_delivery_days,omitempty"`
	Rating                *float64 `json:"rating,omitempty"`
	ReviewCount           int      `json:"review_count"`
	IsAvailable           bool     `json:"is_available"`
	IsFeatured            bool     `json:"is_featured"`

	// Extra fields attached during hydration, not used by the ranking core.
	Fields map[string]any `json:"fields,omitempty"`
}

type InteractionType string

const (
	InteractionView      InteractionType = "view"
	InteractionClick     InteractionType = "click"
	InteractionPurchase  InteractionType = "purchase"
	InteractionAddToCart InteractionType = "add_to_cart"
)

// UserInteraction is one entry of a user's historical interaction log,
// supplied wholesale per ranking call.
type UserInteraction struct {
	UserID          string          `json:"user_id"`
	ProductID       int64           `json:"product_id"`
	CategoryID      int64           `json:"category_id"`
	BrandID         string          `json:"brand_id,omitempty"`
	InteractionType InteractionType `json:"interaction_type"`
	Timestamp       time.Time       `json:"timestamp"`
}

type BoostReason string

const (
	ReasonCategoryMatch   BoostReason = "category_match"
	ReasonBrandMatch      BoostReason = "brand_match"
	ReasonPurchaseHistory BoostReason = "purchase_history"
	ReasonRecentView      BoostReason = "recent_view"
)

// RecommendationBoost is the ephemeral personalization score for one product
// within one ranking call. Score is always within [0, 1].
type RecommendationBoost struct {
	ProductID int64       `json:"product_id"`
	Score     float64     `json:"boost_score"`
	Reason    BoostReason `json:"reason,omitempty"`
}

type SearchRequest struct {
	Query      string `json:"query"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	UserID     string `json:"user_id,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
	Region     string `json:"region,omitempty"`
	ForceFresh bool   `json:"force_fresh,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

type SearchResponse struct {
	Query    string           `json:"query"`
	Intent   *SearchIntent    `json:"intent"`
	Explain  string           `json:"explain"`
	Results  []Product        `json:"results"`
	Metadata ResponseMetadata `json:"metadata"`
	TookMs   int64            `json:"took_ms"`
	Source   string           `json:"source"`
}

type ResponseMetadata struct {
	RequestID    string `json:"request_id,omitempty"`
	TotalResults int    `json:"total_results"`
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	HasNext      bool   `json:"has_next"`
	HasPrevious  bool   `json:"has_previous"`
	PageSize     int    `json:"page_size"`
	CacheHit     bool   `json:"cache_hit"`
	Stale        bool   `json:"stale"`
	Source       string `json:"source,omitempty"`
	Personalized bool   `json:"personalized"`
}

// CatalogEvent is a product catalog change consumed from Kafka and applied to
// the search index.
type CatalogEvent struct {
	Type      string         `json:"type"` // CREATE, UPDATE, DELETE
	ProductID string         `json:"product_id"`
	Region    string         `json:"region,omitempty"`
	Document  map[string]any `json:"document,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Version   int64          `json:"version"`
}

type IndexAction struct {
	Action    string         `json:"action"` // index, delete
	Index     string         `json:"index"`
	ID        string         `json:"id"`
	Routing   string         `json:"routing,omitempty"`
	Body      map[string]any `json:"body,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SearchEvent is the analytics record written to ClickHouse for slow or
// sampled searches.
type SearchEvent struct {
	EventType    string    `json:"event_type"`
	QueryHash    string    `json:"query_hash"`
	SortBy       string    `json:"sort_by"`
	DurationMs   float64   `json:"duration_ms"`
	TotalResults int64     `json:"total_results"`
	Personalized bool      `json:"personalized"`
	TimedOut     bool      `json:"timed_out"`
	Timestamp    time.Time `json:"timestamp"`
	TraceID      string    `json:"trace_id"`
	Source       string    `json:"source"`
}
