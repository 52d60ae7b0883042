package orchestrator

import (
	"strings"

	"github.com/nepbay/voice-search/internal/models"
)

// QueryBuilder turns a parsed intent into the candidate retrieval query. The
// query is a coarse cut: it narrows the index to plausible candidates, and the
// in-process ranking pipeline applies the exact filter and ordering semantics.
type QueryBuilder struct{}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

func (qb *QueryBuilder) BuildCandidateQuery(intent *models.SearchIntent, candidateSize int) map[string]any {
	boolQuery := map[string]any{}

	if intent.Query != "" {
		boolQuery["must"] = []map[string]any{
			{
				"multi_match": map[string]any{
					"query":     intent.Query,
					"type":      "best_fields",
					"fields":    []string{"name^3", "brand^2", "color", "size"},
					"fuzziness": "AUTO",
				},
			},
		}
	} else {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	filters := []map[string]any{
		{"term": map[string]any{"is_available": true}},
	}

	priceField := "listed_price"
	if intent.IsB2B {
		priceField = "b2b_price"
		filters = append(filters, map[string]any{
			"exists": map[string]any{"field": "b2b_price"},
		})
	}

	if intent.MinPrice != nil || intent.MaxPrice != nil {
		rangeBody := map[string]any{}
		if intent.MinPrice != nil {
			rangeBody["gte"] = *intent.MinPrice
		}
		if intent.MaxPrice != nil {
			rangeBody["lte"] = *intent.MaxPrice
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{priceField: rangeBody},
		})
	}

	boolQuery["filter"] = filters

	// Preference signals stay soft at retrieval time; locality and color are
	// boosts here and hard rules in the ranking pipeline where applicable.
	var should []map[string]any
	if intent.MadeInNepal {
		should = append(should, map[string]any{
			"term": map[string]any{
				"is_made_in_nepal": map[string]any{"value": true, "boost": 2.0},
			},
		})
	}
	if intent.Color != "" {
		// The intent reports the canonical uppercase token; the index stores
		// colors lowercase.
		should = append(should, map[string]any{
			"term": map[string]any{
				"color": map[string]any{"value": strings.ToLower(intent.Color), "boost": 1.5},
			},
		})
	}
	if intent.Size != "" {
		should = append(should, map[string]any{
			"term": map[string]any{
				"size": map[string]any{"value": intent.Size, "boost": 1.2},
			},
		})
	}
	if len(should) > 0 {
		boolQuery["should"] = should
	}

	return map[string]any{
		"query": map[string]any{
			"bool": boolQuery,
		},
		"from": 0,
		"size": candidateSize,
	}
}

func (qb *QueryBuilder) BuildSuggestQuery(prefix string, size int) map[string]any {
	return map[string]any{
		"size": 0,
		"suggest": map[string]any{
			"product_suggest": map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           "name.suggest",
					"size":            size,
					"skip_duplicates": true,
					"fuzzy": map[string]any{
						"fuzziness": "AUTO",
					},
				},
			},
		},
	}
}
