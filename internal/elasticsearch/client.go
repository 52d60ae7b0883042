package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
	"github.com/nepbay/voice-search/internal/resilience"
)

type Client struct {
	es       *elasticsearch.Client
	cb       *gobreaker.CircuitBreaker
	cfg      config.ElasticsearchConfig
	retryCfg config.RetryConfig
	logger   *zap.Logger
}

func NewClient(cfg config.ElasticsearchConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned status: %s", res.Status())
	}

	cb := resilience.NewCircuitBreaker("elasticsearch-products", searchCfg.CircuitBreaker, logger)

	logger.Info("elasticsearch client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		es:       es,
		cb:       cb,
		cfg:      cfg,
		retryCfg: searchCfg.Retry,
		logger:   logger,
	}, nil
}

// ProductResult is one candidate retrieval from the product index, before
// the ranking pipeline runs.
type ProductResult struct {
	Products []models.Product
	Total    int64
	TookMs   int64
	TimedOut bool
}

func (c *Client) SearchProducts(ctx context.Context, query map[string]any) (*ProductResult, error) {
	ctx, span := observability.StartSpan(ctx, "es.search_products",
		attribute.String("es.index", c.cfg.ProductIndex),
	)
	defer span.End()

	start := time.Now()

	cbResult, err := c.cb.Execute(func() (any, error) {
		var retryResult *ProductResult
		retryErr := resilience.Retry(ctx, c.retryCfg, func() error {
			var execErr error
			retryResult, execErr = c.executeSearch(ctx, query)
			return execErr
		})
		return retryResult, retryErr
	})

	duration := time.Since(start)
	if err != nil {
		observability.ESQueryDuration.WithLabelValues(c.cfg.ProductIndex, "error").Observe(duration.Seconds())
		return nil, fmt.Errorf("es search (index=%s): %w", c.cfg.ProductIndex, err)
	}

	result, ok := cbResult.(*ProductResult)
	if !ok || result == nil {
		observability.ESQueryDuration.WithLabelValues(c.cfg.ProductIndex, "error").Observe(duration.Seconds())
		return nil, fmt.Errorf("es search (index=%s): unexpected nil result from circuit breaker", c.cfg.ProductIndex)
	}
	observability.ESQueryDuration.WithLabelValues(c.cfg.ProductIndex, "success").Observe(duration.Seconds())

	return result, nil
}

func (c *Client) executeSearch(ctx context.Context, query map[string]any) (*ProductResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshaling es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.cfg.ProductIndex),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTimeout(c.cfg.RequestTimeout),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("executing es search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es search error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decoding es response: %w", err)
	}

	products := make([]models.Product, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		if h.Source == nil {
			continue
		}
		products = append(products, productFromSource(h.Source))
	}

	return &ProductResult{
		Products: products,
		Total:    esResp.Hits.Total.Value,
		TookMs:   esResp.Took,
		TimedOut: esResp.TimedOut,
	}, nil
}

// productFromSource maps an indexed document onto the candidate snapshot the
// ranking pipeline works with. Missing optional fields stay nil.
func productFromSource(src map[string]any) models.Product {
	p := models.Product{}

	if v, ok := src["id"].(float64); ok {
		p.ID = int64(v)
	}
	if v, ok := src["name"].(string); ok {
		p.Name = v
	}
	if v, ok := src["listed_price"].(float64); ok {
		p.ListedPrice = v
	}
	if v, ok := src["b2b_price"].(float64); ok {
		p.B2BPrice = &v
	}
	if v, ok := src["discounted_price"].(float64); ok {
		p.DiscountedPrice = &v
	}
	if v, ok := src["category_id"].(float64); ok {
		p.CategoryID = int64(v)
	}
	if v, ok := src["brand"].(string); ok {
		p.Brand = v
	}
	if v, ok := src["color"].(string); ok {
		p.Color = v
	}
	if v, ok := src["size"].(string); ok {
		p.Size = v
	}
	if v, ok := src["is_made_in_nepal"].(bool); ok {
		p.IsMadeInNepal = v
	}
	if v, ok := src["estimated_delivery_days"].(float64); ok {
		days := int(v)
		p.EstimatedDeliveryDays = &days
	}
	if v, ok := src["rating"].(float64); ok {
		p.Rating = &v
	}
	if v, ok := src["review_count"].(float64); ok {
		p.ReviewCount = int(v)
	}
	if v, ok := src["is_available"].(bool); ok {
		p.IsAvailable = v
	}
	if v, ok := src["is_featured"].(bool); ok {
		p.IsFeatured = v
	}

	return p
}

func (c *Client) BulkIndex(ctx context.Context, actions []models.IndexAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "es.bulk_index",
		attribute.Int("batch_size", len(actions)),
	)
	defer span.End()

	var buf bytes.Buffer
	for _, action := range actions {
		meta := map[string]any{
			action.Action: map[string]any{
				"_index": action.Index,
				"_id":    action.ID,
			},
		}
		if action.Routing != "" {
			if inner, ok := meta[action.Action].(map[string]any); ok {
				inner["routing"] = action.Routing
			}
		}

		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshaling bulk meta: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		if action.Action != "delete" && action.Body != nil {
			bodyLine, err := json.Marshal(action.Body)
			if err != nil {
				return fmt.Errorf("marshaling bulk body: %w", err)
			}
			buf.Write(bodyLine)
			buf.WriteByte('\n')
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			for _, result := range item {
				if result.Error != nil {
					errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s", result.ID, result.Error.Reason))
				}
			}
		}
		return fmt.Errorf("bulk indexing had errors: %s", strings.Join(errMsgs, "; "))
	}

	return nil
}

// Suggest runs a completion query and returns the option texts in order.
func (c *Client) Suggest(ctx context.Context, query map[string]any) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, "es.suggest")
	defer span.End()

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshaling suggest query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.cfg.ProductIndex),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("executing suggest: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("suggest error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var suggestResp struct {
		Suggest map[string][]struct {
			Options []struct {
				Text string `json:"text"`
			} `json:"options"`
		} `json:"suggest"`
	}
	if err := json.NewDecoder(res.Body).Decode(&suggestResp); err != nil {
		return nil, fmt.Errorf("decoding suggest response: %w", err)
	}

	var out []string
	for _, entries := range suggestResp.Suggest {
		for _, entry := range entries {
			for _, opt := range entry.Options {
				out = append(out, opt.Text)
			}
		}
	}
	return out, nil
}

func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return "red", fmt.Errorf("es health check: %w", err)
	}
	defer res.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "red", fmt.Errorf("decoding health response: %w", err)
	}
	return health.Status, nil
}

func (c *Client) Close() error {
	return nil
}

// ES response types

type esSearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Shards   struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Skipped    int `json:"skipped"`
		Failed     int `json:"failed"`
	} `json:"_shards"`
	Hits struct {
		Total struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}
