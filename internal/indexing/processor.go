package indexing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/cache"
	"github.com/nepbay/voice-search/internal/clickhouse"
	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/elasticsearch"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
)

// CatalogProcessor applies product catalog changes to the search index.
// Events buffer up and flush as bulk requests, either when the buffer fills
// or on the flush interval.
type CatalogProcessor struct {
	esClient *elasticsearch.Client
	chClient *clickhouse.Client
	cache    *cache.RedisCache
	esCfg    config.ElasticsearchConfig
	logger   *zap.Logger

	mu     sync.Mutex
	buffer []models.IndexAction
	ticker *time.Ticker
	done   chan struct{}
}

func NewCatalogProcessor(
	esClient *elasticsearch.Client,
	chClient *clickhouse.Client,
	cache *cache.RedisCache,
	esCfg config.ElasticsearchConfig,
	logger *zap.Logger,
) *CatalogProcessor {
	cp := &CatalogProcessor{
		esClient: esClient,
		chClient: chClient,
		cache:    cache,
		esCfg:    esCfg,
		logger:   logger,
		buffer:   make([]models.IndexAction, 0, esCfg.BulkSize),
		ticker:   time.NewTicker(esCfg.BulkFlushInterval),
		done:     make(chan struct{}),
	}

	go cp.flushLoop()

	return cp
}

// HandleMessage is the Kafka consumer entrypoint for the catalog topic.
func (cp *CatalogProcessor) HandleMessage(ctx context.Context, key, value []byte) error {
	var event models.CatalogEvent
	if err := json.Unmarshal(value, &event); err != nil {
		observability.IndexingEventsTotal.WithLabelValues("unknown", "decode_error").Inc()
		return fmt.Errorf("decoding catalog event: %w", err)
	}
	return cp.HandleEvent(ctx, &event)
}

func (cp *CatalogProcessor) HandleEvent(ctx context.Context, event *models.CatalogEvent) error {
	observability.IndexingLag.Set(time.Since(event.Timestamp).Seconds())

	action, err := cp.transformEvent(event)
	if err != nil {
		observability.IndexingEventsTotal.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("transforming catalog event: %w", err)
	}

	cp.mu.Lock()
	cp.buffer = append(cp.buffer, *action)
	shouldFlush := len(cp.buffer) >= cp.esCfg.BulkSize
	cp.mu.Unlock()

	if shouldFlush {
		if err := cp.flush(ctx); err != nil {
			cp.logger.Error("flush on buffer full failed", zap.Error(err))
		}
	}

	// Changelog write is best-effort; the index is the source of truth here.
	if cp.chClient != nil {
		go func() {
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := cp.chClient.InsertCatalogEvent(chCtx, event); err != nil {
				cp.logger.Warn("clickhouse changelog insert failed",
					zap.String("product_id", event.ProductID),
					zap.Error(err),
				)
			}
		}()
	}

	// Cached results for this product's queries are now stale.
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		patterns := buildInvalidationKeys(event)
		if err := cp.cache.InvalidatePattern(cacheCtx, patterns); err != nil {
			cp.logger.Warn("cache invalidation failed",
				zap.String("product_id", event.ProductID),
				zap.Error(err),
			)
		}
	}()

	observability.IndexingEventsTotal.WithLabelValues(event.Type, "success").Inc()
	return nil
}

func (cp *CatalogProcessor) transformEvent(event *models.CatalogEvent) (*models.IndexAction, error) {
	action := &models.IndexAction{
		ID:        event.ProductID,
		Index:     cp.esCfg.ProductIndex,
		Routing:   event.Region,
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case "CREATE", "UPDATE":
		action.Action = "index"
		action.Body = extractIndexFields(event.Document)
	case "DELETE":
		action.Action = "delete"
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}

	return action, nil
}

// extractIndexFields keeps only the fields the ranking pipeline and the
// query builder read. The full document stays in the catalog store.
func extractIndexFields(doc map[string]any) map[string]any {
	fields := map[string]any{
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}

	indexedFields := []string{
		"id", "name", "listed_price", "b2b_price", "discounted_price",
		"category_id", "brand", "color", "size", "is_made_in_nepal",
		"estimated_delivery_days", "rating", "review_count",
		"is_available", "is_featured",
	}

	for _, field := range indexedFields {
		if v, ok := doc[field]; ok {
			fields[field] = v
		}
	}

	return fields
}

func (cp *CatalogProcessor) flushLoop() {
	for {
		select {
		case <-cp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := cp.flush(ctx); err != nil {
				cp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-cp.done:
			return
		}
	}
}

func (cp *CatalogProcessor) flush(ctx context.Context) error {
	cp.mu.Lock()
	if len(cp.buffer) == 0 {
		cp.mu.Unlock()
		return nil
	}
	batch := make([]models.IndexAction, len(cp.buffer))
	copy(batch, cp.buffer)
	cp.buffer = cp.buffer[:0]
	cp.mu.Unlock()

	start := time.Now()
	if err := cp.esClient.BulkIndex(ctx, batch); err != nil {
		// Put failed items back into buffer for retry
		cp.mu.Lock()
		cp.buffer = append(batch, cp.buffer...)
		cp.mu.Unlock()

		observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
		return fmt.Errorf("bulk index flush: %w", err)
	}

	observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(batch)))
	cp.logger.Info("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

func (cp *CatalogProcessor) Stop() error {
	cp.ticker.Stop()
	close(cp.done)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return cp.flush(ctx)
}

func buildInvalidationKeys(event *models.CatalogEvent) []string {
	// Every cached result set may contain this product.
	patterns := []string{"sr:*"}

	if event.Region != "" {
		patterns = append(patterns, fmt.Sprintf("trend:%s", event.Region))
	}

	return patterns
}
