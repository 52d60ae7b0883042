package interactions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/cache"
	"github.com/nepbay/voice-search/internal/clickhouse"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
)

// Processor consumes user interaction events and maintains the per-user
// history the personalization re-ranker reads. Redis holds the hot window;
// ClickHouse keeps the full archive for offline analysis.
type Processor struct {
	cache    *cache.RedisCache
	chClient *clickhouse.Client
	logger   *zap.Logger
}

func NewProcessor(cache *cache.RedisCache, chClient *clickhouse.Client, logger *zap.Logger) *Processor {
	return &Processor{
		cache:    cache,
		chClient: chClient,
		logger:   logger,
	}
}

// HandleMessage is the Kafka consumer entrypoint for the interactions topic.
func (p *Processor) HandleMessage(ctx context.Context, key, value []byte) error {
	var it models.UserInteraction
	if err := json.Unmarshal(value, &it); err != nil {
		observability.InteractionEventsTotal.WithLabelValues("unknown", "decode_error").Inc()
		return fmt.Errorf("decoding interaction event: %w", err)
	}
	return p.HandleEvent(ctx, &it)
}

func (p *Processor) HandleEvent(ctx context.Context, it *models.UserInteraction) error {
	if err := validate(it); err != nil {
		observability.InteractionEventsTotal.WithLabelValues(string(it.InteractionType), "invalid").Inc()
		return err
	}

	if err := p.cache.AppendInteraction(ctx, it); err != nil {
		observability.InteractionEventsTotal.WithLabelValues(string(it.InteractionType), "error").Inc()
		return fmt.Errorf("appending interaction to history: %w", err)
	}

	// Archive write is best-effort; losing it never affects ranking.
	if p.chClient != nil {
		go func() {
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.chClient.InsertInteraction(chCtx, it); err != nil {
				p.logger.Warn("clickhouse interaction archive failed",
					zap.String("user_id", it.UserID),
					zap.Int64("product_id", it.ProductID),
					zap.Error(err),
				)
			}
		}()
	}

	observability.InteractionEventsTotal.WithLabelValues(string(it.InteractionType), "success").Inc()
	return nil
}

func validate(it *models.UserInteraction) error {
	if it.UserID == "" {
		return fmt.Errorf("interaction missing user id")
	}
	if it.ProductID == 0 {
		return fmt.Errorf("interaction missing product id")
	}
	switch it.InteractionType {
	case models.InteractionView, models.InteractionClick, models.InteractionPurchase, models.InteractionAddToCart:
	default:
		return fmt.Errorf("unknown interaction type: %q", it.InteractionType)
	}
	if it.Timestamp.IsZero() {
		return fmt.Errorf("interaction missing timestamp")
	}
	return nil
}
