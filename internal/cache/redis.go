package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
)

type RedisCache struct {
	client      redis.UniversalClient
	ttl         config.CacheTTLConfig
	historySize int
	logger      *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, historySize int, logger *zap.Logger) (*RedisCache, error) {
	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return &RedisCache{
		client:      client,
		ttl:         cfg.TTL,
		historySize: historySize,
		logger:      logger,
	}, nil
}

func (rc *RedisCache) GetSearchResults(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	return rc.getResponse(ctx, rc.buildSearchKey(req))
}

// SetSearchResults writes both the fresh entry and a long-lived stale copy
// used when all search backends are down.
func (rc *RedisCache) SetSearchResults(ctx context.Context, req *models.SearchRequest, resp *models.SearchResponse) error {
	if err := rc.setResponse(ctx, rc.buildSearchKey(req), resp, rc.ttl.SearchResults); err != nil {
		return err
	}
	return rc.setResponse(ctx, rc.buildStaleKey(req), resp, rc.ttl.StaleFallback)
}

func (rc *RedisCache) GetStaleResults(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	return rc.getResponse(ctx, rc.buildStaleKey(req))
}

func (rc *RedisCache) InvalidatePattern(ctx context.Context, patterns []string) error {
	for _, pattern := range patterns {
		iter := rc.client.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			rc.logger.Warn("cache scan error", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				rc.logger.Warn("cache delete error", zap.Strings("keys", keys), zap.Error(err))
			}
		}
	}
	return nil
}

func (rc *RedisCache) GetSuggestions(ctx context.Context, prefix string) ([]string, error) {
	key := fmt.Sprintf("sug:%s", hashString(prefix))
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get suggestions: %w", err)
	}
	observability.CacheHits.Inc()
	var results []string
	if err := json.Unmarshal([]byte(val), &results); err != nil {
		return nil, fmt.Errorf("cache unmarshal suggestions: %w", err)
	}
	return results, nil
}

func (rc *RedisCache) SetSuggestions(ctx context.Context, prefix string, results []string) error {
	key := fmt.Sprintf("sug:%s", hashString(prefix))
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("cache marshal suggestions: %w", err)
	}
	return rc.client.Set(ctx, key, data, rc.ttl.Suggestions).Err()
}

func (rc *RedisCache) GetTrending(ctx context.Context, region string) ([]string, error) {
	key := fmt.Sprintf("trend:%s", region)
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get trending: %w", err)
	}
	var results []string
	if err := json.Unmarshal([]byte(val), &results); err != nil {
		return nil, fmt.Errorf("cache unmarshal trending: %w", err)
	}
	return results, nil
}

func (rc *RedisCache) SetTrending(ctx context.Context, region string, queries []string) error {
	key := fmt.Sprintf("trend:%s", region)
	data, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("cache marshal trending: %w", err)
	}
	return rc.client.Set(ctx, key, data, rc.ttl.Trending).Err()
}

// AppendInteraction pushes an interaction onto the user's history list and
// trims it to the configured window. Newest interactions sit at the head.
func (rc *RedisCache) AppendInteraction(ctx context.Context, it *models.UserInteraction) error {
	if it.UserID == "" {
		return fmt.Errorf("interaction missing user id")
	}
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("cache marshal interaction: %w", err)
	}
	key := interactionKey(it.UserID)
	pipe := rc.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(rc.historySize-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache append interaction: %w", err)
	}
	return nil
}

// GetUserInteractions returns the user's recent interaction history, newest
// first. Entries that fail to decode are skipped.
func (rc *RedisCache) GetUserInteractions(ctx context.Context, userID string) ([]models.UserInteraction, error) {
	if userID == "" {
		return nil, nil
	}
	vals, err := rc.client.LRange(ctx, interactionKey(userID), 0, int64(rc.historySize-1)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get interactions: %w", err)
	}

	interactions := make([]models.UserInteraction, 0, len(vals))
	for _, v := range vals {
		var it models.UserInteraction
		if err := json.Unmarshal([]byte(v), &it); err != nil {
			rc.logger.Warn("skipping malformed interaction entry",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		interactions = append(interactions, it)
	}
	return interactions, nil
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) getResponse(ctx context.Context, key string) (*models.SearchResponse, error) {
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	observability.CacheHits.Inc()
	var resp models.SearchResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("cache unmarshal: %w", err)
	}
	return &resp, nil
}

func (rc *RedisCache) setResponse(ctx context.Context, key string, resp *models.SearchResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

// Personalized results differ per user, so the user ID is part of the key.
func (rc *RedisCache) buildSearchKey(req *models.SearchRequest) string {
	raw := fmt.Sprintf("%s:%s:%d:%d", req.Query, req.UserID, req.Page, req.PageSize)
	return fmt.Sprintf("sr:%s", hashString(raw))
}

func (rc *RedisCache) buildStaleKey(req *models.SearchRequest) string {
	raw := fmt.Sprintf("%s:%s:%d:%d", req.Query, req.UserID, req.Page, req.PageSize)
	return fmt.Sprintf("sr:stale:%s", hashString(raw))
}

func interactionKey(userID string) string {
	return fmt.Sprintf("ui:%s", userID)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
