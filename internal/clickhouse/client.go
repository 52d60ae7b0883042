package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
)

type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

// WriteSearchEvent records one search performance sample. Satisfies
// observability.AnalyticsWriter.
func (c *Client) WriteSearchEvent(ctx context.Context, event *models.SearchEvent) error {
	query := `
		INSERT INTO search_performance (
			event_type, query_hash, sort_by, duration_ms,
			total_results, personalized, timed_out, timestamp, trace_id, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.SortBy,
		event.DurationMs,
		event.TotalResults,
		event.Personalized,
		event.TimedOut,
		event.Timestamp,
		event.TraceID,
		event.Source,
	)
}

func (c *Client) InsertCatalogEvent(ctx context.Context, event *models.CatalogEvent) error {
	query := `
		INSERT INTO products_changelog (
			product_id, operation, region, timestamp, version
		) VALUES (?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		event.ProductID,
		event.Type,
		event.Region,
		event.Timestamp,
		event.Version,
	)
}

// InsertInteraction archives one user interaction for offline analysis. The
// hot path reads history from Redis, never from here.
func (c *Client) InsertInteraction(ctx context.Context, it *models.UserInteraction) error {
	query := `
		INSERT INTO user_interactions (
			user_id, product_id, category_id, brand_id, interaction_type, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		it.UserID,
		it.ProductID,
		it.CategoryID,
		it.BrandID,
		string(it.InteractionType),
		it.Timestamp,
	)
}

// FallbackSearch serves popularity-ordered products from the analytics
// snapshot when Elasticsearch is unavailable. No intent ranking applies here.
func (c *Client) FallbackSearch(ctx context.Context, queryText string, limit int) ([]models.Product, error) {
	ctx, span := observability.StartSpan(ctx, "ch.fallback_search",
		attribute.Int("limit", limit),
	)
	defer span.End()

	start := time.Now()

	query := `
		SELECT
			product_id,
			name,
			listed_price,
			category_id,
			brand,
			is_made_in_nepal,
			is_available,
			is_featured
		FROM products
		WHERE is_available = 1 AND match(name, ?)
		ORDER BY popularity_score DESC
		LIMIT ?
	`

	rows, err := c.conn.Query(ctx, query, queryText, limit)
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("fallback", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("ch fallback search: %w", err)
	}
	defer rows.Close()

	var results []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ListedPrice, &p.CategoryID, &p.Brand, &p.IsMadeInNepal, &p.IsAvailable, &p.IsFeatured); err != nil {
			return nil, fmt.Errorf("scanning fallback row: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fallback rows: %w", err)
	}

	observability.CHQueryDuration.WithLabelValues("fallback", "success").Observe(time.Since(start).Seconds())
	return results, nil
}

// TrendingQueries aggregates the most frequent recent searches for the
// trending endpoint, scoped by region when one is given.
func (c *Client) TrendingQueries(ctx context.Context, region string, limit int) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, "ch.trending_queries",
		attribute.String("region", region),
	)
	defer span.End()

	start := time.Now()

	query := `
		SELECT query_hash
		FROM search_performance
		WHERE timestamp > now() - INTERVAL 1 DAY
		GROUP BY query_hash
		ORDER BY count() DESC
		LIMIT ?
	`

	rows, err := c.conn.Query(ctx, query, limit)
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("trending", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("ch trending query: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scanning trending row: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trending rows: %w", err)
	}

	observability.CHQueryDuration.WithLabelValues("trending", "success").Observe(time.Since(start).Seconds())
	return queries, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS search_performance (
			event_type String,
			query_hash String,
			sort_by String,
			duration_ms Float64,
			total_results Int64,
			personalized Bool,
			timed_out Bool,
			timestamp DateTime,
			trace_id String,
			source String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, query_hash)`,

		`CREATE TABLE IF NOT EXISTS products (
			product_id Int64,
			name String,
			listed_price Float64,
			category_id Int64,
			brand String,
			is_made_in_nepal Bool,
			is_available Bool,
			is_featured Bool,
			popularity_score Float64,
			updated_at DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (product_id)`,

		`CREATE TABLE IF NOT EXISTS products_changelog (
			product_id String,
			operation String,
			region String,
			timestamp DateTime,
			version Int64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, product_id)`,

		`CREATE TABLE IF NOT EXISTS user_interactions (
			user_id String,
			product_id Int64,
			category_id Int64,
			brand_id String,
			interaction_type String,
			timestamp DateTime
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (user_id, timestamp)`,
	}

	for _, ddl := range tables {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
