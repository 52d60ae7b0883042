package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/cache"
	"github.com/nepbay/voice-search/internal/clickhouse"
	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/elasticsearch"
	"github.com/nepbay/voice-search/internal/firestore"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
	"github.com/nepbay/voice-search/internal/ranking"
)

// Orchestrator drives one search end to end: intent parsing, candidate
// retrieval, the ranking pipeline, hydration and pagination, with a fallback
// ladder under it when the primary path fails.
type Orchestrator struct {
	esClient *elasticsearch.Client
	chClient *clickhouse.Client
	fsClient *firestore.Client
	cache    *cache.RedisCache
	parser   *ranking.IntentParser
	builder  *QueryBuilder
	guard    *supersedeGuard
	slow     *observability.SlowSearchDetector
	cfg      config.SearchConfig
	esCfg    config.ElasticsearchConfig
	persCfg  config.PersonalizationConfig
	logger   *zap.Logger

	// Static fallback products by region, the last rung of the ladder.
	staticFallback map[string][]models.Product
	mu             sync.RWMutex
}

func New(
	esClient *elasticsearch.Client,
	chClient *clickhouse.Client,
	fsClient *firestore.Client,
	redisCache *cache.RedisCache,
	slow *observability.SlowSearchDetector,
	cfg config.SearchConfig,
	esCfg config.ElasticsearchConfig,
	persCfg config.PersonalizationConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		esClient:       esClient,
		chClient:       chClient,
		fsClient:       fsClient,
		cache:          redisCache,
		parser:         ranking.NewIntentParser(),
		builder:        NewQueryBuilder(),
		guard:          newSupersedeGuard(),
		slow:           slow,
		cfg:            cfg,
		esCfg:          esCfg,
		persCfg:        persCfg,
		logger:         logger,
		staticFallback: make(map[string][]models.Product),
	}
}

func (o *Orchestrator) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "orchestrator.search",
		attribute.String("session_key", req.SessionKey),
	)
	defer span.End()

	if req.PageSize <= 0 {
		req.PageSize = o.cfg.DefaultPageSize
	}
	if req.PageSize > o.cfg.MaxPageSize {
		req.PageSize = o.cfg.MaxPageSize
	}
	if req.Page < 0 {
		req.Page = 0
	}

	gen := o.guard.begin(req.SessionKey)
	defer o.guard.release(req.SessionKey, gen)

	intent := o.parser.Parse(req.Query)
	o.logger.Debug("intent parsed",
		zap.String("cleaned_query", intent.Query),
		zap.String("sort_by", string(intent.SortBy)),
		zap.Float64("confidence", intent.Confidence),
	)

	if !req.ForceFresh {
		cached, err := o.cache.GetSearchResults(ctx, req)
		if err != nil {
			o.logger.Warn("cache lookup error", zap.Error(err))
		}
		if cached != nil {
			if err := o.guard.check(req.SessionKey, gen); err != nil {
				return nil, err
			}
			cached.Metadata.CacheHit = true
			cached.TookMs = time.Since(start).Milliseconds()
			observability.SearchRequestsTotal.WithLabelValues(string(intent.SortBy), "cache_hit").Inc()
			return cached, nil
		}
	}

	resp, err := o.searchWithFallback(ctx, req, intent)
	if err != nil {
		observability.SearchRequestsTotal.WithLabelValues(string(intent.SortBy), "error").Inc()
		observability.SearchRequestDuration.WithLabelValues(string(intent.SortBy), "error", "error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	// A slower search must never overwrite what a newer one showed the user.
	if err := o.guard.check(req.SessionKey, gen); err != nil {
		return nil, err
	}

	resp.Query = req.Query
	resp.Intent = intent
	resp.Explain = ranking.ExplainIntent(intent)
	resp.TookMs = time.Since(start).Milliseconds()
	resp.Metadata.RequestID = req.RequestID
	resp.Metadata.Page = req.Page
	resp.Metadata.PageSize = req.PageSize

	if resp.Source == "primary" {
		if err := o.cache.SetSearchResults(ctx, req, resp); err != nil {
			o.logger.Warn("cache set error", zap.Error(err))
		}
	}

	observability.SearchRequestsTotal.WithLabelValues(string(intent.SortBy), "success").Inc()
	observability.SearchRequestDuration.WithLabelValues(string(intent.SortBy), resp.Source, "success").Observe(time.Since(start).Seconds())

	o.slow.Intercept(ctx, req.Query, string(intent.SortBy),
		time.Since(start), int64(resp.Metadata.TotalResults), resp.Metadata.Personalized)

	return resp, nil
}

func (o *Orchestrator) searchWithFallback(ctx context.Context, req *models.SearchRequest, intent *models.SearchIntent) (*models.SearchResponse, error) {
	// Level 1: primary search
	resp, err := o.primarySearch(ctx, req, intent)
	if err == nil {
		return resp, nil
	}
	o.logger.Warn("primary search failed, trying fallback", zap.Error(err))
	observability.FallbackCounter.WithLabelValues("primary_failed").Inc()

	// Level 2: stale cache
	stale, cacheErr := o.cache.GetStaleResults(ctx, req)
	if cacheErr == nil && stale != nil {
		stale.Metadata.Stale = true
		stale.Source = "stale_cache"
		stale.Metadata.Source = "stale_cache"
		observability.FallbackCounter.WithLabelValues("stale_cache").Inc()
		return stale, nil
	}

	// Level 3: ClickHouse degraded search. The snapshot is coarser than the
	// index but still passes through the full ranking pipeline.
	if o.chClient != nil {
		chProducts, chErr := o.chClient.FallbackSearch(ctx, intent.Query, o.esCfg.CandidateSize)
		if chErr == nil && len(chProducts) > 0 {
			ranked, rankErr := o.rank(ctx, req, intent, chProducts)
			if rankErr == nil {
				observability.FallbackCounter.WithLabelValues("clickhouse").Inc()
				resp := o.paginate(req, ranked)
				resp.Source = "degraded"
				resp.Metadata.Source = "degraded_clickhouse"
				resp.Metadata.Personalized = o.personalized(req)
				return resp, nil
			}
		}
		if chErr != nil {
			o.logger.Warn("clickhouse fallback failed", zap.Error(chErr))
		}
	}

	// Level 4: static popular products
	staticProducts := o.getStaticFallback(req.Region)
	if len(staticProducts) > 0 {
		observability.FallbackCounter.WithLabelValues("static").Inc()
		resp := o.paginate(req, staticProducts)
		resp.Source = "static_fallback"
		resp.Metadata.Source = "static_fallback"
		return resp, nil
	}

	return nil, fmt.Errorf("all search paths exhausted: primary error: %w", err)
}

func (o *Orchestrator) primarySearch(ctx context.Context, req *models.SearchRequest, intent *models.SearchIntent) (*models.SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.QueryTimeout)
	defer cancel()

	esQuery := o.builder.BuildCandidateQuery(intent, o.esCfg.CandidateSize)

	stageStart := time.Now()
	result, err := o.esClient.SearchProducts(ctx, esQuery)
	if err != nil {
		return nil, fmt.Errorf("candidate retrieval: %w", err)
	}
	observability.PipelineStageDuration.WithLabelValues("retrieval").Observe(time.Since(stageStart).Seconds())

	ranked, err := o.rank(ctx, req, intent, result.Products)
	if err != nil {
		return nil, err
	}

	resp := o.paginate(req, ranked)
	resp.Source = "primary"
	resp.Metadata.Source = "elasticsearch"
	resp.Metadata.Personalized = o.personalized(req)

	// Hydrate only the page actually returned.
	if o.fsClient != nil && len(resp.Results) > 0 {
		hydrated, err := o.fsClient.HydrateProducts(ctx, resp.Results)
		if err != nil {
			o.logger.Warn("hydration failed", zap.Error(err))
		} else {
			resp.Results = hydrated
		}
	}

	return resp, nil
}

func (o *Orchestrator) rank(ctx context.Context, req *models.SearchRequest, intent *models.SearchIntent, products []models.Product) ([]models.Product, error) {
	var interactions []models.UserInteraction
	if o.personalized(req) {
		var err error
		interactions, err = o.cache.GetUserInteractions(ctx, req.UserID)
		if err != nil {
			// Personalization degrades to a neutral ranking, never fails a search.
			o.logger.Warn("interaction history unavailable", zap.String("user_id", req.UserID), zap.Error(err))
			interactions = nil
		}
	}

	stageStart := time.Now()
	ranked, err := ranking.RankProducts(products, intent, interactions, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("ranking pipeline: %w", err)
	}
	observability.PipelineStageDuration.WithLabelValues("ranking").Observe(time.Since(stageStart).Seconds())

	return ranked, nil
}

func (o *Orchestrator) personalized(req *models.SearchRequest) bool {
	return o.persCfg.Enabled && req.UserID != ""
}

func (o *Orchestrator) paginate(req *models.SearchRequest, products []models.Product) *models.SearchResponse {
	total := len(products)
	totalPages := (total + req.PageSize - 1) / req.PageSize

	startIdx := req.Page * req.PageSize
	if startIdx > total {
		startIdx = total
	}
	endIdx := startIdx + req.PageSize
	if endIdx > total {
		endIdx = total
	}

	page := make([]models.Product, endIdx-startIdx)
	copy(page, products[startIdx:endIdx])

	return &models.SearchResponse{
		Results: page,
		Metadata: models.ResponseMetadata{
			TotalResults: total,
			Page:         req.Page,
			TotalPages:   totalPages,
			HasNext:      req.Page < totalPages-1,
			HasPrevious:  req.Page > 0,
			PageSize:     req.PageSize,
		},
	}
}

// Explain parses a query without running the search and returns the intent
// together with its human-readable summary.
func (o *Orchestrator) Explain(query string) (*models.SearchIntent, string) {
	intent := o.parser.Parse(query)
	return intent, ranking.ExplainIntent(intent)
}

// Suggest serves query completions for a prefix, cached per prefix.
func (o *Orchestrator) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, "orchestrator.suggest",
		attribute.String("prefix", prefix),
	)
	defer span.End()

	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, nil
	}

	cached, err := o.cache.GetSuggestions(ctx, prefix)
	if err != nil {
		o.logger.Warn("suggestion cache error", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	suggestions, err := o.esClient.Suggest(ctx, o.builder.BuildSuggestQuery(prefix, size))
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	if err := o.cache.SetSuggestions(ctx, prefix, suggestions); err != nil {
		o.logger.Warn("suggestion cache set error", zap.Error(err))
	}

	return suggestions, nil
}

// Trending serves recent popular searches for a region.
func (o *Orchestrator) Trending(ctx context.Context, region string, size int) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, "orchestrator.trending",
		attribute.String("region", region),
	)
	defer span.End()

	cached, err := o.cache.GetTrending(ctx, region)
	if err != nil {
		o.logger.Warn("trending cache error", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	if o.chClient == nil {
		return nil, nil
	}

	queries, err := o.chClient.TrendingQueries(ctx, region, size)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}

	if err := o.cache.SetTrending(ctx, region, queries); err != nil {
		o.logger.Warn("trending cache set error", zap.Error(err))
	}

	return queries, nil
}

func (o *Orchestrator) SetStaticFallback(region string, products []models.Product) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.staticFallback[region] = products
}

func (o *Orchestrator) getStaticFallback(region string) []models.Product {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if products, ok := o.staticFallback[region]; ok {
		return products
	}
	if products, ok := o.staticFallback["default"]; ok {
		return products
	}
	return nil
}
