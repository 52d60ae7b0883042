package observability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/models"
)

type SlowSearchDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
}

type AnalyticsWriter interface {
	WriteSearchEvent(ctx context.Context, event *models.SearchEvent) error
}

func NewSlowSearchDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowSearchDetector {
	return &SlowSearchDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
	}
}

// Intercept logs and records searches that exceed the warning threshold.
// Fast searches return immediately with zero overhead.
func (d *SlowSearchDetector) Intercept(ctx context.Context, query string, sortBy string, duration time.Duration, totalResults int64, personalized bool) {
	if duration <= d.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := d.classifySeverity(duration)

	SlowSearchCounter.WithLabelValues(severity, sortBy).Inc()

	d.logger.Warn("slow search detected",
		zap.String("trace_id", traceID),
		zap.String("query_hash", hashQueryForLog(query)),
		zap.String("sort_by", sortBy),
		zap.Float64("duration_ms", float64(duration.Milliseconds())),
		zap.Int64("total_results", totalResults),
		zap.Bool("personalized", personalized),
		zap.String("severity", severity),
	)

	// Write to ClickHouse asynchronously so it doesn't block the response.
	if d.analyticsWriter != nil {
		event := &models.SearchEvent{
			EventType:    "search_performance",
			QueryHash:    hashQueryForLog(query),
			SortBy:       sortBy,
			DurationMs:   float64(duration.Milliseconds()),
			TotalResults: totalResults,
			Personalized: personalized,
			Timestamp:    time.Now().UTC(),
			TraceID:      traceID,
		}
		go func() {
			writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := d.analyticsWriter.WriteSearchEvent(writeCtx, event); err != nil {
				d.logger.Error("failed to write search analytics",
					zap.String("trace_id", traceID),
					zap.Error(err),
				)
			}
		}()
	}
}

func (d *SlowSearchDetector) classifySeverity(dur time.Duration) string {
	if dur > d.criticalThreshold {
		return "critical"
	}
	if dur > d.warningThreshold {
		return "warning"
	}
	return "normal"
}

func hashQueryForLog(q string) string {
	return fmt.Sprintf("%016x", hashUint64(q))
}

func hashUint64(s string) uint64 {
	h := uint64(0)
	for _, c := range s {
		h = h*31 + uint64(c)
	}
	return h
}
