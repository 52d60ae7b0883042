package firestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
)

type Client struct {
	client *firestore.Client
	cfg    config.FirestoreConfig
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	logger.Info("firestore client connected", zap.String("project", cfg.ProjectID))

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *Client) GetProduct(ctx context.Context, productID string) (map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.get_product",
		attribute.String("product_id", productID),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	doc, err := c.client.Collection(c.cfg.ProductCollection).Doc(productID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore get product %s: %w", productID, err)
	}

	return doc.Data(), nil
}

func (c *Client) GetMulti(ctx context.Context, docIDs []string) (map[string]map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.get_multi",
		attribute.Int("count", len(docIDs)),
	)
	defer span.End()

	result := make(map[string]map[string]any, len(docIDs))

	batchSize := c.cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for i := 0; i < len(docIDs); i += batchSize {
		end := i + batchSize
		if end > len(docIDs) {
			end = len(docIDs)
		}
		batch := docIDs[i:end]

		// Each batch gets its own timeout so sequential batches don't starve.
		batchCtx, batchCancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = c.client.Collection(c.cfg.ProductCollection).Doc(id)
		}

		docs, err := c.client.GetAll(batchCtx, refs)
		batchCancel()
		if err != nil {
			return nil, fmt.Errorf("firestore get_all batch %d: %w", i/batchSize, err)
		}

		for _, doc := range docs {
			if doc.Exists() {
				result[doc.Ref.ID] = doc.Data()
			}
		}
	}

	return result, nil
}

// HydrateProducts attaches the full catalog document to each ranked product.
// Hydration is best-effort: on failure the lean index snapshots are returned
// as-is so a catalog store outage never fails a search.
func (c *Client) HydrateProducts(ctx context.Context, products []models.Product) ([]models.Product, error) {
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = strconv.FormatInt(p.ID, 10)
	}

	docs, err := c.GetMulti(ctx, ids)
	if err != nil {
		c.logger.Warn("hydration failed, returning unhydrated products", zap.Error(err))
		return products, nil
	}

	for i := range products {
		if doc, ok := docs[ids[i]]; ok {
			if products[i].Fields == nil {
				products[i].Fields = make(map[string]any)
			}
			for k, v := range doc {
				products[i].Fields[k] = v
			}
		}
	}

	return products, nil
}

// ChangeListener tails the product collection and emits a CatalogEvent per
// document change. It is an alternative ingest path to the Kafka catalog
// topic, used for deployments without a CDC pipeline.
type ChangeListener struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
	handler    func(context.Context, *models.CatalogEvent) error
}

func (c *Client) NewChangeListener(handler func(context.Context, *models.CatalogEvent) error) *ChangeListener {
	return &ChangeListener{
		client:     c.client,
		collection: c.cfg.ProductCollection,
		logger:     c.logger,
		handler:    handler,
	}
}

func changeKindToEventType(kind firestore.DocumentChangeKind) string {
	switch kind {
	case firestore.DocumentAdded:
		return "CREATE"
	case firestore.DocumentModified:
		return "UPDATE"
	case firestore.DocumentRemoved:
		return "DELETE"
	default:
		return ""
	}
}

func (cl *ChangeListener) Listen(ctx context.Context) error {
	snapIter := cl.client.Collection(cl.collection).Snapshots(ctx)
	defer snapIter.Stop()

	for {
		snap, err := snapIter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cl.logger.Error("snapshot iterator error", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, change := range snap.Changes {
			eventType := changeKindToEventType(change.Kind)

			event := &models.CatalogEvent{
				Type:      eventType,
				ProductID: change.Doc.Ref.ID,
				Document:  change.Doc.Data(),
				Timestamp: time.Now().UTC(),
			}

			if err := cl.handler(ctx, event); err != nil {
				cl.logger.Error("catalog event handler error",
					zap.String("product_id", event.ProductID),
					zap.String("type", eventType),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	iter := c.client.Collection("_health_check").Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	// iterator.Done means the collection is empty — Firestore is reachable.
	if err != nil && err != iterator.Done {
		return fmt.Errorf("firestore health check: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
