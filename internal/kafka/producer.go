package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/models"
)

type Producer struct {
	catalogWriter     *kafka.Writer
	interactionWriter *kafka.Writer
	logger            *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			MaxAttempts:  cfg.MaxRetries,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		}
	}

	logger.Info("kafka producer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("catalog_topic", cfg.TopicCatalog),
		zap.String("interaction_topic", cfg.TopicInteractions),
	)

	return &Producer{
		catalogWriter:     newWriter(cfg.TopicCatalog),
		interactionWriter: newWriter(cfg.TopicInteractions),
		logger:            logger,
	}
}

func (p *Producer) PublishCatalogEvent(ctx context.Context, event *models.CatalogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling catalog event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ProductID),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.catalogWriter.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing catalog event: %w", err)
	}

	return nil
}

func (p *Producer) PublishCatalogBatch(ctx context.Context, events []*models.CatalogEvent) error {
	msgs := make([]kafka.Message, len(events))
	for i, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshaling catalog event %d: %w", i, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(event.ProductID),
			Value: data,
			Time:  time.Now(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.Type)},
			},
		}
	}

	if err := p.catalogWriter.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing batch of %d catalog events: %w", len(events), err)
	}

	return nil
}

// PublishInteraction is keyed by user ID so one user's events stay ordered
// within a partition.
func (p *Producer) PublishInteraction(ctx context.Context, it *models.UserInteraction) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("marshaling interaction: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(it.UserID),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "interaction_type", Value: []byte(it.InteractionType)},
		},
	}

	if err := p.interactionWriter.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing interaction: %w", err)
	}

	return nil
}

func (p *Producer) Close() error {
	var errs []error
	if err := p.catalogWriter.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.interactionWriter.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("producer close errors: %v", errs)
	}
	return nil
}
