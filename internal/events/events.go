package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const EventProductIngested = "product.ingested"

// ProductIngested announces a freshly stored product to downstream
// consumers (catalog sync, notification bots).
type ProductIngested struct {
	EventID    string    `json:"event_id"`
	ProductID  string    `json:"product_id"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"price_cents"`
	SourceURL  string    `json:"source_url"`
	Category   string    `json:"category,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// RedisClient is the slice of go-redis the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher writes ingest events to a Redis stream. Publishing is best
// effort: the product is already committed when an event goes out, and a
// failed publish must not fail the ingest.
type Publisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishProductIngested(ctx context.Context, event ProductIngested) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.IngestedAt.IsZero() {
		event.IngestedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    EventProductIngested,
			"payload": string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}

	p.logger.Debug("published event",
		"type", EventProductIngested,
		"stream_id", id,
		"product_id", event.ProductID)

	return nil
}
