package ports

import (
	"context"
	"time"

	"neorest/domain/events"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// MetricsRecorder receives transaction outcomes
type MetricsRecorder interface {
	RecordTransaction(ctx context.Context, outcome string, duration time.Duration)
}
