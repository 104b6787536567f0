// Package messaging holds the event publishers that are not tied to a cloud service.
package messaging

import (
	"context"
	"errors"

	"neorest/application/ports"
	"neorest/domain/events"

	"go.uber.org/zap"
)

// LogPublisher writes each event as a structured log line
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.String("transactionID", event.GetTransactionID()),
		zap.Any("event", event),
	)
	return nil
}

func (p *LogPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// MultiPublisher hands every batch to each publisher in turn. All publishers
// are tried; their failures are joined.
type MultiPublisher []ports.EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.PublishBatch(ctx, []events.DomainEvent{event})
}

func (m MultiPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishBatch(ctx, domainEvents); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
