package dynamodb

import (
	"context"
	"fmt"
	"time"

	"neorest/application/ports"

	"go.uber.org/zap"
)

// Relay forwards pending journal records to a publisher and marks them
// published or failed.
type Relay struct {
	journal   *Journal
	publisher ports.EventPublisher
	logger    *zap.Logger

	batchSize   int
	interval    time.Duration
	maxAttempts int

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewRelay creates a relay that polls every interval
func NewRelay(journal *Journal, publisher ports.EventPublisher, interval time.Duration, logger *zap.Logger) *Relay {
	return &Relay{
		journal:     journal,
		publisher:   publisher,
		logger:      logger,
		batchSize:   50,
		interval:    interval,
		maxAttempts: 3,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start begins polling in the background
func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("Starting event relay",
		zap.Int("batchSize", r.batchSize),
		zap.Duration("interval", r.interval),
	)
	go r.loop(ctx)
}

// Stop ends polling and waits for the loop to exit
func (r *Relay) Stop() {
	close(r.stopChan)
	<-r.stoppedChan
	r.logger.Info("Event relay stopped")
}

func (r *Relay) loop(ctx context.Context) {
	defer close(r.stoppedChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				r.logger.Error("Error relaying events", zap.Error(err))
			}
		}
	}
}

// Flush relays one batch and returns how many records were published
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := r.journal.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	published := 0
	for _, record := range pending {
		if err := r.publisher.Publish(ctx, record.AsEvent()); err != nil {
			r.logger.Warn("Failed to relay event",
				zap.String("eventID", record.EventID),
				zap.String("eventType", record.EventType),
				zap.Int("attempts", record.PublishAttempts+1),
				zap.Error(err),
			)
			if markErr := r.journal.MarkFailed(ctx, record, err, r.maxAttempts); markErr != nil {
				return published, markErr
			}
			continue
		}
		if err := r.journal.MarkPublished(ctx, record); err != nil {
			return published, err
		}
		published++
	}

	if len(pending) > 0 {
		r.logger.Debug("Relayed events", zap.Int("published", published), zap.Int("pending", len(pending)))
	}
	return published, nil
}
