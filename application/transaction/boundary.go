// Package transaction runs units of work against the graph engine with
// all-or-nothing semantics. A unit of work started while another is open
// joins it instead of opening a second engine transaction.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"neorest/application/ports"
	"neorest/domain/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	OutcomeCommit       = "commit"
	OutcomeRollback     = "rollback"
	OutcomePanic        = "panic"
	OutcomeCommitFailed = "commit_failed"
)

// ErrNoTransaction is returned when graph access is attempted outside a boundary.
var ErrNoTransaction = errors.New("no transaction in context")

// Tracer opens a span around a transaction. The returned func ends it.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, func(err error))
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

type ctxKey struct{}

type scope struct {
	id     string
	tx     ports.GraphTx
	events []events.DomainEvent
}

// Boundary owns the engine and the collaborators notified around each transaction.
type Boundary struct {
	engine    ports.GraphEngine
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	tracer    Tracer
	logger    *zap.Logger
}

// NewBoundary creates a boundary. publisher, metrics and tracer may be nil.
func NewBoundary(engine ports.GraphEngine, publisher ports.EventPublisher, metrics ports.MetricsRecorder, tracer Tracer, logger *zap.Logger) *Boundary {
	if tracer == nil {
		tracer = noopTracer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Boundary{
		engine:    engine,
		publisher: publisher,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
	}
}

// Run executes body inside a transaction and returns its result unchanged.
// When ctx already carries a transaction, body joins it and nothing is committed here.
// On error or panic every mutation made by body is rolled back; a panic is re-raised.
func Run[T any](ctx context.Context, b *Boundary, body func(ctx context.Context) (T, error)) (result T, err error) {
	if current(ctx) != nil {
		return body(ctx)
	}

	start := time.Now()
	ctx, finish := b.tracer.Start(ctx, "graph.transaction")

	tx, err := b.engine.Begin(ctx)
	if err != nil {
		finish(err)
		var zero T
		return zero, fmt.Errorf("begin transaction: %w", err)
	}
	s := &scope{id: uuid.NewString(), tx: tx}
	txCtx := context.WithValue(ctx, ctxKey{}, s)
	logger := b.logger.With(zap.String("transactionID", s.id))

	defer func() {
		if r := recover(); r != nil {
			b.rollback(ctx, s, logger)
			b.record(ctx, OutcomePanic, start)
			finish(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	result, err = body(txCtx)
	if err != nil {
		b.rollback(ctx, s, logger)
		b.record(ctx, OutcomeRollback, start)
		finish(err)
		logger.Debug("Transaction rolled back", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return result, err
	}

	if cerr := tx.Commit(ctx); cerr != nil {
		b.record(ctx, OutcomeCommitFailed, start)
		finish(cerr)
		logger.Error("Transaction commit failed", zap.Error(cerr))
		var zero T
		return zero, fmt.Errorf("commit transaction: %w", cerr)
	}
	b.record(ctx, OutcomeCommit, start)
	finish(nil)
	logger.Debug("Transaction committed",
		zap.Int("events", len(s.events)),
		zap.Duration("duration", time.Since(start)),
	)
	b.publish(ctx, s, logger)
	return result, nil
}

// Within is Run for bodies without a result.
func (b *Boundary) Within(ctx context.Context, body func(ctx context.Context) error) error {
	_, err := Run(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx)
	})
	return err
}

func (b *Boundary) rollback(ctx context.Context, s *scope, logger *zap.Logger) {
	s.events = nil
	if err := s.tx.Rollback(ctx); err != nil {
		logger.Error("Transaction rollback failed", zap.Error(err))
	}
}

func (b *Boundary) record(ctx context.Context, outcome string, start time.Time) {
	if b.metrics != nil {
		b.metrics.RecordTransaction(ctx, outcome, time.Since(start))
	}
}

// Publish failures are logged; the transaction is already durable.
func (b *Boundary) publish(ctx context.Context, s *scope, logger *zap.Logger) {
	if b.publisher == nil || len(s.events) == 0 {
		return
	}
	if err := b.publisher.PublishBatch(ctx, s.events); err != nil {
		logger.Warn("Failed to publish transaction events", zap.Error(err), zap.Int("count", len(s.events)))
	}
}

func current(ctx context.Context) *scope {
	s, _ := ctx.Value(ctxKey{}).(*scope)
	return s
}

// Current returns the open engine transaction.
func Current(ctx context.Context) (ports.GraphTx, error) {
	s := current(ctx)
	if s == nil {
		return nil, ErrNoTransaction
	}
	return s.tx, nil
}

// ID returns the open transaction's id, or "" outside a boundary.
func ID(ctx context.Context) string {
	if s := current(ctx); s != nil {
		return s.id
	}
	return ""
}

// Emit stamps events with the transaction id and queues them for publication
// after the outermost transaction commits. Outside a boundary the events are dropped.
func Emit(ctx context.Context, evs ...events.DomainEvent) {
	s := current(ctx)
	if s == nil {
		return
	}
	for _, ev := range evs {
		ev.SetTransactionID(s.id)
		s.events = append(s.events, ev)
	}
}
