package transaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"neorest/domain/core/valueobjects"
	"neorest/domain/events"
	"neorest/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishBatch(ctx context.Context, evs []events.DomainEvent) error {
	args := m.Called(ctx, evs)
	return args.Error(0)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingMetrics) RecordTransaction(_ context.Context, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func nodeCount(t *testing.T, b *Boundary) int {
	t.Helper()
	n, err := Run(context.Background(), b, func(ctx context.Context) (int, error) {
		tx, err := Current(ctx)
		if err != nil {
			return 0, err
		}
		count := 0
		for id := valueobjects.NodeID(0); id < 100; id++ {
			if _, err := tx.LoadNode(ctx, id); err == nil {
				count++
			}
		}
		return count, nil
	})
	require.NoError(t, err)
	return n
}

func TestRun_CommitsAndReturnsValue(t *testing.T) {
	// Arrange
	metrics := &recordingMetrics{}
	b := NewBoundary(memory.NewEngine(nil), nil, metrics, nil, nil)

	// Act
	id, err := Run(context.Background(), b, func(ctx context.Context) (valueobjects.NodeID, error) {
		tx, err := Current(ctx)
		if err != nil {
			return 0, err
		}
		return tx.CreateNode(ctx)
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, valueobjects.NodeID(1), id)
	assert.Equal(t, 2, nodeCount(t, b))
	assert.Equal(t, []string{OutcomeCommit, OutcomeCommit}, metrics.outcomes)
}

func TestRun_RollsBackAllMutationsOnError(t *testing.T) {
	metrics := &recordingMetrics{}
	b := NewBoundary(memory.NewEngine(nil), nil, metrics, nil, nil)
	failure := errors.New("boom")

	_, err := Run(context.Background(), b, func(ctx context.Context) (int, error) {
		tx, _ := Current(ctx)
		for i := 0; i < 3; i++ {
			if _, err := tx.CreateNode(ctx); err != nil {
				return 0, err
			}
		}
		return 3, failure
	})

	assert.Same(t, failure, err)
	assert.Equal(t, 1, nodeCount(t, b))
	assert.Equal(t, OutcomeRollback, metrics.outcomes[0])
}

func TestRun_RollsBackAndRepanics(t *testing.T) {
	b := NewBoundary(memory.NewEngine(nil), nil, nil, nil, nil)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = b.Within(context.Background(), func(ctx context.Context) error {
			tx, _ := Current(ctx)
			_, _ = tx.CreateNode(ctx)
			panic("kaboom")
		})
	})

	assert.Equal(t, 1, nodeCount(t, b))
}

func TestRun_NestedJoinsOuterTransaction(t *testing.T) {
	b := NewBoundary(memory.NewEngine(nil), nil, nil, nil, nil)
	var outerID, innerID string

	err := b.Within(context.Background(), func(ctx context.Context) error {
		outerID = ID(ctx)
		tx, _ := Current(ctx)
		if _, err := tx.CreateNode(ctx); err != nil {
			return err
		}
		if err := b.Within(ctx, func(ctx context.Context) error {
			innerID = ID(ctx)
			inner, _ := Current(ctx)
			_, err := inner.CreateNode(ctx)
			return err
		}); err != nil {
			return err
		}
		return errors.New("abort outer")
	})

	require.Error(t, err)
	assert.NotEmpty(t, outerID)
	assert.Equal(t, outerID, innerID)
	assert.Equal(t, 1, nodeCount(t, b), "inner work must roll back with the outer scope")
}

func TestRun_PublishesEventsAfterCommit(t *testing.T) {
	publisher := new(MockPublisher)
	b := NewBoundary(memory.NewEngine(nil), publisher, nil, nil, nil)
	ev := events.NewNodeCreated(1, "Person", time.Now())
	publisher.On("PublishBatch", mock.Anything, []events.DomainEvent{ev}).Return(nil).Once()

	err := b.Within(context.Background(), func(ctx context.Context) error {
		Emit(ctx, ev)
		publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
		return nil
	})

	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestRun_DiscardsEventsOnRollback(t *testing.T) {
	publisher := new(MockPublisher)
	b := NewBoundary(memory.NewEngine(nil), publisher, nil, nil, nil)

	err := b.Within(context.Background(), func(ctx context.Context) error {
		Emit(ctx, events.NewNodeCreated(1, "Person", time.Now()))
		return errors.New("nope")
	})

	require.Error(t, err)
	publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestRun_PublishFailureDoesNotFailCommit(t *testing.T) {
	publisher := new(MockPublisher)
	b := NewBoundary(memory.NewEngine(nil), publisher, nil, nil, nil)
	publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	err := b.Within(context.Background(), func(ctx context.Context) error {
		Emit(ctx, events.NewNodeDeleted(1, "Person", time.Now()))
		return nil
	})

	assert.NoError(t, err)
}

func TestCurrent_OutsideBoundary(t *testing.T) {
	_, err := Current(context.Background())

	assert.ErrorIs(t, err, ErrNoTransaction)
	assert.Empty(t, ID(context.Background()))
}
