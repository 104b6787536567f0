package bus

import (
	"context"
	"errors"
	"testing"

	"neorest/application/transaction"
	"neorest/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type renameCommand struct {
	Name string
}

func (c renameCommand) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type purgeCommand struct{}

func (purgeCommand) Validate() error { return nil }

func tracing(trail *[]string, label string) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			*trail = append(*trail, label)
			return next.Handle(ctx, cmd)
		})
	}
}

func TestCommandBus_Send_MiddlewareOrder(t *testing.T) {
	// Arrange
	var trail []string
	b := NewCommandBus(tracing(&trail, "outer"), tracing(&trail, "inner"))
	require.NoError(t, b.Register(renameCommand{}, Typed(func(_ context.Context, cmd renameCommand) (string, error) {
		trail = append(trail, "handler")
		return "renamed " + cmd.Name, nil
	})))

	// Act
	result, err := b.Send(context.Background(), renameCommand{Name: "Alice"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "renamed Alice", result)
	assert.Equal(t, []string{"outer", "inner", "handler"}, trail)
}

func TestCommandBus_Send_Errors(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(renameCommand{}, Typed(func(context.Context, renameCommand) (int, error) {
		return 0, nil
	})))

	_, err := b.Send(context.Background(), renameCommand{})
	assert.EqualError(t, err, "name is required")

	_, err = b.Send(context.Background(), purgeCommand{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestCommandBus_Register_Duplicate(t *testing.T) {
	b := NewCommandBus()
	handler := Typed(func(context.Context, purgeCommand) (bool, error) { return true, nil })

	require.NoError(t, b.Register(purgeCommand{}, handler))
	assert.Error(t, b.Register(purgeCommand{}, handler))
}

func TestLoggingMiddleware_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewCommandBus(LoggingMiddleware(zap.New(core)))
	require.NoError(t, b.Register(purgeCommand{}, Typed(func(context.Context, purgeCommand) (bool, error) {
		return false, errors.New("engine down")
	})))

	_, err := b.Send(context.Background(), purgeCommand{})

	require.Error(t, err)
	failed := logs.FilterMessage("Command failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "purgeCommand", failed[0].ContextMap()["command"])
}

func TestTransactionMiddleware_RunsInScope(t *testing.T) {
	scope := transaction.NewBoundary(memory.NewEngine(nil), nil, nil, nil, nil)
	b := NewCommandBus(TransactionMiddleware(scope))
	require.NoError(t, b.Register(purgeCommand{}, Typed(func(ctx context.Context, _ purgeCommand) (bool, error) {
		_, err := transaction.Current(ctx)
		return err == nil, nil
	})))

	result, err := b.Send(context.Background(), purgeCommand{})

	require.NoError(t, err)
	assert.Equal(t, true, result)
}
