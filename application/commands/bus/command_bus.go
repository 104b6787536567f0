// Package bus routes each command to the handler registered for its concrete
// type, through a shared middleware chain.
package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"neorest/application/transaction"

	"go.uber.org/zap"
)

// Command is a request to change the graph.
type Command interface {
	Validate() error
}

type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (interface{}, error)
}

type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (interface{}, error) {
	return f(ctx, cmd)
}

// Middleware decorates every registered handler. The first one given to
// NewCommandBus runs outermost.
type Middleware func(next CommandHandler) CommandHandler

var ErrHandlerNotFound = errors.New("command handler not found")

type CommandBus struct {
	mu     sync.RWMutex
	routes map[reflect.Type]CommandHandler
	chain  []Middleware
}

func NewCommandBus(chain ...Middleware) *CommandBus {
	return &CommandBus{
		routes: make(map[reflect.Type]CommandHandler),
		chain:  chain,
	}
}

// Register routes commands of sample's type to handler. A type can be routed once.
func (b *CommandBus) Register(sample Command, handler CommandHandler) error {
	t := reflect.TypeOf(sample)
	for i := len(b.chain) - 1; i >= 0; i-- {
		handler = b.chain[i](handler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.routes[t]; taken {
		return fmt.Errorf("command %s is already routed", t)
	}
	b.routes[t] = handler
	return nil
}

// Send validates cmd and runs its handler. Handler errors come back unchanged
// so the REST layer can map them.
func (b *CommandBus) Send(ctx context.Context, cmd Command) (interface{}, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, ok := b.routes[reflect.TypeOf(cmd)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, cmd)
	}
	return handler.Handle(ctx, cmd)
}

// Typed lets a handler method take its concrete command type.
func Typed[C Command, R any](handle func(ctx context.Context, cmd C) (R, error)) CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		c, ok := cmd.(C)
		if !ok {
			return nil, fmt.Errorf("handler for %T got %T", c, cmd)
		}
		return handle(ctx, c)
	})
}

func commandName(cmd Command) string {
	name := fmt.Sprintf("%T", cmd)
	return name[strings.LastIndexByte(name, '.')+1:]
}

func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			result, err := next.Handle(ctx, cmd)

			fields := []zap.Field{
				zap.String("command", commandName(cmd)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("Command failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("Command handled", fields...)
			}
			return result, err
		})
	}
}

// TransactionMiddleware commits each command in its own graph transaction, or
// joins the caller's when one is already open on ctx.
func TransactionMiddleware(scope *transaction.Boundary) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			return transaction.Run(ctx, scope, func(ctx context.Context) (interface{}, error) {
				return next.Handle(ctx, cmd)
			})
		})
	}
}
