// Package bus routes read-only queries to their handlers.
package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"neorest/application/transaction"

	"go.uber.org/zap"
)

type Query interface {
	Validate() error
}

type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

type Middleware func(next QueryHandler) QueryHandler

var ErrHandlerNotFound = errors.New("query handler not found")

// QueryBus mirrors the command bus. Handlers must not write to the graph.
type QueryBus struct {
	mu     sync.RWMutex
	routes map[reflect.Type]QueryHandler
	chain  []Middleware
}

func NewQueryBus(chain ...Middleware) *QueryBus {
	return &QueryBus{
		routes: make(map[reflect.Type]QueryHandler),
		chain:  chain,
	}
}

func (b *QueryBus) Register(sample Query, handler QueryHandler) error {
	t := reflect.TypeOf(sample)
	for i := len(b.chain) - 1; i >= 0; i-- {
		handler = b.chain[i](handler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.routes[t]; taken {
		return fmt.Errorf("query %s is already routed", t)
	}
	b.routes[t] = handler
	return nil
}

func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, ok := b.routes[reflect.TypeOf(query)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, query)
	}
	return handler.Handle(ctx, query)
}

func Typed[Q Query, R any](handle func(ctx context.Context, query Q) (R, error)) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		q, ok := query.(Q)
		if !ok {
			return nil, fmt.Errorf("handler for %T got %T", q, query)
		}
		return handle(ctx, q)
	})
}

func queryName(query Query) string {
	name := fmt.Sprintf("%T", query)
	return name[strings.LastIndexByte(name, '.')+1:]
}

// Metrics counts and times queries by name.
type Metrics interface {
	StartTimer(metric, label string) interface{ Stop() }
	Increment(metric, label string)
}

// MetricsMiddleware records query_count, query_errors and query_duration per query name.
func MetricsMiddleware(metrics Metrics) Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
			name := queryName(query)
			timer := metrics.StartTimer("query_duration", name)
			defer timer.Stop()

			metrics.Increment("query_count", name)
			result, err := next.Handle(ctx, query)
			if err != nil {
				metrics.Increment("query_errors", name)
			}
			return result, err
		})
	}
}

// LoggingMiddleware logs failures at debug: a missing node is routine for a reader.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
			result, err := next.Handle(ctx, query)
			if err != nil {
				logger.Debug("Query failed", zap.String("query", queryName(query)), zap.Error(err))
			}
			return result, err
		})
	}
}

// TransactionMiddleware reads each query from one consistent snapshot of the graph.
func TransactionMiddleware(scope *transaction.Boundary) Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
			return transaction.Run(ctx, scope, func(ctx context.Context) (interface{}, error) {
				return next.Handle(ctx, query)
			})
		})
	}
}
