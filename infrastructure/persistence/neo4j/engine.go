// Package neo4j adapts a Neo4j database to the graph engine port.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"neorest/application/ports"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	"neorest/domain/search"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// NodeLabel is carried by every node the engine creates.
const NodeLabel = "Node"

// ReferenceNodeClass marks the merged root node.
const ReferenceNodeClass = "ReferenceNode"

var (
	ErrInvalidRelationshipType = errors.New("relationship type must be an identifier")
	ErrInvalidDepth            = errors.New("traversal depth must be at least 1")
)

// Config holds connection settings
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// BreakerConfig controls the circuit breaker around session and commit calls
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "neo4j",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Engine runs every transaction in its own write session
type Engine struct {
	driver   neo4j.DriverWithContext
	database string
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

var _ ports.GraphEngine = (*Engine)(nil)

// NewEngine connects to Neo4j and verifies connectivity
func NewEngine(ctx context.Context, cfg Config, breaker BreakerConfig, logger *zap.Logger) (*Engine, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("could not reach Neo4j at %s: %w", cfg.URI, err)
	}
	logger.Info("Connected to Neo4j", zap.String("uri", cfg.URI), zap.String("database", cfg.Database))

	return &Engine{
		driver:   driver,
		database: cfg.Database,
		breaker:  newBreaker(breaker, logger),
		logger:   logger,
	}, nil
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Begin opens a write session and an explicit transaction
func (e *Engine) Begin(ctx context.Context) (ports.GraphTx, error) {
	result, err := e.breaker.Execute(func() (interface{}, error) {
		session := e.driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: e.database,
			AccessMode:   neo4j.AccessModeWrite,
		})
		tx, err := session.BeginTransaction(ctx)
		if err != nil {
			_ = session.Close(ctx)
			return nil, err
		}
		return &graphTx{engine: e, session: session, tx: tx}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("begin neo4j transaction: %w", err)
	}
	return result.(*graphTx), nil
}

// Close closes the driver
func (e *Engine) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

type graphTx struct {
	engine  *Engine
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func (t *graphTx) collect(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result.Collect(ctx)
}

func (t *graphTx) CreateNode(ctx context.Context) (valueobjects.NodeID, error) {
	records, err := t.collect(ctx, "CREATE (n:"+NodeLabel+") RETURN id(n) AS id", nil)
	if err != nil {
		return 0, err
	}
	if len(records) != 1 {
		return 0, fmt.Errorf("expected 1 record but found %d", len(records))
	}
	raw, _ := records[0].Get("id")
	id, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("node id has unexpected type %T", raw)
	}
	return valueobjects.NodeID(id), nil
}

func (t *graphTx) LoadNode(ctx context.Context, id valueobjects.NodeID) (entities.Node, error) {
	records, err := t.collect(ctx, "MATCH (n) WHERE id(n) = $id RETURN n", map[string]interface{}{"id": id.Int64()})
	if err != nil {
		return entities.Node{}, err
	}
	if len(records) == 0 {
		return entities.Node{}, fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}
	return nodeFromRecord(records[0], "n")
}

func (t *graphTx) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	node, err := t.LoadNode(ctx, id)
	if err != nil {
		return err
	}
	if node.Properties.ClassName() == ReferenceNodeClass {
		return fmt.Errorf("node %d: %w", id, ports.ErrProtectedNode)
	}
	records, err := t.collect(ctx,
		"MATCH (n) WHERE id(n) = $id DETACH DELETE n RETURN count(*) AS deleted",
		map[string]interface{}{"id": id.Int64()})
	if err != nil {
		return err
	}
	if countOf(records, "deleted") == 0 {
		return fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (t *graphTx) GetProperty(ctx context.Context, id valueobjects.NodeID, name string) (valueobjects.Value, bool, error) {
	node, err := t.LoadNode(ctx, id)
	if err != nil {
		return valueobjects.Value{}, false, err
	}
	v, ok := node.Properties[name]
	return v, ok, nil
}

func (t *graphTx) SetProperty(ctx context.Context, id valueobjects.NodeID, name string, value valueobjects.Value) error {
	if !value.IsValid() {
		return valueobjects.ErrUnsupportedValue
	}
	query, params := setPropertyQuery(id, name, value)
	records, err := t.collect(ctx, query, params)
	if err != nil {
		return err
	}
	if countOf(records, "updated") == 0 {
		return fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (t *graphTx) CreateRelationship(ctx context.Context, from, to valueobjects.NodeID, relType string) (entities.Relationship, error) {
	label, err := relTypeLiteral(relType)
	if err != nil {
		return entities.Relationship{}, err
	}
	records, err := t.collect(ctx,
		"MATCH (a) WHERE id(a) = $from MATCH (b) WHERE id(b) = $to CREATE (a)-[r:"+label+"]->(b) RETURN r",
		map[string]interface{}{"from": from.Int64(), "to": to.Int64()})
	if err != nil {
		return entities.Relationship{}, err
	}
	if len(records) == 0 {
		return entities.Relationship{}, fmt.Errorf("relationship endpoints %d -> %d: %w", from, to, ports.ErrNotFound)
	}
	return relationshipFromRecord(records[0], "r")
}

func (t *graphTx) LoadRelationship(ctx context.Context, id valueobjects.RelationshipID) (entities.Relationship, error) {
	records, err := t.collect(ctx, "MATCH ()-[r]->() WHERE id(r) = $id RETURN r", map[string]interface{}{"id": id.Int64()})
	if err != nil {
		return entities.Relationship{}, err
	}
	if len(records) == 0 {
		return entities.Relationship{}, fmt.Errorf("relationship %d: %w", id, ports.ErrNotFound)
	}
	return relationshipFromRecord(records[0], "r")
}

func (t *graphTx) OutgoingRelationships(ctx context.Context, id valueobjects.NodeID, relType string) ([]entities.Relationship, error) {
	if _, err := t.LoadNode(ctx, id); err != nil {
		return nil, err
	}
	pattern := "-[r]->"
	if relType != "" {
		label, err := relTypeLiteral(relType)
		if err != nil {
			return nil, err
		}
		pattern = "-[r:" + label + "]->"
	}
	records, err := t.collect(ctx,
		"MATCH (n)"+pattern+"() WHERE id(n) = $id RETURN r ORDER BY id(r)",
		map[string]interface{}{"id": id.Int64()})
	if err != nil {
		return nil, err
	}
	rels := make([]entities.Relationship, 0, len(records))
	for _, rec := range records {
		rel, err := relationshipFromRecord(rec, "r")
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func (t *graphTx) TraverseOutgoing(ctx context.Context, id valueobjects.NodeID, relType string, depth int) ([]entities.Node, error) {
	if depth < 1 {
		return nil, ErrInvalidDepth
	}
	label, err := relTypeLiteral(relType)
	if err != nil {
		return nil, err
	}
	if _, err := t.LoadNode(ctx, id); err != nil {
		return nil, err
	}
	records, err := t.collect(ctx, traverseQuery(label, depth), map[string]interface{}{"id": id.Int64()})
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(records, "n")
}

func traverseQuery(label string, depth int) string {
	return fmt.Sprintf(
		"MATCH p = (s)-[:%s*1..%d]->(n) WHERE id(s) = $id AND id(n) <> $id "+
			"WITH n, min(length(p)) AS hops RETURN n ORDER BY hops, id(n)",
		label, depth)
}

func (t *graphTx) Search(ctx context.Context, class *classes.ClassMetadata, criteria search.Criteria) ([]entities.Node, error) {
	if class == nil {
		return nil, errors.New("search requires class metadata")
	}
	query, params, err := classQuery(class.Name())
	if err != nil {
		return nil, err
	}
	records, err := t.collect(ctx, query, params)
	if err != nil {
		return nil, err
	}
	nodes, err := nodesFromRecords(records, "n")
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return criteria.Apply(nodes), nil
}

func classQuery(className string) (string, map[string]interface{}, error) {
	return gocypher.NewQueryBuilder().
		Match(gocypher.N("n", NodeLabel).WithProperties(map[string]interface{}{
			valueobjects.ClassNameProperty: className,
		})).
		Return("n").
		Build()
}

func refNodeQuery() (string, map[string]interface{}, error) {
	return gocypher.NewQueryBuilder().
		Merge(gocypher.N("n", NodeLabel).WithProperties(map[string]interface{}{
			valueobjects.ClassNameProperty: ReferenceNodeClass,
		})).
		Return("n").
		Build()
}

func (t *graphTx) RefNode(ctx context.Context) (entities.Node, error) {
	query, params, err := refNodeQuery()
	if err != nil {
		return entities.Node{}, err
	}
	records, err := t.collect(ctx, query, params)
	if err != nil {
		return entities.Node{}, err
	}
	if len(records) == 0 {
		return entities.Node{}, fmt.Errorf("reference node: %w", ports.ErrNotFound)
	}
	return nodeFromRecord(records[0], "n")
}

func (t *graphTx) Commit(ctx context.Context) error {
	defer t.close(ctx)
	_, err := t.engine.breaker.Execute(func() (interface{}, error) {
		return nil, t.tx.Commit(ctx)
	})
	return err
}

func (t *graphTx) Rollback(ctx context.Context) error {
	defer t.close(ctx)
	return t.tx.Rollback(ctx)
}

func (t *graphTx) close(ctx context.Context) {
	if err := t.session.Close(ctx); err != nil {
		t.engine.logger.Warn("Failed to close neo4j session", zap.Error(err))
	}
}

// relTypeLiteral backquotes a relationship type after checking it is a plain identifier.
// setPropertyQuery merges a one-entry map so the property key stays a parameter
// without dynamic property syntax, which older 5.x servers reject.
func setPropertyQuery(id valueobjects.NodeID, name string, value valueobjects.Value) (string, map[string]interface{}) {
	return "MATCH (n) WHERE id(n) = $id SET n += $props RETURN count(n) AS updated",
		map[string]interface{}{"id": id.Int64(), "props": map[string]interface{}{name: value.Interface()}}
}

func relTypeLiteral(relType string) (string, error) {
	if !classes.ValidateIdentifier(relType) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRelationshipType, relType)
	}
	return "`" + relType + "`", nil
}

func countOf(records []*neo4j.Record, key string) int64 {
	if len(records) == 0 {
		return 0
	}
	raw, _ := records[0].Get(key)
	n, _ := raw.(int64)
	return n
}

func nodesFromRecords(records []*neo4j.Record, key string) ([]entities.Node, error) {
	nodes := make([]entities.Node, 0, len(records))
	for _, rec := range records {
		node, err := nodeFromRecord(rec, key)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func nodeFromRecord(rec *neo4j.Record, key string) (entities.Node, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return entities.Node{}, fmt.Errorf("could not find return value '%s' in query result", key)
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return entities.Node{}, fmt.Errorf("return value '%s' is not a node", key)
	}
	return toNode(node)
}

func toNode(node neo4j.Node) (entities.Node, error) {
	props, err := valueobjects.PropertiesFromMap(node.Props)
	if err != nil {
		return entities.Node{}, fmt.Errorf("node %d: %w", node.Id, err)
	}
	return entities.Node{ID: valueobjects.NodeID(node.Id), Properties: props}, nil
}

func relationshipFromRecord(rec *neo4j.Record, key string) (entities.Relationship, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return entities.Relationship{}, fmt.Errorf("could not find return value '%s' in query result", key)
	}
	rel, ok := raw.(neo4j.Relationship)
	if !ok {
		return entities.Relationship{}, fmt.Errorf("return value '%s' is not a relationship", key)
	}
	return toRelationship(rel)
}

func toRelationship(rel neo4j.Relationship) (entities.Relationship, error) {
	props, err := valueobjects.PropertiesFromMap(rel.Props)
	if err != nil {
		return entities.Relationship{}, fmt.Errorf("relationship %d: %w", rel.Id, err)
	}
	return entities.Relationship{
		ID:         valueobjects.RelationshipID(rel.Id),
		Type:       rel.Type,
		Start:      valueobjects.NodeID(rel.StartId),
		End:        valueobjects.NodeID(rel.EndId),
		Properties: props,
	}, nil
}
