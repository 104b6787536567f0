// Package memory provides an in-process graph engine with serializable transactions.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"neorest/application/ports"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	"neorest/domain/search"

	"go.uber.org/zap"
)

// ReferenceNodeClass is stamped on the root node created with every engine.
const ReferenceNodeClass = "ReferenceNode"

const refNodeID valueobjects.NodeID = 0

var (
	ErrTxClosed        = errors.New("transaction already closed")
	ErrInvalidDepth    = errors.New("traversal depth must be at least 1")
	ErrMissingClass    = errors.New("search requires class metadata")
	ErrInvalidRelation = errors.New("relationship type must be an identifier")
)

type relationship struct {
	id    valueobjects.RelationshipID
	typ   string
	start valueobjects.NodeID
	end   valueobjects.NodeID
	props valueobjects.Properties
}

// Engine stores nodes and relationships in maps. One transaction runs at a time;
// Begin blocks until the previous transaction commits or rolls back.
type Engine struct {
	sem    chan struct{}
	logger *zap.Logger

	nodes    map[valueobjects.NodeID]valueobjects.Properties
	rels     map[valueobjects.RelationshipID]*relationship
	out      map[valueobjects.NodeID][]valueobjects.RelationshipID
	in       map[valueobjects.NodeID][]valueobjects.RelationshipID
	nextNode valueobjects.NodeID
	nextRel  valueobjects.RelationshipID
}

var _ ports.GraphEngine = (*Engine)(nil)

// NewEngine creates an engine holding only the reference node
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		sem:      make(chan struct{}, 1),
		logger:   logger,
		nodes:    make(map[valueobjects.NodeID]valueobjects.Properties),
		rels:     make(map[valueobjects.RelationshipID]*relationship),
		out:      make(map[valueobjects.NodeID][]valueobjects.RelationshipID),
		in:       make(map[valueobjects.NodeID][]valueobjects.RelationshipID),
		nextNode: refNodeID + 1,
		nextRel:  0,
	}
	e.nodes[refNodeID] = valueobjects.Properties{
		valueobjects.ClassNameProperty: valueobjects.String(ReferenceNodeClass),
	}
	return e
}

// Begin acquires the engine for a new transaction
func (e *Engine) Begin(ctx context.Context) (ports.GraphTx, error) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &tx{engine: e}, nil
}

// Close is a no-op; the engine lives as long as the process
func (e *Engine) Close(ctx context.Context) error {
	return nil
}

// tx journals an undo step for every mutation so Rollback can restore the engine.
type tx struct {
	engine *Engine
	undo   []func()
	closed bool
}

func (t *tx) check() error {
	if t.closed {
		return ErrTxClosed
	}
	return nil
}

func (t *tx) release() {
	t.closed = true
	t.undo = nil
	<-t.engine.sem
}

func (t *tx) CreateNode(ctx context.Context) (valueobjects.NodeID, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	e := t.engine
	id := e.nextNode
	e.nextNode++
	e.nodes[id] = valueobjects.Properties{}
	t.undo = append(t.undo, func() { delete(e.nodes, id) })
	return id, nil
}

func (t *tx) LoadNode(ctx context.Context, id valueobjects.NodeID) (entities.Node, error) {
	if err := t.check(); err != nil {
		return entities.Node{}, err
	}
	props, ok := t.engine.nodes[id]
	if !ok {
		return entities.Node{}, fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}
	return entities.Node{ID: id, Properties: props.Clone()}, nil
}

func (t *tx) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	if err := t.check(); err != nil {
		return err
	}
	if id == refNodeID {
		return fmt.Errorf("node %d: %w", id, ports.ErrProtectedNode)
	}
	e := t.engine
	props, ok := e.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}

	touched := append(append([]valueobjects.RelationshipID{}, e.out[id]...), e.in[id]...)
	removed := make(map[valueobjects.RelationshipID]*relationship, len(touched))
	savedOut := make(map[valueobjects.NodeID][]valueobjects.RelationshipID)
	savedIn := make(map[valueobjects.NodeID][]valueobjects.RelationshipID)
	savedOut[id] = e.out[id]
	savedIn[id] = e.in[id]
	for _, rid := range touched {
		r, ok := e.rels[rid]
		if !ok {
			continue
		}
		removed[rid] = r
		if _, seen := savedOut[r.start]; !seen {
			savedOut[r.start] = e.out[r.start]
		}
		if _, seen := savedIn[r.end]; !seen {
			savedIn[r.end] = e.in[r.end]
		}
	}

	for rid, r := range removed {
		delete(e.rels, rid)
		e.out[r.start] = without(e.out[r.start], rid)
		e.in[r.end] = without(e.in[r.end], rid)
	}
	delete(e.out, id)
	delete(e.in, id)
	delete(e.nodes, id)

	t.undo = append(t.undo, func() {
		e.nodes[id] = props
		for rid, r := range removed {
			e.rels[rid] = r
		}
		for nid, ids := range savedOut {
			restoreAdjacency(e.out, nid, ids)
		}
		for nid, ids := range savedIn {
			restoreAdjacency(e.in, nid, ids)
		}
	})
	return nil
}

func (t *tx) GetProperty(ctx context.Context, id valueobjects.NodeID, name string) (valueobjects.Value, bool, error) {
	if err := t.check(); err != nil {
		return valueobjects.Value{}, false, err
	}
	props, ok := t.engine.nodes[id]
	if !ok {
		return valueobjects.Value{}, false, fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}
	v, ok := props[name]
	return v, ok, nil
}

func (t *tx) SetProperty(ctx context.Context, id valueobjects.NodeID, name string, value valueobjects.Value) error {
	if err := t.check(); err != nil {
		return err
	}
	if !value.IsValid() {
		return valueobjects.ErrUnsupportedValue
	}
	props, ok := t.engine.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}
	prev, had := props[name]
	props[name] = value
	t.undo = append(t.undo, func() {
		if had {
			props[name] = prev
		} else {
			delete(props, name)
		}
	})
	return nil
}

func (t *tx) CreateRelationship(ctx context.Context, from, to valueobjects.NodeID, relType string) (entities.Relationship, error) {
	if err := t.check(); err != nil {
		return entities.Relationship{}, err
	}
	if !classes.ValidateIdentifier(relType) {
		return entities.Relationship{}, fmt.Errorf("%w: %q", ErrInvalidRelation, relType)
	}
	e := t.engine
	if _, ok := e.nodes[from]; !ok {
		return entities.Relationship{}, fmt.Errorf("start node %d: %w", from, ports.ErrNotFound)
	}
	if _, ok := e.nodes[to]; !ok {
		return entities.Relationship{}, fmt.Errorf("end node %d: %w", to, ports.ErrNotFound)
	}

	r := &relationship{id: e.nextRel, typ: relType, start: from, end: to, props: valueobjects.Properties{}}
	e.nextRel++
	prevOut, prevIn := e.out[from], e.in[to]
	e.rels[r.id] = r
	e.out[from] = append(append([]valueobjects.RelationshipID{}, prevOut...), r.id)
	e.in[to] = append(append([]valueobjects.RelationshipID{}, prevIn...), r.id)

	t.undo = append(t.undo, func() {
		delete(e.rels, r.id)
		restoreAdjacency(e.out, from, prevOut)
		restoreAdjacency(e.in, to, prevIn)
	})
	return r.snapshot(), nil
}

func (t *tx) LoadRelationship(ctx context.Context, id valueobjects.RelationshipID) (entities.Relationship, error) {
	if err := t.check(); err != nil {
		return entities.Relationship{}, err
	}
	r, ok := t.engine.rels[id]
	if !ok {
		return entities.Relationship{}, fmt.Errorf("relationship %d: %w", id, ports.ErrNotFound)
	}
	return r.snapshot(), nil
}

func (t *tx) OutgoingRelationships(ctx context.Context, id valueobjects.NodeID, relType string) ([]entities.Relationship, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	e := t.engine
	if _, ok := e.nodes[id]; !ok {
		return nil, fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}
	out := make([]entities.Relationship, 0, len(e.out[id]))
	for _, rid := range e.out[id] {
		r := e.rels[rid]
		if relType == "" || r.typ == relType {
			out = append(out, r.snapshot())
		}
	}
	return out, nil
}

func (t *tx) TraverseOutgoing(ctx context.Context, id valueobjects.NodeID, relType string, depth int) ([]entities.Node, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if depth < 1 {
		return nil, ErrInvalidDepth
	}
	e := t.engine
	if _, ok := e.nodes[id]; !ok {
		return nil, fmt.Errorf("node %d: %w", id, ports.ErrNotFound)
	}

	visited := map[valueobjects.NodeID]bool{id: true}
	frontier := []valueobjects.NodeID{id}
	var reached []entities.Node
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []valueobjects.NodeID
		for _, nid := range frontier {
			for _, rid := range e.out[nid] {
				r := e.rels[rid]
				if r.typ != relType || visited[r.end] {
					continue
				}
				visited[r.end] = true
				next = append(next, r.end)
				reached = append(reached, entities.Node{ID: r.end, Properties: e.nodes[r.end].Clone()})
			}
		}
		frontier = next
	}
	return reached, nil
}

func (t *tx) Search(ctx context.Context, class *classes.ClassMetadata, criteria search.Criteria) ([]entities.Node, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrMissingClass
	}
	e := t.engine
	ids := make([]valueobjects.NodeID, 0, len(e.nodes))
	for id, props := range e.nodes {
		if props.ClassName() == class.Name() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	candidates := make([]entities.Node, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, entities.Node{ID: id, Properties: e.nodes[id].Clone()})
	}
	return criteria.Apply(candidates), nil
}

func (t *tx) RefNode(ctx context.Context) (entities.Node, error) {
	return t.LoadNode(ctx, refNodeID)
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.release()
	return nil
}

// Rollback replays the undo journal newest first
func (t *tx) Rollback(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	steps := len(t.undo)
	for i := steps - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.engine.logger.Debug("Rolled back memory transaction", zap.Int("steps", steps))
	t.release()
	return nil
}

func (r *relationship) snapshot() entities.Relationship {
	return entities.Relationship{
		ID:         r.id,
		Type:       r.typ,
		Start:      r.start,
		End:        r.end,
		Properties: r.props.Clone(),
	}
}

func without(ids []valueobjects.RelationshipID, drop valueobjects.RelationshipID) []valueobjects.RelationshipID {
	out := make([]valueobjects.RelationshipID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func restoreAdjacency(m map[valueobjects.NodeID][]valueobjects.RelationshipID, id valueobjects.NodeID, ids []valueobjects.RelationshipID) {
	if len(ids) == 0 {
		delete(m, id)
		return
	}
	m[id] = ids
}
