package services

import (
	"context"
	"fmt"
	"time"

	"neorest/application/ogm"
	"neorest/application/transaction"
	"neorest/domain/core/classes"
	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
	"neorest/domain/events"
	"neorest/pkg/extensions"

	"go.uber.org/zap"
)

const (
	// MetaClassNameProperty holds the mirrored class name on a MetaNode
	MetaClassNameProperty = "meta_classname"

	// RelMetaNodes links the reference node to the MetaNodes root
	RelMetaNodes = "meta_nodes"

	// RelNodes links the MetaNodes root to each MetaNode
	RelNodes = "nodes"
)

// MetaGraph mirrors every registered class as a MetaNode in the graph:
//
//	ref node -meta_nodes-> MetaNodes -nodes-> MetaNode{meta_classname}
//
// It listens on HookClassDefined, so bootstrap classes never reach it, and on
// HookSchemaLoaded to restore mirrors of classes that were already registered.
type MetaGraph struct {
	scope    *transaction.Boundary
	registry *classes.Registry
	logger   *zap.Logger

	metaNode  *classes.ClassMetadata
	metaNodes *classes.ClassMetadata
}

// NewMetaGraph creates the service, registers the bootstrap classes and subscribes to class definitions
func NewMetaGraph(ctx context.Context, scope *transaction.Boundary, registry *classes.Registry, hooks *extensions.HookManager, logger *zap.Logger) (*MetaGraph, error) {
	metaNode, _, err := registry.Define(ctx, classes.ClassDefinition{
		Name:        classes.MetaNodeClass,
		Properties:  []string{MetaClassNameProperty},
		Description: "Graph mirror of a registered class",
	})
	if err != nil {
		return nil, err
	}
	metaNodes, _, err := registry.Define(ctx, classes.ClassDefinition{
		Name:          classes.MetaNodesClass,
		Relationships: []string{RelNodes},
		Description:   "Root of all MetaNode instances",
	})
	if err != nil {
		return nil, err
	}

	m := &MetaGraph{
		scope:     scope,
		registry:  registry,
		logger:    logger,
		metaNode:  metaNode,
		metaNodes: metaNodes,
	}
	hooks.Register(extensions.HookClassDefined, m.onClassDefined)
	hooks.Register(extensions.HookSchemaLoaded, m.onSchemaLoaded)
	return m, nil
}

func (m *MetaGraph) onSchemaLoaded(ctx context.Context, data interface{}) error {
	names, ok := data.([]string)
	if !ok {
		return fmt.Errorf("unexpected hook data %T", data)
	}
	for _, name := range names {
		if classes.IsBootstrap(name) {
			continue
		}
		if _, err := m.Ensure(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *MetaGraph) onClassDefined(ctx context.Context, data interface{}) error {
	class, ok := data.(*classes.ClassMetadata)
	if !ok {
		return fmt.Errorf("unexpected hook data %T", data)
	}
	_, err := m.Ensure(ctx, class.Name())
	return err
}

// Ensure returns the MetaNode for a class, creating it and the MetaNodes root when missing.
func (m *MetaGraph) Ensure(ctx context.Context, className string) (entities.Node, error) {
	return transaction.Run(ctx, m.scope, func(ctx context.Context) (entities.Node, error) {
		root, err := m.root(ctx)
		if err != nil {
			return entities.Node{}, err
		}
		if node, found, err := m.find(ctx, root, className); err != nil || found {
			return node, err
		}

		meta, err := ogm.New(ctx, m.scope, m.metaNode, func(ctx context.Context, e *ogm.Entity) error {
			return e.Set(ctx, MetaClassNameProperty, valueobjects.String(className))
		})
		if err != nil {
			return entities.Node{}, err
		}
		nodes, err := root.Relations(RelNodes)
		if err != nil {
			return entities.Node{}, err
		}
		if _, err := nodes.Append(ctx, meta); err != nil {
			return entities.Node{}, err
		}
		transaction.Emit(ctx, events.NewClassDefined(className, meta.ID(), time.Now()))
		m.logger.Debug("Created meta node", zap.String("class", className), zap.String("nodeID", meta.ID().String()))

		props, err := meta.Props(ctx)
		if err != nil {
			return entities.Node{}, err
		}
		return entities.Node{ID: meta.ID(), Properties: props}, nil
	})
}

// MetaNode returns the mirror of a class without creating it.
func (m *MetaGraph) MetaNode(ctx context.Context, className string) (entities.Node, bool, error) {
	type lookup struct {
		node  entities.Node
		found bool
	}
	r, err := transaction.Run(ctx, m.scope, func(ctx context.Context) (lookup, error) {
		root, err := m.root(ctx)
		if err != nil {
			return lookup{}, err
		}
		node, found, err := m.find(ctx, root, className)
		return lookup{node: node, found: found}, err
	})
	return r.node, r.found, err
}

// root follows ref -meta_nodes-> and creates the MetaNodes root on first use.
func (m *MetaGraph) root(ctx context.Context) (*ogm.Entity, error) {
	ref, err := ogm.RefNode(ctx, m.scope)
	if err != nil {
		return nil, err
	}
	refEntity, err := ogm.Load(ctx, m.scope, m.registry, ref.ID)
	if err != nil {
		return nil, err
	}
	rels, err := refEntity.Outgoing(RelMetaNodes).List(ctx)
	if err != nil {
		return nil, err
	}
	if len(rels) > 0 {
		return ogm.Wrap(ctx, m.scope, m.metaNodes, rels[0].End)
	}

	root, err := ogm.New(ctx, m.scope, m.metaNodes, nil)
	if err != nil {
		return nil, err
	}
	if _, err := refEntity.Outgoing(RelMetaNodes).Append(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

func (m *MetaGraph) find(ctx context.Context, root *ogm.Entity, className string) (entities.Node, bool, error) {
	targets, err := root.Outgoing(RelNodes).Targets(ctx)
	if err != nil {
		return entities.Node{}, false, err
	}
	for _, node := range targets {
		if v, ok := node.Properties[MetaClassNameProperty]; ok && v.String() == className {
			return node, true, nil
		}
	}
	return entities.Node{}, false, nil
}
