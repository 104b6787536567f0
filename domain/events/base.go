package events

import (
	"time"

	"neorest/domain/core/valueobjects"
)

// SourceNeoRest is the event source name used when publishing externally.
const SourceNeoRest = "neorest.graph"

const (
	TypeNodeCreated         = "node.created"
	TypeNodeUpdated         = "node.updated"
	TypeNodeDeleted         = "node.deleted"
	TypePropertySet         = "property.set"
	TypeRelationshipCreated = "relationship.created"
	TypeClassDefined        = "class.defined"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
	GetTransactionID() string
	SetTransactionID(id string)
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID   string    `json:"aggregate_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Version       int       `json:"version"`
	TransactionID string    `json:"transaction_id,omitempty"`
}

func (e BaseEvent) GetAggregateID() string   { return e.AggregateID }
func (e BaseEvent) GetEventType() string     { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time  { return e.Timestamp }
func (e BaseEvent) GetVersion() int          { return e.Version }
func (e BaseEvent) GetTransactionID() string { return e.TransactionID }

// SetTransactionID records the transaction that produced the event
func (e *BaseEvent) SetTransactionID(id string) { e.TransactionID = id }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// Node Events

// NodeCreated is raised when a new node is created and stamped with its class
type NodeCreated struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	ClassName string              `json:"classname"`
}

func NewNodeCreated(nodeID valueobjects.NodeID, className string, timestamp time.Time) *NodeCreated {
	return &NodeCreated{
		BaseEvent: newBase(nodeID.String(), TypeNodeCreated, timestamp),
		NodeID:    nodeID,
		ClassName: className,
	}
}

// NodeUpdated is raised by a bulk property update
type NodeUpdated struct {
	BaseEvent
	NodeID     valueobjects.NodeID `json:"node_id"`
	Properties []string            `json:"properties"`
}

func NewNodeUpdated(nodeID valueobjects.NodeID, properties []string, timestamp time.Time) *NodeUpdated {
	return &NodeUpdated{
		BaseEvent:  newBase(nodeID.String(), TypeNodeUpdated, timestamp),
		NodeID:     nodeID,
		Properties: properties,
	}
}

// NodeDeleted is raised when a node and its relationships are removed
type NodeDeleted struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	ClassName string              `json:"classname"`
}

func NewNodeDeleted(nodeID valueobjects.NodeID, className string, timestamp time.Time) *NodeDeleted {
	return &NodeDeleted{
		BaseEvent: newBase(nodeID.String(), TypeNodeDeleted, timestamp),
		NodeID:    nodeID,
		ClassName: className,
	}
}

// PropertySet is raised when a single property is assigned
type PropertySet struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	Property string              `json:"property"`
	Value    valueobjects.Value  `json:"value"`
}

func NewPropertySet(nodeID valueobjects.NodeID, property string, value valueobjects.Value, timestamp time.Time) *PropertySet {
	return &PropertySet{
		BaseEvent: newBase(nodeID.String(), TypePropertySet, timestamp),
		NodeID:    nodeID,
		Property:  property,
		Value:     value,
	}
}

// Relationship Events

// RelationshipCreated is raised when two nodes are linked
type RelationshipCreated struct {
	BaseEvent
	RelationshipID valueobjects.RelationshipID `json:"relationship_id"`
	Type           string                      `json:"type"`
	StartNodeID    valueobjects.NodeID         `json:"start_node_id"`
	EndNodeID      valueobjects.NodeID         `json:"end_node_id"`
}

func NewRelationshipCreated(id valueobjects.RelationshipID, relType string, start, end valueobjects.NodeID, timestamp time.Time) *RelationshipCreated {
	return &RelationshipCreated{
		BaseEvent:      newBase(start.String(), TypeRelationshipCreated, timestamp),
		RelationshipID: id,
		Type:           relType,
		StartNodeID:    start,
		EndNodeID:      end,
	}
}

// Class Events

// ClassDefined is raised when a new entity class is registered
type ClassDefined struct {
	BaseEvent
	ClassName  string              `json:"classname"`
	MetaNodeID valueobjects.NodeID `json:"meta_node_id"`
}

func NewClassDefined(className string, metaNode valueobjects.NodeID, timestamp time.Time) *ClassDefined {
	return &ClassDefined{
		BaseEvent:  newBase(className, TypeClassDefined, timestamp),
		ClassName:  className,
		MetaNodeID: metaNode,
	}
}
