package valueobjects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NodeID is the engine-assigned identifier of a node.
// It is stable for the lifetime of the node and never reused by the engine
// while the node exists.
type NodeID int64

// RelationshipID is the engine-assigned identifier of a relationship.
type RelationshipID int64

var (
	ErrEmptyID   = errors.New("id cannot be empty")
	ErrInvalidID = errors.New("id must be a non-negative integer")
)

// ParseNodeID parses a node id taken from a path segment.
func ParseNodeID(s string) (NodeID, error) {
	v, err := parseID(s)
	if err != nil {
		return 0, err
	}
	return NodeID(v), nil
}

// ParseRelationshipID parses a relationship id taken from a path segment.
func ParseRelationshipID(s string) (RelationshipID, error) {
	v, err := parseID(s)
	if err != nil {
		return 0, err
	}
	return RelationshipID(v), nil
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyID
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return v, nil
}

// String returns the decimal form used in URIs
func (id NodeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Int64 returns the raw engine id
func (id NodeID) Int64() int64 {
	return int64(id)
}

// String returns the decimal form used in URIs
func (id RelationshipID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Int64 returns the raw engine id
func (id RelationshipID) Int64() int64 {
	return int64(id)
}
