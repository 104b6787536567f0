// Package validators checks request-supplied references before they reach the graph.
package validators

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrBadNodeURI is returned when a reference is not shaped like a node resource URI.
var ErrBadNodeURI = errors.New("bad node uri")

// nodeURIPattern accepts absolute and host-relative URLs ending in at least two path segments.
var nodeURIPattern = regexp.MustCompile(`((http[s]?|ftp):\/)?\/?([^:\/\s]+)((\/\w+)*\/)([\w\-\.]+[^#?\s]+)$`)

// NodeRef is the (class, id) pair named by the last two segments of a node URI.
// ID is left unparsed; an id that does not resolve is reported by the caller.
type NodeRef struct {
	Class string
	ID    string
}

// ParseNodeURI extracts the target class and id from ".../nodes/{class}/{id}".
func ParseNodeURI(raw string) (NodeRef, error) {
	if !nodeURIPattern.MatchString(raw) {
		return NodeRef{}, fmt.Errorf("%w: %q", ErrBadNodeURI, raw)
	}

	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) < 2 {
		return NodeRef{}, fmt.Errorf("%w: %q", ErrBadNodeURI, raw)
	}
	return NodeRef{
		Class: segments[len(segments)-2],
		ID:    segments[len(segments)-1],
	}, nil
}
