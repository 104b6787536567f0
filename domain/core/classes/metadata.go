// Package classes holds the process-wide registry of logical entity classes.
package classes

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"neorest/domain/core/valueobjects"
)

var (
	ErrInvalidClassName = errors.New("invalid class name")
	ErrClassNotFound    = errors.New("class not found")
)

// NamespaceSeparator joins the segments of a nested class name.
const NamespaceSeparator = "::"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ClassDefinition declares an entity class before registration.
type ClassDefinition struct {
	Name          string
	Properties    []string
	Relationships []string
	Description   string
}

// ClassMetadata is the immutable registry entry for a class.
type ClassMetadata struct {
	name          string
	description   string
	properties    []string
	relationships []string
	propertySet   map[string]struct{}
	relSet        map[string]struct{}
}

func newClassMetadata(def ClassDefinition) *ClassMetadata {
	m := &ClassMetadata{
		name:        def.Name,
		description: def.Description,
		propertySet: map[string]struct{}{valueobjects.ClassNameProperty: {}},
		relSet:      make(map[string]struct{}),
	}
	for _, p := range def.Properties {
		m.propertySet[p] = struct{}{}
	}
	for _, r := range def.Relationships {
		m.relSet[r] = struct{}{}
	}
	m.properties = sortedKeys(m.propertySet)
	m.relationships = sortedKeys(m.relSet)
	return m
}

func (m *ClassMetadata) Name() string        { return m.name }
func (m *ClassMetadata) Description() string { return m.description }

// Properties returns the declared property names, always including classname.
func (m *ClassMetadata) Properties() []string {
	return append([]string(nil), m.properties...)
}

// Relationships returns the declared relationship types.
func (m *ClassMetadata) Relationships() []string {
	return append([]string(nil), m.relationships...)
}

func (m *ClassMetadata) HasProperty(name string) bool {
	_, ok := m.propertySet[name]
	return ok
}

func (m *ClassMetadata) HasRelationship(name string) bool {
	_, ok := m.relSet[name]
	return ok
}

// ValidateName checks a fully qualified class name such as "Shop::Order".
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidClassName
	}
	for _, seg := range strings.Split(name, NamespaceSeparator) {
		if !identifierPattern.MatchString(seg) {
			return ErrInvalidClassName
		}
	}
	return nil
}

// ValidateIdentifier checks a single property or relationship type name.
func ValidateIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Normalize turns a path token into a class name.
// Both "Shop.Order" and "Shop::Order" resolve to "Shop::Order"; a leading separator is dropped.
func Normalize(token string) string {
	token = strings.TrimSpace(token)
	token = strings.ReplaceAll(token, ".", NamespaceSeparator)
	return strings.TrimPrefix(token, NamespaceSeparator)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
