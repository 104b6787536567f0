// Package search evaluates node search criteria built from a request query string.
package search

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"neorest/domain/core/entities"
	"neorest/domain/core/valueobjects"
)

const (
	ParamSearch = "search"
	ParamSort   = "sort"
	ParamClass  = "class"
)

var ErrInvalidQuery = errors.New("invalid search query")

// SortField orders results by one property.
type SortField struct {
	Field string
	Desc  bool
}

// Criteria is the opaque query object handed to a graph engine's search.
type Criteria struct {
	// Filters are exact matches on the property's string form; any listed value matches.
	Filters map[string][]string
	Terms   []Term
	Sort    []SortField
}

// FromQuery builds criteria from the full query string. The class parameter is ignored.
func FromQuery(q url.Values) (Criteria, error) {
	c := Criteria{Filters: make(map[string][]string)}
	for key, values := range q {
		switch key {
		case ParamClass:
		case ParamSearch:
			for _, v := range values {
				terms, err := ParseText(v)
				if err != nil {
					return Criteria{}, err
				}
				c.Terms = append(c.Terms, terms...)
			}
		case ParamSort:
			for _, v := range values {
				fields, err := parseSort(v)
				if err != nil {
					return Criteria{}, err
				}
				c.Sort = append(c.Sort, fields...)
			}
		default:
			c.Filters[key] = append(c.Filters[key], values...)
		}
	}
	return c, nil
}

// parseSort reads "name", "name,desc" or "name,desc,age".
func parseSort(v string) ([]SortField, error) {
	var fields []SortField
	for _, tok := range strings.Split(v, ",") {
		tok = strings.TrimSpace(tok)
		switch strings.ToLower(tok) {
		case "":
			continue
		case "asc", "desc":
			if len(fields) == 0 {
				return nil, fmt.Errorf("%w: sort direction %q without a field", ErrInvalidQuery, tok)
			}
			fields[len(fields)-1].Desc = strings.EqualFold(tok, "desc")
		default:
			fields = append(fields, SortField{Field: tok})
		}
	}
	return fields, nil
}

// IsEmpty reports whether the criteria select every node of the class in id order.
func (c Criteria) IsEmpty() bool {
	return len(c.Filters) == 0 && len(c.Terms) == 0 && len(c.Sort) == 0
}

// Matches reports whether a property bag satisfies all filters and terms.
func (c Criteria) Matches(props valueobjects.Properties) bool {
	for field, wanted := range c.Filters {
		v, ok := props[field]
		if !ok || !containsString(wanted, v.String()) {
			return false
		}
	}
	for _, term := range c.Terms {
		if !term.Matches(props) {
			return false
		}
	}
	return true
}

// Apply filters nodes and orders them. Without sort fields the input order is kept.
func (c Criteria) Apply(nodes []entities.Node) []entities.Node {
	out := make([]entities.Node, 0, len(nodes))
	for _, n := range nodes {
		if c.Matches(n.Properties) {
			out = append(out, n)
		}
	}
	if len(c.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			return c.less(out[i].Properties, out[j].Properties)
		})
	}
	return out
}

// Missing sort values order last regardless of direction.
func (c Criteria) less(a, b valueobjects.Properties) bool {
	for _, s := range c.Sort {
		av, aok := a[s.Field]
		bv, bok := b[s.Field]
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return false
		case !bok:
			return true
		}
		cmp := av.Compare(bv)
		if cmp == 0 {
			continue
		}
		if s.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
