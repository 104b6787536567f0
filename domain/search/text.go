package search

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"neorest/domain/core/valueobjects"
)

// MatchMode selects how a free-text term compares against words.
type MatchMode int

const (
	MatchWord MatchMode = iota
	MatchPrefix
	MatchFuzzy
)

const maxFuzzyEdits = 2

// Term is one free-text query term, optionally bound to a field.
type Term struct {
	Field string
	Text  string
	Mode  MatchMode
}

// ParseText parses a free-text query such as "name:ali* city:berlni~ engineer".
// Terms are ANDed; the keywords AND and "+" prefixes are accepted and ignored.
func ParseText(q string) ([]Term, error) {
	var terms []Term
	for _, raw := range strings.Fields(q) {
		if raw == "AND" || raw == "&&" {
			continue
		}
		raw = strings.TrimPrefix(raw, "+")

		var t Term
		if i := strings.Index(raw, ":"); i >= 0 {
			t.Field = raw[:i]
			raw = raw[i+1:]
			if t.Field == "" {
				return nil, fmt.Errorf("%w: empty field in %q", ErrInvalidQuery, q)
			}
		}
		switch {
		case strings.HasSuffix(raw, "*"):
			t.Mode = MatchPrefix
			raw = strings.TrimSuffix(raw, "*")
		case strings.HasSuffix(raw, "~"):
			t.Mode = MatchFuzzy
			raw = strings.TrimSuffix(raw, "~")
		}
		t.Text = strings.ToLower(raw)
		if t.Text == "" {
			return nil, fmt.Errorf("%w: empty term in %q", ErrInvalidQuery, q)
		}
		terms = append(terms, t)
	}
	return terms, nil
}

// Matches reports whether any word of the selected properties matches the term.
func (t Term) Matches(props valueobjects.Properties) bool {
	if t.Field != "" {
		v, ok := props[t.Field]
		return ok && t.matchText(v.String())
	}
	for _, v := range props {
		if t.matchText(v.String()) {
			return true
		}
	}
	return false
}

func (t Term) matchText(s string) bool {
	for _, word := range words(s) {
		switch t.Mode {
		case MatchPrefix:
			if strings.HasPrefix(word, t.Text) {
				return true
			}
		case MatchFuzzy:
			if levenshtein.Distance(word, t.Text, nil) <= fuzzyBudget(t.Text) {
				return true
			}
		default:
			if word == t.Text {
				return true
			}
		}
	}
	return false
}

func fuzzyBudget(term string) int {
	n := len([]rune(term)) / 2
	if n > maxFuzzyEdits {
		return maxFuzzyEdits
	}
	return n
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '-'
	})
}
