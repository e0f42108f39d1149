// Package keywords maps business categories to the query terms issued
// against the places directory for a given region.
package keywords

import (
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// defaultTerms is the built-in category table. {region} expands to the
// region name so queries stay anchored to the area being scanned.
var defaultTerms = map[string][]string{
	"restaurant": {"restaurant", "new restaurant {region}"},
	"cafe":       {"cafe", "coffee shop {region}"},
	"bar":        {"bar", "new bar {region}"},
	"bakery":     {"bakery"},
	"gym":        {"gym", "fitness studio {region}"},
	"salon":      {"hair salon", "beauty salon"},
	"shop":       {"shop", "new store {region}"},
}

// Mapping resolves query terms per category, with operator overrides from
// the "keywords" config key taking precedence over the built-in table.
type Mapping struct {
	overrides map[string][]string
}

func NewMapping() *Mapping {
	return &Mapping{overrides: map[string][]string{}}
}

// FromViper loads category overrides: keywords.<category> = [term, ...].
func FromViper(v *viper.Viper) *Mapping {
	m := NewMapping()
	if v.IsSet("keywords") {
		for cat, terms := range v.GetStringMapStringSlice("keywords") {
			m.overrides[strings.ToLower(cat)] = terms
		}
	}
	return m
}

// TermsFor returns the query terms for a category in a region. Unknown
// categories fall back to the category string itself, so a scan for an
// unmapped category still issues a sensible query.
func (m *Mapping) TermsFor(category, regionName string) []string {
	cat := strings.ToLower(strings.TrimSpace(category))
	terms, ok := m.overrides[cat]
	if !ok {
		terms, ok = defaultTerms[cat]
	}
	if !ok {
		if cat == "" {
			return nil
		}
		terms = []string{cat}
	}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, strings.TrimSpace(strings.ReplaceAll(t, "{region}", regionName)))
	}
	return out
}

// Categories lists the categories with built-in or overridden terms.
func (m *Mapping) Categories() []string {
	seen := map[string]bool{}
	for c := range defaultTerms {
		seen[c] = true
	}
	for c := range m.overrides {
		seen[c] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
