package registry

import (
	"sort"
	"strings"
)

// Country is one compiled registry entry.
type Country struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Enabled bool     `json:"enabled"`
	Aliases []string `json:"aliases,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// Registry is the compiled set of countries, ordered by code.
type Registry struct {
	Countries []Country

	byCode  map[string]*Country
	byAlias map[string]*Country
}

// NewRegistry builds a registry from compiled countries. Input order
// does not matter; the registry sorts by code.
func NewRegistry(countries []Country) *Registry {
	sorted := make([]Country, len(countries))
	copy(sorted, countries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	r := &Registry{
		Countries: sorted,
		byCode:    make(map[string]*Country, len(sorted)),
		byAlias:   make(map[string]*Country),
	}
	for i := range r.Countries {
		c := &r.Countries[i]
		r.byCode[c.Code] = c
		for _, alias := range c.Aliases {
			r.byAlias[strings.ToLower(alias)] = c
		}
	}
	return r
}

// Lookup returns the country with the given code.
func (r *Registry) Lookup(code string) (*Country, bool) {
	c, ok := r.byCode[code]
	return c, ok
}

// Has reports whether the code is registered, enabled or not.
func (r *Registry) Has(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// Resolve maps a user-supplied scope term onto a country. Codes match
// case-insensitively, then aliases. Validate keeps the two namespaces
// disjoint, so the order only decides ties against the same entry.
func (r *Registry) Resolve(term string) (*Country, bool) {
	term = strings.TrimSpace(term)
	if c, ok := r.byCode[strings.ToUpper(term)]; ok {
		return c, true
	}
	c, ok := r.byAlias[strings.ToLower(term)]
	return c, ok
}

// EnabledCodes returns the codes eligible for an all-country scope,
// in code order.
func (r *Registry) EnabledCodes() []string {
	codes := []string{}
	for i := range r.Countries {
		if r.Countries[i].Enabled {
			codes = append(codes, r.Countries[i].Code)
		}
	}
	return codes
}

// Len returns the number of registered countries.
func (r *Registry) Len() int {
	return len(r.Countries)
}
