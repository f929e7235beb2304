// Package schema maps logical tables and operations to SQL for a dialect.
package schema

import (
	"fmt"
	"regexp"
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Table is one table definition and the tables it references.
type Table struct {
	Name      string
	DependsOn []string
	Create    string
}

// Drop returns the statement removing the table.
func (t Table) Drop() string {
	return "DROP TABLE IF EXISTS " + t.Name + " CASCADE"
}

// Registry holds table definitions in registration order.
type Registry struct {
	tables []Table
	index  map[string]int
}

// NewRegistry validates names and references and builds a Registry.
func NewRegistry(tables ...Table) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(tables))}
	for _, t := range tables {
		if !validIdentifier.MatchString(t.Name) {
			return nil, fmt.Errorf("invalid table name %q", t.Name)
		}
		if _, dup := r.index[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		r.index[t.Name] = len(r.tables)
		r.tables = append(r.tables, t)
	}
	for _, t := range r.tables {
		for _, dep := range t.DependsOn {
			if _, ok := r.index[dep]; !ok {
				return nil, fmt.Errorf("table %q depends on unknown table %q", t.Name, dep)
			}
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for static definitions; it panics on error.
func MustRegistry(tables ...Table) *Registry {
	r, err := NewRegistry(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

// Names returns table names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// CreateOrder sorts tables so every table follows the tables it references.
// Ties keep registration order; self references are ignored.
func (r *Registry) CreateOrder() ([]Table, error) {
	emitted := make(map[string]bool, len(r.tables))
	ordered := make([]Table, 0, len(r.tables))
	for len(ordered) < len(r.tables) {
		progressed := false
		for _, t := range r.tables {
			if emitted[t.Name] || !r.ready(t, emitted) {
				continue
			}
			emitted[t.Name] = true
			ordered = append(ordered, t)
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among tables %v", r.pending(emitted))
		}
	}
	return ordered, nil
}

// DropOrder is CreateOrder reversed.
func (r *Registry) DropOrder() ([]Table, error) {
	ordered, err := r.CreateOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered, nil
}

func (r *Registry) ready(t Table, emitted map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if dep != t.Name && !emitted[dep] {
			return false
		}
	}
	return true
}

func (r *Registry) pending(emitted map[string]bool) []string {
	var names []string
	for _, t := range r.tables {
		if !emitted[t.Name] {
			names = append(names, t.Name)
		}
	}
	return names
}
