// Package depgraph provides the indexed service table and the
// dependency-graph queries the Action Dispatcher traverses (spec §4.D).
// It replaces the original's intrusive linked list with a plain slice plus
// a name index. Traversal marks (Visited/DependVisited) still live on the
// Service struct itself, matching the data model; ResetMarks is the single
// sweep that clears them after every action batch so the next traversal
// starts clean.
package depgraph

import "github.com/asydsolutions/sentinel/internal/service"

// Table is the full, ordered catalogue of services one engine context
// operates on. Configuration order is preserved for cycle evaluation
// (spec §5: "services are evaluated in configuration order").
type Table struct {
	order  []string
	byName map[string]*service.Service
}

// NewTable indexes services, preserving their input order.
func NewTable(services []*service.Service) *Table {
	t := &Table{byName: make(map[string]*service.Service, len(services))}
	for _, s := range services {
		t.order = append(t.order, s.Name)
		t.byName[s.Name] = s
	}
	return t
}

// Get looks up a service by name.
func (t *Table) Get(name string) (*service.Service, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// All returns every service in configuration order. The returned slice is
// a fresh copy, but it shares the underlying Service pointers with the
// table.
func (t *Table) All() []*service.Service {
	out := make([]*service.Service, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// Dependants returns every service that names s as one of its
// dependencies (DependsOn), in configuration order — the "children" that
// must stop before s and start again after it.
func (t *Table) Dependants(name string) []*service.Service {
	var out []*service.Service
	for _, candidateName := range t.order {
		candidate := t.byName[candidateName]
		for _, dep := range candidate.DependsOn {
			if dep == name {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// ResetMarks clears Visited and DependVisited on every service, as the
// Action Dispatcher does after each action batch (spec §4.D/§4.E).
func (t *Table) ResetMarks() {
	for _, name := range t.order {
		s := t.byName[name]
		s.Visited = false
		s.DependVisited = false
	}
}
