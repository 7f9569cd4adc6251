package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asydsolutions/sentinel/internal/service"
)

func build() *Table {
	a := &service.Service{Name: "A"}
	b := &service.Service{Name: "B", DependsOn: []string{"A"}}
	c := &service.Service{Name: "C", DependsOn: []string{"B"}}
	return NewTable([]*service.Service{a, b, c})
}

func TestTable_DependantsOfA(t *testing.T) {
	tbl := build()
	dependants := tbl.Dependants("A")
	assert.Len(t, dependants, 1)
	assert.Equal(t, "B", dependants[0].Name)
}

func TestTable_OrderPreserved(t *testing.T) {
	tbl := build()
	names := make([]string, 0)
	for _, s := range tbl.All() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestTable_ResetMarks(t *testing.T) {
	tbl := build()
	a, _ := tbl.Get("A")
	a.Visited = true
	a.DependVisited = true

	tbl.ResetMarks()

	for _, s := range tbl.All() {
		assert.False(t, s.Visited)
		assert.False(t, s.DependVisited)
	}
}
