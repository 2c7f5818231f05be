package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalkPrunesRejectedSubtrees(t *testing.T) {
	edges := map[string][]string{
		"root": {"a", "b"},
		"a":    {"a1", "a2"},
		"b":    {"b1"},
		"b1":   {"b2"},
		"a2":   {"root"},
	}
	next := func(n string) []string { return edges[n] }
	key := func(n string) string { return n }

	all := Walk([]string{"root"}, key, next, nil, 0)
	assert.Equal(t, []string{"a", "b", "a1", "a2", "b1", "b2"}, all)

	pruned := Walk([]string{"root"}, key, next, func(n string) bool { return n != "b" }, 0)
	assert.Equal(t, []string{"a", "a1", "a2"}, pruned)

	limited := Walk([]string{"root"}, key, next, nil, 3)
	assert.Equal(t, []string{"a", "b", "a1"}, limited)
}
