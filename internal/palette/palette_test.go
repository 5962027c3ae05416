package palette

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"pi", `$\pi$`},
		{"Not equal", `$\neq$`},
		{"not-equal", `$\neq$`},
		{"neq", `$\neq$`},
		{"  PARTIAL DERIVATIVE ", `$\frac{\partial}{\partial x}$`},
		{"perp", `$\perp$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, sym.Insert)
		})
	}

	_, ok := Lookup("")
	assert.False(t, ok)
	_, ok = Lookup("banana")
	assert.False(t, ok)
}

func TestInsertAppends(t *testing.T) {
	sym, ok := Lookup("integral")
	require.True(t, ok)
	assert.Equal(t, `Evaluate $\int$`, Insert("Evaluate ", sym))
}

func TestGroupsInOrder(t *testing.T) {
	assert.Equal(t, []string{
		"Operations", "Fractions and powers", "Greek", "Functions",
		"Sets and logic", "Calculus", "Geometry",
	}, Groups())
}

func TestAllNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All() {
		assert.False(t, seen[s.Name], s.Name)
		seen[s.Name] = true
	}
	assert.Len(t, seen, 52)
}
