package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeterministic(t *testing.T) {
	t.Parallel()

	got := New("tata consultancy", "BACKEND", "BANGALORE")
	require.Len(t, got, 64)
	assert.Equal(t, got, New("tata consultancy", "BACKEND", "BANGALORE"))
}

func TestNewSingleTokenChange(t *testing.T) {
	t.Parallel()

	base := New("tata consultancy", "BACKEND", "BANGALORE")
	assert.NotEqual(t, base, New("tata consultancy", "BACKEND", "MUMBAI"))
	assert.NotEqual(t, base, New("tata consultancy", "FRONTEND", "BANGALORE"))
	assert.NotEqual(t, base, New("infosys", "BACKEND", "BANGALORE"))
}

// Concatenation without a separator would make ("ab","c") and ("a","bc")
// collide; the separator must keep them apart.
func TestNewNoSubstringCollision(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, New("ab", "c", "d"), New("a", "bc", "d"))
	assert.NotEqual(t, New("a", "b", "cd"), New("a", "bc", "d"))
}
