package uniuri

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	seen := make(map[string]struct{})

	for range 100 {
		tok, err := Token()
		require.NoError(t, err)
		require.Len(t, tok, TokenLen)

		for _, c := range tok {
			require.True(t, strings.ContainsRune(string(Alphabet), c), "unexpected character %q", c)
		}

		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}

func TestNewLenChars(t *testing.T) {
	tok, err := NewLenChars(2000, []byte("ab"))
	require.NoError(t, err)
	assert.Len(t, tok, 2000)
	assert.Equal(t, 2000, strings.Count(tok, "a")+strings.Count(tok, "b"))

	tok, err = NewLen(0)
	require.NoError(t, err)
	assert.Empty(t, tok)

	_, err = NewLenChars(8, []byte("a"))
	require.ErrorIs(t, err, ErrAlphabet)
}

func TestDistribution(t *testing.T) {
	// three does not divide 256, so unbiased sampling needs rejection
	tok, err := NewLenChars(30000, []byte("xyz"))
	require.NoError(t, err)

	for _, c := range "xyz" {
		n := strings.Count(tok, string(c))
		assert.InDelta(t, 10000, n, 600, "character %q", c)
	}
}
