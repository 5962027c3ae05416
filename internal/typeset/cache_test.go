package typeset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCached_MemoizesResultsAndParseErrors(t *testing.T) {
	calls := 0
	next := Func(func(source string, display bool) (string, error) {
		calls++
		if source == "bad" {
			return "", &ParseError{Source: source, Msg: "bad"}
		}
		return "<" + source + ">", nil
	})

	c, err := NewCached(next, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := c.Typeset("x", false)
		require.NoError(t, err)
		assert.Equal(t, "<x>", out)
	}
	assert.Equal(t, 1, calls)

	// display mode is part of the key
	_, err = c.Typeset("x", true)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	for i := 0; i < 2; i++ {
		_, err := c.Typeset("bad", false)
		assert.True(t, IsParseError(err))
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCached_DoesNotCacheTransientErrors(t *testing.T) {
	calls := 0
	next := Func(func(source string, display bool) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("engine unavailable")
		}
		return source, nil
	})

	c, err := NewCached(next, 0)
	require.NoError(t, err)

	_, err = c.Typeset("y", false)
	require.Error(t, err)
	assert.False(t, IsParseError(err))

	out, err := c.Typeset("y", false)
	require.NoError(t, err)
	assert.Equal(t, "y", out)
	assert.Equal(t, 2, calls)
}

func TestNewCached_NilTypesetter(t *testing.T) {
	_, err := NewCached(nil, 4)
	assert.Error(t, err)
}
