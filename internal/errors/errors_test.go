package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstreamError struct {
	Status int
}

func (e *upstreamError) Error() string { return "upstream failed" }

func TestNew(t *testing.T) {
	err := New("registry unavailable")
	require.Error(t, err)
	assert.Equal(t, "registry unavailable", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("wrap non-nil error", func(t *testing.T) {
		wrapped := Wrap(ErrNotFound, "application 'service-b'")
		require.Error(t, wrapped)
		assert.Equal(t, "application 'service-b': not found", wrapped.Error())
		assert.True(t, errors.Is(wrapped, ErrNotFound))
	})

	t.Run("wrap nil error", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "context"))
	})

	t.Run("nested wrap keeps sentinel", func(t *testing.T) {
		inner := Wrap(ErrInvalidInput, "capability not declared")
		outer := Wrap(inner, "capability 'withdraw' not found for application 'service-b'")
		assert.True(t, Is(outer, ErrInvalidInput))
		assert.False(t, Is(outer, ErrNotFound))
	})
}

func TestIs(t *testing.T) {
	assert.True(t, Is(ErrUnavailable, ErrUnavailable))
	assert.True(t, Is(Wrap(ErrUnavailable, "destination unreachable"), ErrUnavailable))
	assert.False(t, Is(ErrForbidden, ErrUnauthorized))
}

func TestAs(t *testing.T) {
	err := Wrap(&upstreamError{Status: 502}, "forward failed")

	var target *upstreamError
	require.True(t, As(err, &target))
	assert.Equal(t, 502, target.Status)

	var other *upstreamError
	assert.False(t, As(ErrConflict, &other))
}
