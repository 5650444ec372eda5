package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewConfigErrorWithCause("vhosts[0].hosts", "invalid host key", cause)

	assert.Equal(t, "config error at vhosts[0].hosts: invalid host key", err.Error())
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))

	bare := NewConfigError("", "nil configuration")
	assert.Equal(t, "config error: nil configuration", bare.Error())
	assert.ErrorIs(t, bare, ErrConfigInvalid)
}

func TestNoMatchingHostError(t *testing.T) {
	t.Parallel()

	err := NewNoMatchingHostError("example.com", 8443)

	assert.Equal(t, "no virtual host matches example.com:8443", err.Error())
	assert.ErrorIs(t, err, ErrNoMatchingHost)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConfigInvalid)
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	require.NoError(t, WrapError(nil, "context"))

	base := errors.New("base")
	wrapped := WrapError(base, "context")
	assert.EqualError(t, wrapped, "context: base")
	assert.ErrorIs(t, wrapped, base)
}
