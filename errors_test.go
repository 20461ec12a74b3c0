package ledgergate_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lg "github.com/ineyio/ledgergate"
)

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		code uint32
	}{
		{lg.ErrInvalidInstruction, 0},
		{lg.ErrInvalidAccount, 1},
		{lg.ErrUnauthorized, 2},
		{lg.ErrRateLimited, 3},
		{lg.ErrQuotaExceeded, 4},
		{lg.ErrInsufficientBalance, 5},
		{lg.ErrAPIKeyMismatch, 6},
		{lg.ErrAlreadyInitialized, 7},
	}

	for _, tc := range cases {
		code, ok := lg.ErrorCode(tc.err)
		require.True(t, ok, "%v", tc.err)
		assert.Equal(t, tc.code, code)
	}

	_, ok := lg.ErrorCode(errors.New("something else"))
	assert.False(t, ok)
	_, ok = lg.ErrorCode(nil)
	assert.False(t, ok)
}

func TestErrorCodeSeesThroughWrapping(t *testing.T) {
	wrapped := &lg.TransitionError{Op: "consume", Err: lg.ErrRateLimited}

	code, ok := lg.ErrorCode(wrapped)
	require.True(t, ok)
	assert.Equal(t, uint32(3), code)

	code, ok = lg.ErrorCode(fmt.Errorf("outer: %w", wrapped))
	require.True(t, ok)
	assert.Equal(t, uint32(3), code)
}

func TestTransitionErrorUnwrap(t *testing.T) {
	err := &lg.TransitionError{Op: "top_up", Err: lg.ErrUnauthorized}

	assert.ErrorIs(t, err, lg.ErrUnauthorized)
	assert.Contains(t, err.Error(), "top_up")
}
