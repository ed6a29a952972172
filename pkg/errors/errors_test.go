package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("sync: %w", WrapAs(ErrMalformedResponse, cause, "missing rowsWritten"))

	assert.True(t, errors.Is(wrapped, ErrMalformedResponse))
	assert.False(t, errors.Is(wrapped, ErrRemoteRejected))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestCloneKeepsCode(t *testing.T) {
	clone := Clone(ErrRemoteRejected, "Sheet is locked")
	assert.Equal(t, "Sheet is locked", clone.Error())
	assert.True(t, errors.Is(clone, ErrRemoteRejected))
	assert.Equal(t, "sheet api rejected the request", ErrRemoteRejected.Message)
}

func TestTypedDoesNotRepeatMessage(t *testing.T) {
	cause := errors.New("Canvas API request failed: 500 Internal Server Error")
	err := Typed(ErrUpstreamRequest, cause)

	assert.Equal(t, "Canvas API request failed: 500 Internal Server Error", err.Error())
	assert.True(t, errors.Is(err, ErrUpstreamRequest))
	assert.True(t, errors.Is(err, cause))

	wrapped := WrapAs(ErrSheetUnavailable, cause, "sheet api action 'sync' failed")
	assert.Equal(t, "sheet api action 'sync' failed: Canvas API request failed: 500 Internal Server Error", wrapped.Error())
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	plain := FromError(errors.New("disk full"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)

	typed := FromError(fmt.Errorf("outer: %w", ErrSyncInProgress))
	assert.Equal(t, http.StatusConflict, typed.Status)
}
