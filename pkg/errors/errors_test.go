package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrManifestInvalid, "manifest is broken")
	assert.Equal(t, ErrManifestInvalid, err.Code)
	assert.Equal(t, "manifest is broken", err.Message)
	assert.Equal(t, "[MANIFEST_INVALID] manifest is broken", err.Error())
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("disk full")
	err := Wrap(inner, ErrFileCopy, "failed to copy addon")
	assert.Equal(t, ErrFileCopy, err.Code)
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "disk full")

	assert.Nil(t, Wrap(nil, ErrFileCopy, "nothing"))
}

func TestIsErrorCode(t *testing.T) {
	err := Newf(ErrResolutionAmbiguous, "matches for %q too close", "WeakAuras")
	assert.True(t, IsErrorCode(err, ErrResolutionAmbiguous))
	assert.False(t, IsErrorCode(err, ErrNotFound))

	// survives wrapping by callers
	wrapped := fmt.Errorf("resolve: %w", err)
	assert.True(t, IsErrorCode(wrapped, ErrResolutionAmbiguous))

	assert.False(t, IsErrorCode(fmt.Errorf("plain"), ErrResolutionAmbiguous))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrLockHeld, GetErrorCode(New(ErrLockHeld, "sync already in progress")))
	assert.Equal(t, ErrUnknown, GetErrorCode(fmt.Errorf("plain")))
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := New(ErrCacheMissing, "no cached copy of DBM")
	b := New(ErrCacheMissing, "different message")
	assert.True(t, errors.Is(a, b))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrFetchFailed, "download failed").
		WithDetail("addon", "DBM").
		WithDetail("attempts", 3)
	assert.Equal(t, "DBM", err.Details["addon"])
	assert.Equal(t, 3, err.Details["attempts"])
}
