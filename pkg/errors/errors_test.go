package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	err := NewVersionNotFound("v9")
	assert.True(t, IsKind(err, KindVersionNotFound))
	assert.False(t, IsKind(err, KindFetch))
	assert.False(t, IsKind(errors.New("plain"), KindVersionNotFound))
}

func TestIsKind_Wrapped(t *testing.T) {
	err := fmt.Errorf("baseline: %w", NewParseError("bad markup", nil))
	assert.True(t, IsKind(err, KindParse))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewFetchError("v1", true, errors.New("timeout"))))
	assert.False(t, IsRetryable(NewFetchError("v1", false, errors.New("403"))))
	assert.False(t, IsRetryable(NewVersionNotFound("v1")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestModelError_Message(t *testing.T) {
	err := NewFetchError("release-2", true, errors.New("connection refused"))
	msg := err.Error()
	assert.Contains(t, msg, "fetch_error")
	assert.Contains(t, msg, "FETCH_FAILED")
	assert.Contains(t, msg, "release-2")
	assert.Contains(t, msg, "connection refused")
}

func TestModelError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewFetchError("v1", true, cause)
	assert.ErrorIs(t, err, cause)
}

func TestDuplicateIDError(t *testing.T) {
	err := NewDuplicateIDError("threat", "t1")
	assert.True(t, IsKind(err, KindInternal))
	assert.Contains(t, err.Error(), `"t1"`)
}
