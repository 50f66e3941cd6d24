package syncerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := Newf(HashMismatch, "download", "/tmp/a.tgz", "%s != %s", "aa", "bb")
	assert.Equal(t, "download /tmp/a.tgz: aa != bb", err.Error())

	bare := New(UnknownPackage, "resolve", "", nil)
	assert.Equal(t, "resolve", bare.Error())
}

func TestKindMatching(t *testing.T) {
	inner := New(NotFound, "get", "archives/a/1", errors.New("404"))
	outer := New(TransferFailure, "download", "http://x/a", inner)
	wrapped := fmt.Errorf("sync failed: %w", outer)

	assert.True(t, Is(wrapped, TransferFailure))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(wrapped, HashMismatch))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, TransferFailure, KindOf(wrapped))

	assert.True(t, errors.Is(wrapped, ErrTransferFailure))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrMalformedDescriptor))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, IOError))
}
