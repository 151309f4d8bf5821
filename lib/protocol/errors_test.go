package protocol

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

func TestCodeRoundTrip(t *testing.T) {
	sentinels := []error{
		ErrValidation,
		ErrDuplicateNode,
		ErrDuplicateUser,
		ErrCrypto,
		ErrInsufficientNodes,
		ErrDirectoryUnreachable,
		ErrUnknownDestination,
		ErrNextHopUnreachable,
		ErrRateLimited,
	}

	seen := make(map[int]bool)
	for _, sentinel := range sentinels {
		code, ok := Code(sentinel)
		assert.True(t, ok, "no code for %v", sentinel)
		assert.False(t, seen[code], "code %d used twice", code)
		seen[code] = true
		assert.Equal(t, sentinel, FromCode(code))
	}
}

func TestCodeMatchesWrappedErrors(t *testing.T) {
	err := oops.Wrapf(ErrCrypto, "peel failed at node %d", 4)

	code, ok := Code(err)
	assert.True(t, ok)
	assert.Equal(t, CodeCrypto, code)
	assert.True(t, errors.Is(err, ErrCrypto))
}

func TestCodeUnknownError(t *testing.T) {
	_, ok := Code(errors.New("something else"))
	assert.False(t, ok)
	assert.Nil(t, FromCode(-1))
}

func TestCategories(t *testing.T) {
	assert.True(t, IsDirectoryError(ErrInsufficientNodes))
	assert.True(t, IsDirectoryError(oops.Wrapf(ErrDirectoryUnreachable, "dial")))
	assert.False(t, IsDirectoryError(ErrCrypto))

	assert.True(t, IsValidationError(ErrDuplicateNode))
	assert.True(t, IsValidationError(ErrValidation))
	assert.False(t, IsValidationError(ErrNextHopUnreachable))
}
