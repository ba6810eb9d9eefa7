package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIsDeterministicPerSalt(t *testing.T) {
	a := New("salt-a")

	assert.Equal(t, a.Hash("student-42"), a.Hash("student-42"))
	assert.NotEqual(t, a.Hash("student-42"), a.Hash("student-43"))

	// A different salt produces unrelated digests for the same identifier.
	b := New("salt-b")
	assert.NotEqual(t, a.Hash("student-42"), b.Hash("student-42"))
}

func TestEmptySaltFallsBackToDefault(t *testing.T) {
	assert.Equal(t, New("").Hash("x"), New(DefaultSalt).Hash("x"))
	assert.Equal(t, New("   ").Hash("x"), New(DefaultSalt).Hash("x"))
}

func TestHashOutputLooksLikeAHash(t *testing.T) {
	digest := New("salt").Hash("student-42")

	assert.Len(t, digest, 64)
	assert.True(t, IsHash(digest))
}

func TestIsHashRejectsNonDigests(t *testing.T) {
	assert.False(t, IsHash("student-42"))
	assert.False(t, IsHash(""))

	// Right length, wrong alphabet.
	assert.False(t, IsHash("ZZ15f6b1b85b1fca4ef1ec1664bb8c0ce31dcd1b5b41b2c2a06421cbbdfa0a15"))
}
