package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGuest(t *testing.T) {
	g := NewGuest()

	assert.True(t, g.IsGuest())
	assert.NotEmpty(t, g.ID)
	assert.True(t, strings.HasPrefix(g.DisplayName, "Artist_"))
	assert.NotEqual(t, g.ID, NewGuest().ID)
}

func TestSame(t *testing.T) {
	guest := GuestWithID("abc")
	user := NewRegistered("abc", "Ada")

	assert.True(t, guest.Same(GuestWithID("abc")))
	assert.False(t, guest.Same(user), "kind must match")
	assert.False(t, Identity{}.Same(Identity{}), "zero identities never match")
}
