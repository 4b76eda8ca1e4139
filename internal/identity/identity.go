package identity

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Kind tags which variant an Identity holds
type Kind string

const (
	Guest      Kind = "guest"
	Registered Kind = "registered"
)

// Identity: who is acting. Guests carry a throwaway id and a display name,
// registered users carry a stable user id.
type Identity struct {
	Kind        Kind   `json:"kind" toml:"kind"`
	ID          string `json:"id" toml:"id"`
	DisplayName string `json:"name" toml:"name"`
}

// NewGuest: mints a guest with a random opaque id and a random display name
func NewGuest() Identity {
	return Identity{
		Kind:        Guest,
		ID:          uuid.NewString(),
		DisplayName: RandomDisplayName(),
	}
}

// GuestWithID: rebuilds a guest identity from an id the caller already holds (cookie)
func GuestWithID(id string) Identity {
	return Identity{
		Kind:        Guest,
		ID:          id,
		DisplayName: RandomDisplayName(),
	}
}

// NewRegistered: identity for a known user
func NewRegistered(userID, name string) Identity {
	return Identity{
		Kind:        Registered,
		ID:          userID,
		DisplayName: name,
	}
}

// RandomDisplayName: Artist_0000 .. Artist_9999
func RandomDisplayName() string {
	return fmt.Sprintf("Artist_%d", rand.IntN(10000))
}

func (i Identity) IsGuest() bool {
	return i.Kind == Guest
}

func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Same reports whether two identities refer to the same actor.
// Kind participates so a guest id can never collide with a user id.
func (i Identity) Same(other Identity) bool {
	return !i.IsZero() && i.Kind == other.Kind && i.ID == other.ID
}

func (i Identity) String() string {
	return string(i.Kind) + ":" + i.ID
}
