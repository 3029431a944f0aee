package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

type fakeConn struct {
	sent [][]byte
}

func (f *fakeConn) Send(payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}

func TestRegistry_Add_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &fakeConn{}

	// Given no session exists
	_, found := registry.Lookup(domain.UserID(7))
	req.False(found)
	req.Zero(registry.Len())

	// When a user session is added
	replaced := registry.Add(domain.UserID(7), conn)

	// Then the session is found and nothing was replaced
	req.False(replaced)
	got, found := registry.Lookup(domain.UserID(7))
	req.True(found)
	req.Same(conn, got)
	req.Equal(1, registry.Len())
}

func TestRegistry_Add_Reports_Replacement(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}

	registry.Add(domain.UserID(1), first)

	// Adding again for the same user replaces and reports the prior session
	replaced := registry.Add(domain.UserID(1), second)
	req.True(replaced)

	got, found := registry.Lookup(domain.UserID(1))
	req.True(found)
	req.Same(second, got)

	// The old connection no longer resolves to the user
	_, found = registry.RemoveByConnection(first)
	req.False(found)
}

func TestRegistry_Remove(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Add(domain.UserID(3), &fakeConn{})

	registry.Remove(domain.UserID(3))

	_, found := registry.Lookup(domain.UserID(3))
	req.False(found)
	req.Zero(registry.Len())

	// Removing an absent user is a no-op
	registry.Remove(domain.UserID(3))
}

func TestRegistry_RemoveByConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &fakeConn{}
	other := &fakeConn{}
	registry.Add(domain.UserID(42), conn)

	// An unknown connection resolves to nothing
	_, found := registry.RemoveByConnection(other)
	req.False(found)

	// The known connection resolves to its user and clears the session
	id, found := registry.RemoveByConnection(conn)
	req.True(found)
	req.Equal(domain.UserID(42), id)

	_, found = registry.Lookup(domain.UserID(42))
	req.False(found)
}
