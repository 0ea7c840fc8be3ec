package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBindAndResolve(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.OnConnect("c1")
	registry.Bind("c1", "u1")

	conn, ok := registry.ResolveConnection("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn)

	user, ok := registry.UserFor("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", user)
}

func TestRegistryLastBindWinsBothSides(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.OnConnect("c1")
	registry.OnConnect("c2")

	registry.Bind("c1", "u1")
	registry.Bind("c2", "u1")

	conn, ok := registry.ResolveConnection("u1")
	require.True(t, ok)
	assert.Equal(t, "c2", conn)
	_, ok = registry.UserFor("c1")
	assert.False(t, ok, "old connection binding is evicted")

	// Rebinding the connection to a new user evicts the old user side.
	registry.Bind("c2", "u2")
	_, ok = registry.ResolveConnection("u1")
	assert.False(t, ok)
}

func TestRegistryPersistsBindingAcrossReconnect(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.OnConnect("c1")
	registry.Bind("c1", "u1")

	registry.OnDisconnect("c1")
	_, ok := registry.ResolveConnection("u1")
	assert.False(t, ok, "live binding is dropped on disconnect")

	user, restored := registry.OnConnect("c1")
	require.True(t, restored)
	assert.Equal(t, "u1", user)

	conn, ok := registry.ResolveConnection("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn)
}

func TestRegistryFreshConnectHasNoBinding(t *testing.T) {
	registry := NewConnectionRegistry()
	_, restored := registry.OnConnect("c1")
	assert.False(t, restored)

	boundConnections := registry.BoundConnections()
	assert.Empty(t, boundConnections)
}

func TestRegistryBoundConnectionsExcludesDeadAndUnbound(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.OnConnect("c1")
	registry.OnConnect("c2")
	registry.OnConnect("c3")
	registry.Bind("c1", "u1")
	registry.Bind("c2", "u2")
	registry.OnDisconnect("c2")

	boundConnections := registry.BoundConnections()
	assert.Equal(t, map[string]string{"c1": "u1"}, boundConnections)
}
