package chat

import "sync"

// DefaultColor is used for owners that never picked a display color.
const DefaultColor = "black"

// CredentialStore maps user ids to their shared display secret and display
// color. Both are overwrite-on-write; no shape validation is applied to the
// secret, any string including the empty string is accepted. Lookups are
// atomic per key; no cross-key consistency is required.
type CredentialStore struct {
	mu      sync.RWMutex
	secrets map[string]string
	colors  map[string]string
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		secrets: make(map[string]string),
		colors:  make(map[string]string),
	}
}

// SetSecret records the secret for a user, replacing any previous value.
func (c *CredentialStore) SetSecret(userID, secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[userID] = secret
}

// Secret returns the user's secret and whether one has been set.
func (c *CredentialStore) Secret(userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	secret, ok := c.secrets[userID]
	return secret, ok
}

// SetColor records the display color for a user, replacing any previous
// value.
func (c *CredentialStore) SetColor(userID, color string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colors[userID] = color
}

// Color returns the user's display color, or DefaultColor if none is set.
func (c *CredentialStore) Color(userID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if color, ok := c.colors[userID]; ok {
		return color
	}
	return DefaultColor
}
