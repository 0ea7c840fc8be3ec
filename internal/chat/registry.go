package chat

import "sync"

// ConnectionRegistry tracks the live connection set and the binding between
// connections and user ids. A connection is bound to at most one user and a
// user to at most one connection; a new binding silently evicts both sides
// of any previous one. Bindings are persisted by connection id on
// disconnect so a client reconnecting with the same id is rebound without
// re-sending its password.
type ConnectionRegistry struct {
	mu        sync.RWMutex
	live      map[string]struct{}
	userByCon map[string]string
	conByUser map[string]string
	persisted map[string]string
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		live:      make(map[string]struct{}),
		userByCon: make(map[string]string),
		conByUser: make(map[string]string),
		persisted: make(map[string]string),
	}
}

// OnConnect registers the connection as live. If a persisted binding exists
// for this exact connection id, the user binding is restored immediately.
// The restored user id is returned so the caller can log it; no backlog is
// pushed on a raw connect.
func (r *ConnectionRegistry) OnConnect(connectionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.live[connectionID] = struct{}{}
	if userID, ok := r.persisted[connectionID]; ok {
		r.bindLocked(connectionID, userID)
		return userID, true
	}
	return "", false
}

// OnDisconnect removes the connection from the live set. A live binding is
// converted into a persisted record keyed by connection id and dropped from
// the live maps.
func (r *ConnectionRegistry) OnDisconnect(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.live, connectionID)
	if userID, ok := r.userByCon[connectionID]; ok {
		r.persisted[connectionID] = userID
		delete(r.userByCon, connectionID)
		if r.conByUser[userID] == connectionID {
			delete(r.conByUser, userID)
		}
	}
}

// Bind associates the connection with the user id, overwriting and evicting
// any existing binding on either side, and persists the association.
func (r *ConnectionRegistry) Bind(connectionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindLocked(connectionID, userID)
}

func (r *ConnectionRegistry) bindLocked(connectionID, userID string) {
	if prevCon, ok := r.conByUser[userID]; ok && prevCon != connectionID {
		delete(r.userByCon, prevCon)
	}
	if prevUser, ok := r.userByCon[connectionID]; ok && prevUser != userID {
		delete(r.conByUser, prevUser)
	}
	r.userByCon[connectionID] = userID
	r.conByUser[userID] = connectionID
	r.persisted[connectionID] = userID
}

// ResolveConnection returns the connection currently bound to the user id,
// used for private delivery.
func (r *ConnectionRegistry) ResolveConnection(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connectionID, ok := r.conByUser[userID]
	return connectionID, ok
}

// UserFor returns the user id bound to a connection, if any.
func (r *ConnectionRegistry) UserFor(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.userByCon[connectionID]
	return userID, ok
}

// BoundConnections returns a snapshot of every live connection that has a
// user id bound, as connection id → user id pairs. Connections with no
// binding are excluded and never receive broadcasts.
func (r *ConnectionRegistry) BoundConnections() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.userByCon))
	for connectionID, userID := range r.userByCon {
		if _, ok := r.live[connectionID]; ok {
			out[connectionID] = userID
		}
	}
	return out
}
