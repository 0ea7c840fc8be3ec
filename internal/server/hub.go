// Package server coordinates client registration, engine dispatch, and
// connection cleanup for the CipherChat WebSocket transport via the Hub
// type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cipherchat/cipherchat/internal/chat"
)

// Hub owns the live WebSocket clients, keyed by their server-issued
// connection id, and relays lifecycle events and inbound frames to the chat
// engine. It maintains client registration/unregistration and ensures
// thread-safe operations through mutex protection.
type Hub struct {
	engine     *chat.Engine
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *zap.Logger
}

// NewHub creates and initializes a Hub together with the chat engine that
// delivers through it. The returned Hub is ready to manage WebSocket
// connections once Run is started in its own goroutine.
func NewHub(log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
	h.engine = chat.NewEngine(h, log.Named("chat"))
	return h
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Send implements chat.Sender. It pushes a payload to the connection's
// outgoing buffer without blocking; false means the connection is gone or
// its buffer is full.
func (h *Hub) Send(connectionID string, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("recovered from panic in Send", zap.Any("panic", r))
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, exists := h.clients[connectionID]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as
// it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()

			h.engine.OnConnect(client.id)
			h.log.Info("client registered",
				zap.String("connectionId", client.id),
				zap.String("addr", client.addr),
				zap.Int("total", clientCount))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

			h.announceSession(client.id)

		case client := <-h.unregister:
			h.mutex.Lock()
			// A reconnect may have reused this connection id; only drop the
			// entry if it still belongs to this client.
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				h.engine.OnDisconnect(client.id)
				h.log.Info("client unregistered",
					zap.String("connectionId", client.id),
					zap.Int("total", clientCount))
			} else {
				client.closed = true
				h.mutex.Unlock()
				// The id belongs to a newer client now (or was never
				// registered); just stop this client's write pump.
				close(client.send)
			}
		}
	}
}

// announceSession tells the client its connection id so it can present the
// id as a reconnect token on the next upgrade.
func (h *Hub) announceSession(connectionID string) {
	payload, err := json.Marshal(chat.SessionPayload{
		Type:         "session",
		ConnectionID: connectionID,
	})
	if err != nil {
		h.log.Error("marshal session payload", zap.Error(err))
		return
	}
	if !h.Send(connectionID, payload) {
		h.log.Warn("failed to announce session", zap.String("connectionId", connectionID))
	}
}

// dispatch forwards one inbound frame to the engine.
func (h *Hub) dispatch(connectionID string, raw []byte) {
	h.engine.HandleMessage(connectionID, raw)
}

// shutdownClients gracefully closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					h.log.Warn("error closing client connection",
						zap.String("addr", client.addr), zap.Error(err))
				}
			}
		}
	}

	h.log.Info("closed client connections", zap.Int("count", len(clients)))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
