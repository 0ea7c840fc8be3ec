package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cipherchat/cipherchat/internal/cipher"
)

// Sender pushes a serialized payload to a single connection. It must be
// best-effort and non-blocking: a false return means the connection is gone
// or its buffer is full, and the engine skips it.
type Sender interface {
	Send(connectionID string, payload []byte) bool
}

// ErrPasswordNotSet is returned to a sender that tries to post a message
// before registering a secret.
var ErrPasswordNotSet = errors.New("Password not set for user")

// Engine is the chat coordination core. It owns all mutable chat state and
// is safe for use from concurrent connection handlers. Appending a message
// and fanning it out to recipient cursors happens under one mutex, so no
// two appends interleave and every bound connection sees the log suffix
// [cursor, len) exactly once, in order.
type Engine struct {
	store    *MessageStore
	creds    *CredentialStore
	registry *ConnectionRegistry

	// mu serializes log appends, cursor reads/advances, and the fan-out
	// between them.
	mu      sync.Mutex
	cursors *cursorTable

	sender Sender
	log    *zap.Logger

	// now is swappable for tests.
	now func() int64
}

// NewEngine constructs an engine delivering through the given sender.
func NewEngine(sender Sender, log *zap.Logger) *Engine {
	return &Engine{
		store:    NewMessageStore(),
		creds:    NewCredentialStore(),
		registry: NewConnectionRegistry(),
		cursors:  newCursorTable(),
		sender:   sender,
		log:      log,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// OnConnect registers a live connection. A persisted binding for the same
// connection id is restored immediately; no backlog is pushed here, only
// set_password replays history.
func (e *Engine) OnConnect(connectionID string) {
	if userID, restored := e.registry.OnConnect(connectionID); restored {
		e.log.Info("restored binding on reconnect",
			zap.String("connectionId", connectionID),
			zap.String("userId", userID))
		return
	}
	e.log.Info("client connected", zap.String("connectionId", connectionID))
}

// OnDisconnect drops the connection from the live set, persisting its
// binding for a later reconnect.
func (e *Engine) OnDisconnect(connectionID string) {
	e.registry.OnDisconnect(connectionID)
	e.log.Info("client disconnected", zap.String("connectionId", connectionID))
}

// HandleMessage dispatches one inbound frame from a connection. Malformed
// payloads and unknown types are dropped after logging; nothing here can
// fail the connection or the process.
func (e *Engine) HandleMessage(connectionID string, raw []byte) {
	var msg inboundEnvelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		e.log.Warn("dropping malformed payload",
			zap.String("connectionId", connectionID),
			zap.Error(err))
		return
	}

	switch msg.Type {
	case typeSetPassword:
		e.handleSetPassword(connectionID, msg)
	case typeSendMessage:
		e.handleSendMessage(connectionID, msg)
	case typeAttemptUnlock:
		e.handleAttemptUnlock(msg)
	case typePing:
		// Heartbeat tolerated from older clients, never dispatched.
	default:
		// Unknown or missing type: silently ignored.
	}
}

// handleSetPassword binds the connection to the user, records credentials,
// and replays the user's backlog over the same connection. The cursor is
// advanced to the current log length before the backlog is transmitted;
// both happen under the log mutex so no concurrent append can slip between
// them.
func (e *Engine) handleSetPassword(connectionID string, msg inboundEnvelope) {
	if msg.UserID == "" {
		e.log.Warn("set_password without userId", zap.String("connectionId", connectionID))
		return
	}

	e.registry.Bind(connectionID, msg.UserID)
	if msg.UserColor != nil {
		e.creds.SetColor(msg.UserID, *msg.UserColor)
	}
	if msg.Password != nil {
		e.creds.SetSecret(msg.UserID, *msg.Password)
	}

	e.mu.Lock()
	start := e.cursors.get(msg.UserID)
	if msg.LastMessageID != "" {
		start = e.store.IndexAfter(msg.LastMessageID)
	}
	backlog := e.store.Slice(start)
	e.cursors.advance(msg.UserID, e.store.Len())
	e.mu.Unlock()

	e.log.Info("password set",
		zap.String("connectionId", connectionID),
		zap.String("userId", msg.UserID),
		zap.Int("backlog", len(backlog)))

	for _, entry := range backlog {
		e.sendTo(connectionID, e.messagePayload(entry))
	}
}

// handleSendMessage encrypts the content with the owner's secret, appends
// it to the log, and fans the new suffix out to every bound connection. The
// sender receives its own message through the same fan-out.
func (e *Engine) handleSendMessage(connectionID string, msg inboundEnvelope) {
	secret, ok := e.creds.Secret(msg.UserID)
	if !ok {
		e.sendTo(connectionID, ErrorPayload{Type: "error", Message: ErrPasswordNotSet.Error()})
		return
	}

	if msg.UserColor != nil {
		e.creds.SetColor(msg.UserID, *msg.UserColor)
	}

	e.log.Info("chat message",
		zap.String("userId", msg.UserID),
		zap.String("userName", msg.UserName))

	e.mu.Lock()
	_, length := e.store.Append(msg.UserID, msg.UserName, cipher.Encrypt(msg.Content, secret), e.now())
	e.broadcastLocked(length)
	e.mu.Unlock()
}

// handleAttemptUnlock decrypts the target message with the guess and
// reports the result privately to the requester. A correct guess yields the
// plaintext; a wrong one yields the garbled decryption the guess produces.
func (e *Engine) handleAttemptUnlock(msg inboundEnvelope) {
	result := UnlockResult{Type: "unlock_result", MessageID: msg.MessageID}

	target, found := e.store.LookupByID(msg.MessageID)
	switch {
	case !found:
		result.Error = "message not found"
	default:
		secret, ok := e.creds.Secret(target.OwnerID)
		switch {
		case !ok:
			result.Error = "owner password not set"
		case msg.Guess == secret:
			result.Success = true
			result.DecryptedContent = cipher.Decrypt(target.CipherText, secret)
			result.OwnerName = target.OwnerName
		default:
			result.Error = "wrong password"
			result.DecryptedContent = cipher.Decrypt(target.CipherText, msg.Guess)
		}
	}

	e.deliverPrivate(msg.RequesterID, result)
}

// BroadcastNewMessages pushes the unseen log suffix to every bound live
// connection and advances each recipient's cursor. Catch-up is a side
// effect of every broadcast, not only of set_password.
func (e *Engine) BroadcastNewMessages() {
	e.mu.Lock()
	e.broadcastLocked(e.store.Len())
	e.mu.Unlock()
}

func (e *Engine) broadcastLocked(length int) {
	for connectionID, userID := range e.registry.BoundConnections() {
		from := e.cursors.get(userID)
		for _, entry := range e.store.Slice(from) {
			e.sendTo(connectionID, e.messagePayload(entry))
		}
		e.cursors.advance(userID, length)
	}
}

// deliverPrivate wraps the payload in an internal_delivery envelope and
// sends it to the connection currently bound to the user. Unresolved users
// and unwritable connections drop the reply silently.
func (e *Engine) deliverPrivate(userID string, payload any) {
	connectionID, ok := e.registry.ResolveConnection(userID)
	if !ok {
		e.log.Debug("private delivery dropped, no bound connection",
			zap.String("userId", userID))
		return
	}

	inner, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("marshal private payload", zap.Error(err))
		return
	}

	e.sendTo(connectionID, InternalDelivery{
		Type:        "internal_delivery",
		RequesterID: userID,
		Payload:     string(inner),
	})
}

func (e *Engine) messagePayload(entry Message) MessagePayload {
	return MessagePayload{
		Type:             "message",
		ID:               entry.ID,
		OwnerID:          entry.OwnerID,
		OwnerName:        entry.OwnerName,
		EncryptedContent: entry.CipherText,
		Timestamp:        entry.Timestamp,
		UserColor:        e.creds.Color(entry.OwnerID),
	}
}

// sendTo marshals and pushes one payload. Delivery failures are logged and
// swallowed; they never abort the surrounding loop.
func (e *Engine) sendTo(connectionID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("marshal outbound payload", zap.Error(err))
		return
	}
	if !e.sender.Send(connectionID, data) {
		e.log.Warn("dropped outbound payload",
			zap.String("connectionId", connectionID))
	}
}
