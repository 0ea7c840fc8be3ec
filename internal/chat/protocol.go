package chat

// Inbound message types dispatched by the engine. Unknown or missing types
// are ignored.
const (
	typeSetPassword   = "set_password"
	typeSendMessage   = "send_message"
	typeAttemptUnlock = "attempt_unlock"
	typePing          = "ping"
)

// inboundEnvelope is the union of all inbound payload fields; the Type
// discriminator selects which subset is meaningful. Password and UserColor
// are pointers so that an absent field can be told apart from an empty one.
type inboundEnvelope struct {
	Type          string  `json:"type"`
	UserID        string  `json:"userId"`
	UserName      string  `json:"userName"`
	UserColor     *string `json:"userColor"`
	Password      *string `json:"password"`
	Content       string  `json:"content"`
	LastMessageID string  `json:"lastMessageId"`
	RequesterID   string  `json:"requesterId"`
	MessageID     string  `json:"messageId"`
	Guess         string  `json:"guess"`
}

// MessagePayload is the outbound frame for one log entry, broadcast to
// bound connections and replayed as backlog.
type MessagePayload struct {
	Type             string `json:"type"`
	ID               string `json:"id"`
	OwnerID          string `json:"ownerId"`
	OwnerName        string `json:"ownerName"`
	EncryptedContent string `json:"encryptedContent"`
	Timestamp        int64  `json:"timestamp"`
	UserColor        string `json:"userColor"`
}

// ErrorPayload reports a per-request failure to the sender only.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// UnlockResult is the outcome of an attempt_unlock request. On success it
// carries the fully decrypted content and the owner's display name; on a
// wrong guess it carries the garbled decryption produced by the guess.
type UnlockResult struct {
	Type             string `json:"type"`
	MessageID        string `json:"messageId"`
	Success          bool   `json:"success"`
	DecryptedContent string `json:"decryptedContent,omitempty"`
	OwnerName        string `json:"ownerName,omitempty"`
	Error            string `json:"error,omitempty"`
}

// InternalDelivery wraps a privately delivered payload, addressed to the
// connection currently bound to RequesterID. Payload holds the serialized
// inner JSON text.
type InternalDelivery struct {
	Type        string `json:"type"`
	RequesterID string `json:"requesterId"`
	Payload     string `json:"payload"`
}

// SessionPayload announces the server-issued connection id right after a
// connect, so the client can present it as a reconnect token.
type SessionPayload struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}
