package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cipherchat/cipherchat/internal/chat"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"*"}, MaxMessageSize: 4096})

	hub := NewHub(zap.NewNop())
	go hub.Run()

	ts := httptest.NewServer(NewRouter(hub, zap.NewNop()))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})
	return ts, hub
}

func dial(t *testing.T, ts *httptest.Server, session string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if session != "" {
		url += "?session=" + session
	}

	header := http.Header{"Origin": []string{"http://localhost:8080"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

// readFrameOfType skips frames until one with the wanted type arrives.
func readFrameOfType(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		frame := readFrame(t, conn)
		if frame["type"] == typ {
			return frame
		}
	}
	t.Fatalf("no %q frame received", typ)
	return nil
}

func sendJSON(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestWebSocketChatExchange(t *testing.T) {
	ts, _ := newTestServer(t)

	alice := dial(t, ts, "")
	session := readFrameOfType(t, alice, "session")
	assert.NotEmpty(t, session["connectionId"])

	sendJSON(t, alice, `{"type":"set_password","userId":"u1","password":"12345","userColor":"red"}`)
	sendJSON(t, alice, `{"type":"send_message","userId":"u1","userName":"alice","userColor":"red","content":"Hello"}`)

	msg := readFrameOfType(t, alice, "message")
	assert.Equal(t, "u1", msg["ownerId"])
	assert.Equal(t, "alice", msg["ownerName"])
	assert.Equal(t, "red", msg["userColor"])
	assert.NotEqual(t, "Hello", msg["encryptedContent"])

	// A second client binds, replays the backlog, and unlocks the message.
	bob := dial(t, ts, "")
	readFrameOfType(t, bob, "session")
	sendJSON(t, bob, `{"type":"set_password","userId":"u2","password":"0","userColor":"gold"}`)

	backlog := readFrameOfType(t, bob, "message")
	assert.Equal(t, msg["id"], backlog["id"])
	assert.Equal(t, msg["encryptedContent"], backlog["encryptedContent"])

	sendJSON(t, bob, fmt.Sprintf(
		`{"type":"attempt_unlock","requesterId":"u2","messageId":%q,"guess":"12345"}`, msg["id"]))

	delivery := readFrameOfType(t, bob, "internal_delivery")
	assert.Equal(t, "u2", delivery["requesterId"])

	var result chat.UnlockResult
	require.NoError(t, json.Unmarshal([]byte(delivery["payload"].(string)), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "Hello", result.DecryptedContent)
	assert.Equal(t, "alice", result.OwnerName)
}

func TestWebSocketSendWithoutPassword(t *testing.T) {
	ts, _ := newTestServer(t)

	conn := dial(t, ts, "")
	readFrameOfType(t, conn, "session")

	sendJSON(t, conn, `{"type":"send_message","userId":"u9","userName":"eve","userColor":"red","content":"hi"}`)

	frame := readFrameOfType(t, conn, "error")
	assert.Equal(t, "Password not set for user", frame["message"])
}

func TestWebSocketReconnectRestoresBinding(t *testing.T) {
	ts, _ := newTestServer(t)

	alice := dial(t, ts, "")
	readFrameOfType(t, alice, "session")
	sendJSON(t, alice, `{"type":"set_password","userId":"u1","password":"12345","userColor":"red"}`)

	bob := dial(t, ts, "")
	bobSession := readFrameOfType(t, bob, "session")["connectionId"].(string)
	sendJSON(t, bob, `{"type":"set_password","userId":"u2","password":"7","userColor":"gold"}`)

	// Drop bob and let the hub process the disconnect.
	require.NoError(t, bob.Close())
	time.Sleep(200 * time.Millisecond)

	// Reconnect presenting the previous connection id; the binding is
	// restored without a new set_password.
	bob2 := dial(t, ts, bobSession)
	reissued := readFrameOfType(t, bob2, "session")
	assert.Equal(t, bobSession, reissued["connectionId"])

	sendJSON(t, alice, `{"type":"send_message","userId":"u1","userName":"alice","userColor":"red","content":"welcome back"}`)

	msg := readFrameOfType(t, bob2, "message")
	assert.Equal(t, "u1", msg["ownerId"])
}

func TestWebSocketRejectsNonGet(t *testing.T) {
	ts, _ := newTestServer(t)

	// chi routes only GET /ws, so a POST never reaches the upgrade handler.
	resp, err := http.Post(ts.URL+"/ws", "application/json", http.NoBody)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpgradeBlockedForDisallowedOrigin(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"http://chat.example.com"}})

	hub := NewHub(zap.NewNop())
	go hub.Run()
	ts := httptest.NewServer(NewRouter(hub, zap.NewNop()))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		_ = conn.Close()
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
