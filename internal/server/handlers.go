// Package server exposes HTTP handlers, including WebSocket upgrades,
// health checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler handles WebSocket upgrade requests and hands the
// connection to the hub. A client may present its previous connection id as
// a reconnect token via the session query parameter; a valid token reuses
// that id so the engine can restore the user binding, otherwise a fresh id
// is issued.
func (h *Hub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, h.log)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connectionID := r.URL.Query().Get("session")
	if _, err := uuid.Parse(connectionID); err != nil {
		connectionID = uuid.NewString()
	}

	client := NewClient(conn, h, connectionID, r.RemoteAddr)

	// Register the client with the hub; the hub will launch the pump goroutines.
	h.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "CipherChat server is running!")
}

// TestPageHandler serves an HTML page for exercising the chat protocol: it
// registers a passcode, sends ciphered messages, and lets the viewer guess
// another user's passcode to unlock a message.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>CipherChat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 640px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        .message { margin: 4px 0; }
        .message .owner { font-weight: bold; margin-right: 6px; }
        .message .lock { cursor: pointer; }
        .attempt { color: darkred; margin-left: 6px; }
        input[type="text"] { padding: 5px; margin-right: 6px; }
        button { padding: 5px 15px; cursor: pointer; }
    </style>
</head>
<body>
    <h1>CipherChat Test</h1>

    <div id="setup">
        <input type="text" id="nameInput" placeholder="Display name">
        <input type="text" id="passcodeInput" placeholder="Numeric passcode">
        <button onclick="join()">Join</button>
    </div>

    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        let session = null;
        const user = {
            id: crypto.randomUUID(),
            name: "",
            color: ["cadetblue", "darkgoldenrod", "cornflowerblue", "hotpink"][Math.floor(Math.random() * 4)],
            passcode: ""
        };

        function shiftChar(c, shift) {
            if (c >= "a" && c <= "z") {
                return String.fromCharCode(97 + ((c.charCodeAt(0) - 97 + shift) % 26));
            } else if (c >= "A" && c <= "Z") {
                return String.fromCharCode(65 + ((c.charCodeAt(0) - 65 + shift) % 26));
            }
            return c;
        }

        function decryptWithRotatingDigits(text, passcode) {
            if (!passcode) return text;
            let out = "";
            for (let i = 0; i < text.length; i++) {
                const digit = parseInt(passcode[i % passcode.length], 10);
                out += shiftChar(text[i], 26 - (digit % 26));
            }
            return out;
        }

        function addMessage(msg) {
            const div = document.createElement("div");
            div.classList.add("message");
            div.dataset.messageId = msg.id;

            const owner = document.createElement("span");
            owner.classList.add("owner");
            owner.style.color = msg.userColor;
            owner.textContent = msg.ownerName;
            div.appendChild(owner);

            const content = document.createElement("span");
            content.classList.add("content");
            if (msg.ownerId === user.id) {
                content.textContent = decryptWithRotatingDigits(msg.encryptedContent, user.passcode);
            } else {
                content.textContent = msg.encryptedContent;
                const lock = document.createElement("span");
                lock.classList.add("lock");
                lock.textContent = " 🔒";
                lock.onclick = () => attemptUnlock(msg.id);
                div.appendChild(lock);
            }
            div.appendChild(content);

            document.getElementById("messages").appendChild(div);
            div.scrollIntoView();
        }

        function attemptUnlock(messageId) {
            const guess = prompt("Guess the owner's passcode:");
            if (guess === null) return;
            ws.send(JSON.stringify({
                type: "attempt_unlock",
                requesterId: user.id,
                messageId: messageId,
                guess: guess
            }));
        }

        function handleUnlockResult(payload) {
            const div = Array.from(document.getElementById("messages").children)
                .find(d => d.dataset.messageId === payload.messageId);
            if (!div) return;
            let span = div.querySelector(".attempt");
            if (!span) {
                span = document.createElement("span");
                span.classList.add("attempt");
                div.appendChild(span);
            }
            if (payload.success) {
                div.querySelector(".content").textContent = payload.decryptedContent;
                span.remove();
            } else {
                span.textContent = " | " + (payload.decryptedContent || payload.error);
            }
        }

        function connect() {
            const url = location.origin.replace(/^http/, "ws") + "/ws" +
                (session ? "?session=" + session : "");
            ws = new WebSocket(url);

            ws.onopen = () => {
                ws.send(JSON.stringify({
                    type: "set_password",
                    userId: user.id,
                    password: user.passcode,
                    userColor: user.color
                }));
                document.getElementById("messageInput").disabled = false;
                document.getElementById("sendButton").disabled = false;
            };

            ws.onmessage = event => {
                const msg = JSON.parse(event.data);
                if (msg.type === "session") session = msg.connectionId;
                if (msg.type === "message") addMessage(msg);
                if (msg.type === "error") alert(msg.message);
                if (msg.type === "internal_delivery" && msg.requesterId === user.id) {
                    const payload = JSON.parse(msg.payload);
                    if (payload.type === "unlock_result") handleUnlockResult(payload);
                }
            };

            ws.onclose = () => setTimeout(connect, 3000);
        }

        function join() {
            user.name = document.getElementById("nameInput").value || "Anon";
            user.passcode = document.getElementById("passcodeInput").value;
            document.getElementById("setup").style.display = "none";
            connect();
        }

        function sendMessage() {
            const input = document.getElementById("messageInput");
            if (!input.value || !ws || ws.readyState !== WebSocket.OPEN) return;
            ws.send(JSON.stringify({
                type: "send_message",
                userId: user.id,
                userName: user.name,
                userColor: user.color,
                content: input.value
            }));
            input.value = "";
        }

        document.getElementById("messageInput").addEventListener("keypress", e => {
            if (e.key === "Enter") sendMessage();
        });
    </script>
</body>
</html>`
