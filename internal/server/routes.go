// Package server wires HTTP handlers into a chi router for the CipherChat
// application.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter constructs the HTTP handler serving the CipherChat endpoints.
//
// Routes:
//
//	GET /      → HealthHandler
//	GET /ws    → hub.WebSocketHandler (WebSocket upgrade)
//	GET /test  → TestPageHandler
func NewRouter(hub *Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Log each request and its metadata
	r.Use(withRequestLogging(log))

	r.Get("/", HealthHandler)
	r.Get("/ws", hub.WebSocketHandler)
	r.Get("/test", TestPageHandler)

	return r
}

// withRequestLogging logs method, path, and duration for every request.
// The WebSocket endpoint only logs once, at upgrade time.
func withRequestLogging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
