// Package server implements the HTTP and WebSocket transport shell for
// CipherChat.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers. All chat semantics
// live in the chat package; this package only moves frames between
// connections and the engine.
package server
