// Package server exposes HTTP handlers, including WebSocket upgrades and
// health checks.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler upgrades the connection and hands the new client to the
// default hub. Each connection is assigned an opaque unique id at upgrade
// time; the hub creates the session and sends the initial prompt.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	NewWebSocketHandler(hub)(w, r)
}

// NewWebSocketHandler returns an upgrade handler bound to a specific hub.
// Tests use this to run isolated hub instances side by side.
func NewWebSocketHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, h, uuid.New().String(), r.RemoteAddr)

		// Register the client with the hub; the hub launches the pump
		// goroutines and creates the session.
		h.register <- client
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay chat server is running!")
}
