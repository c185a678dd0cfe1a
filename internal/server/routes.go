// Package server wires HTTP handlers into a ServeMux for the relay chat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check and the WebSocket endpoint, both against the default
// hub.
func SetupRoutes() *http.ServeMux {
	return SetupRoutesWithHub(hub)
}

// SetupRoutesWithHub builds the mux against a specific hub instance.
func SetupRoutesWithHub(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.Handle("/ws", NewWebSocketHandler(h))
	return mux
}
