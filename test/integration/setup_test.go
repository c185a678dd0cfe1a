// Package integration contains end-to-end tests that exercise the relay
// chat server over real WebSocket connections.
package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/relay-chat/relaychat/internal/server"
	"github.com/relay-chat/relaychat/test/testhelpers"
)

// startTestServer starts an isolated hub and HTTP server on the given port
// and registers cleanup. It returns the hub (for registry inspection) and
// the ws:// URL of the chat endpoint.
func startTestServer(t *testing.T, port int) (*server.Hub, string) {
	t.Helper()

	addr := fmt.Sprintf(":%d", port)
	config := server.NewConfig()
	config.Port = addr
	config.AllowedOrigins = []string{testhelpers.TestOrigin}
	server.SetConfig(config)

	hub := server.NewHub(server.NewRegistry())
	go hub.Run()

	mux := server.SetupRoutesWithHub(hub)
	httpServer := server.CreateServer(addr, mux)

	go func() {
		_ = server.StartServer(httpServer)
	}()

	t.Cleanup(func() {
		_ = server.ShutdownServer(httpServer, 2*time.Second)
		_ = hub.Shutdown(2 * time.Second)
	})

	time.Sleep(100 * time.Millisecond)
	return hub, fmt.Sprintf("ws://localhost:%d/ws", port)
}

// httpURL returns the plain HTTP URL for the given test port.
func httpURL(port int, path string) string {
	return fmt.Sprintf("http://localhost:%d%s", port, path)
}

// waitFor polls the condition until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
