// Package testhelpers provides common utilities and helper functions for
// testing the relay chat server.
//
// It contains reusable helpers shared across unit and integration tests:
// creating test servers, making HTTP requests, dialing WebSocket
// connections, and exchanging event envelopes with the server.
package testhelpers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relay-chat/relaychat/internal/server"
)

// TestOrigin is the Origin header value used by test connections. Test
// configurations must include it in their allowed origins.
const TestOrigin = "http://localhost:8080"

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot
// be created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL using
// the standard test origin. It returns the connection or an error.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// ConnectWebSocketWithOrigin dials with an explicit Origin header, used by
// the origin-enforcement tests.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent sends one event envelope over the WebSocket connection.
func SendEvent(conn *websocket.Conn, event, data string) error {
	return conn.WriteJSON(server.Envelope{Event: event, Data: data})
}

// ReadEvent reads one event envelope, failing the read after two seconds.
func ReadEvent(conn *websocket.Conn) (server.Envelope, error) {
	var env server.Envelope
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return env, err
	}
	err := conn.ReadJSON(&env)
	return env, err
}

// ExpectEvent reads one envelope and asserts its event name, returning the
// payload text.
func ExpectEvent(t *testing.T, conn *websocket.Conn, wantEvent string) string {
	t.Helper()

	env, err := ReadEvent(conn)
	if err != nil {
		t.Fatalf("Failed to read event (wanted %q): %v", wantEvent, err)
	}
	if env.Event != wantEvent {
		t.Fatalf("Expected %q event, got %q with data %q", wantEvent, env.Event, env.Data)
	}
	return env.Data
}

// ExtractRoomID pulls the room id out of a room-creation confirmation
// message of the form "... invite others: <id> (no passkey).".
func ExtractRoomID(t *testing.T, confirmation string) string {
	t.Helper()

	_, after, found := strings.Cut(confirmation, ": ")
	if !found {
		t.Fatalf("Room confirmation has unexpected shape: %q", confirmation)
	}
	id, _, found := strings.Cut(after, " (")
	if !found {
		t.Fatalf("Room confirmation has unexpected shape: %q", confirmation)
	}
	return id
}

// Connect dials the server and consumes the initial choice prompt.
func Connect(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, err := ConnectWebSocket(url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	ExpectEvent(t, conn, "prompt")
	return conn
}

// HostRoom drives the full hosting flow on an already-connected client: a
// private room when passkey is non-empty, an open room otherwise. It
// consumes every prompt as well as the post-join notices and returns the
// new room id.
func HostRoom(t *testing.T, conn *websocket.Conn, passkey, username string) string {
	t.Helper()

	mustSend(t, conn, "response", "1")
	ExpectEvent(t, conn, "prompt") // open or private

	var confirmation string
	if passkey == "" {
		mustSend(t, conn, "response", "1")
	} else {
		mustSend(t, conn, "response", "2")
		ExpectEvent(t, conn, "prompt") // set passkey
		mustSend(t, conn, "response", passkey)
	}
	confirmation = ExpectEvent(t, conn, "message")
	ExpectEvent(t, conn, "prompt") // username

	roomID := ExtractRoomID(t, confirmation)
	claimUsername(t, conn, username)
	return roomID
}

// JoinRoom drives the full connect flow on an already-connected client,
// supplying the passkey only when one is expected.
func JoinRoom(t *testing.T, conn *websocket.Conn, roomID, passkey, username string) {
	t.Helper()

	mustSend(t, conn, "response", "2")
	ExpectEvent(t, conn, "prompt") // room id
	mustSend(t, conn, "response", roomID)
	if passkey != "" {
		ExpectEvent(t, conn, "prompt") // passkey
		mustSend(t, conn, "response", passkey)
	}
	ExpectEvent(t, conn, "prompt") // username
	claimUsername(t, conn, username)
}

// claimUsername submits the username and consumes the join notice and the
// private welcome, which the joining member receives in that order.
func claimUsername(t *testing.T, conn *websocket.Conn, username string) {
	t.Helper()

	mustSend(t, conn, "response", username)

	notice := ExpectEvent(t, conn, "message")
	wantNotice := fmt.Sprintf("*** %s joined the chat ***", username)
	if notice != wantNotice {
		t.Fatalf("Expected join notice %q, got %q", wantNotice, notice)
	}
	ExpectEvent(t, conn, "message") // welcome
}

func mustSend(t *testing.T, conn *websocket.Conn, event, data string) {
	t.Helper()
	if err := SendEvent(conn, event, data); err != nil {
		t.Fatalf("Failed to send %s event: %v", event, err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
