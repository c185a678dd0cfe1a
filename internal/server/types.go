// Package server defines the event envelope exchanged with clients and the
// outbound effect types produced by the onboarding state machine.
package server

import "strings"

// Inbound event names delivered by clients over the WebSocket connection.
const (
	EventResponse    = "response"
	EventChatMessage = "chat_message"
	EventQuit        = "quit"
)

// Outbound event names delivered to clients.
const (
	EventPrompt  = "prompt"
	EventError   = "error"
	EventMessage = "message"
)

// Envelope is the JSON frame exchanged over the WebSocket connection in
// both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// OutboundScope selects the audience of an outbound effect.
type OutboundScope int

const (
	// ScopeSelf delivers to the connection whose event produced the effect.
	ScopeSelf OutboundScope = iota
	// ScopeRoom fans out to every current member of RoomID.
	ScopeRoom
)

// Outbound is one message produced by a state transition. The state machine
// returns these as plain data; the hub performs the actual delivery.
type Outbound struct {
	Scope  OutboundScope
	Event  string
	Text   string
	RoomID string // set when Scope is ScopeRoom
}

func selfPrompt(text string) Outbound {
	return Outbound{Scope: ScopeSelf, Event: EventPrompt, Text: text}
}

func selfError(text string) Outbound {
	return Outbound{Scope: ScopeSelf, Event: EventError, Text: text}
}

func selfMessage(text string) Outbound {
	return Outbound{Scope: ScopeSelf, Event: EventMessage, Text: text}
}

func roomNotice(roomID, text string) Outbound {
	return Outbound{Scope: ScopeRoom, Event: EventMessage, Text: text, RoomID: roomID}
}

// inboundEvent is a decoded client frame queued for the hub's run loop.
type inboundEvent struct {
	client *Client
	kind   string
	data   string
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
