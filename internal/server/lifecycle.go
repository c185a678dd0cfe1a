// Package server wires transport lifecycle events into the onboarding state
// machine: connect, inbound events, explicit quit, and disconnect.
package server

import (
	"log"
	"strings"
)

// handleConnect registers the client, starts its pumps, creates a session
// parked at the choice step, and sends the initial prompt.
func (h *Hub) handleConnect(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	h.byConn[client.connID] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.sessions[client.connID] = NewSession(client.connID)
	log.Printf("Client registered from %s. Total clients: %d", client.addr, clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	h.sendTo(client.connID, EventPrompt, promptChoice)
}

// handleDisconnect removes a client and its session. If the session had a
// committed room membership, the departure is announced to the room; the
// registry deletes the room in the same operation when the last member
// leaves. Safe to call more than once for the same client.
func (h *Hub) handleDisconnect(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	delete(h.byConn, client.connID)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)

	if s := h.sessions[client.connID]; s != nil {
		delete(h.sessions, client.connID)
		h.announceDeparture(s)
	}
	log.Printf("Client unregistered from %s. Total clients: %d", client.addr, clientCount)
}

// announceDeparture removes the session's room membership and notifies the
// remaining members, but only when a member was actually removed: a session
// that never reached the username step leaves nothing to announce.
func (h *Hub) announceDeparture(s *Session) {
	if s.RoomID == "" {
		return
	}
	username, ok := h.registry.Leave(s.RoomID, s.ConnID)
	if !ok {
		return
	}
	h.broadcastRoom(s.RoomID, EventMessage, leaveNotice(username))
}

// handleEvent dispatches one decoded client frame. Response payloads are
// trimmed before they reach the state machine; chat text is passed through
// verbatim.
func (h *Hub) handleEvent(ev inboundEvent) {
	s := h.sessions[ev.client.connID]
	if s == nil {
		// Connection already tore down; late frames are dropped.
		return
	}

	switch ev.kind {
	case EventResponse:
		h.deliver(s, h.machine.Advance(s, strings.TrimSpace(ev.data)))
	case EventChatMessage:
		h.deliver(s, h.machine.Relay(s, ev.data))
	case EventQuit:
		h.handleQuit(ev.client, s)
	default:
		log.Printf("Unknown event %q from %s", ev.kind, ev.client.addr)
	}
}

// handleQuit performs a voluntary departure: leave the room, tell the
// remaining members, reset the session, then force-close the connection.
// The close makes the pumps exit, which funnels the client back through
// handleDisconnect; by then the session holds no membership, so nothing is
// announced twice.
func (h *Hub) handleQuit(client *Client, s *Session) {
	h.announceDeparture(s)
	s.reset()
	client.forceClose()
}
