// Package server coordinates client registration, session dispatch, room
// broadcast, and connection cleanup for the relay chat system via the Hub
// type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub owns all cross-connection state: the client set, every session, and
// the room registry. Its run loop processes one inbound event at a time, so
// each state transition and each registry mutation completes before the
// next event from any connection is handled.
type Hub struct {
	registry *Registry
	machine  *Machine

	clients  map[*Client]bool
	byConn   map[string]*Client
	sessions map[string]*Session

	register   chan *Client
	unregister chan *Client
	events     chan inboundEvent

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub bound to the given registry. The returned Hub is
// ready to manage connections once Run is started in its own goroutine.
func NewHub(registry *Registry) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   registry,
		machine:    NewMachine(registry),
		clients:    make(map[*Client]bool),
		byConn:     make(map[string]*Client),
		sessions:   make(map[string]*Session),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the registry this hub dispatches into.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// GetRegisterChan returns the channel used for registering new clients.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and inbound session events. This method should be called
// in a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.announceShutdown()
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.handleConnect(client)

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

var hub = NewHub(NewRegistry())

// deliver applies the outbound effects of one state transition in order.
func (h *Hub) deliver(s *Session, out []Outbound) {
	for _, o := range out {
		switch o.Scope {
		case ScopeSelf:
			h.sendTo(s.ConnID, o.Event, o.Text)
		case ScopeRoom:
			h.broadcastRoom(o.RoomID, o.Event, o.Text)
		}
	}
}

// sendTo delivers a private event to a single connection. Delivery is
// best-effort: a connection that cannot accept the message is dropped.
func (h *Hub) sendTo(connID, event, text string) {
	client := h.byConn[connID]
	if client == nil {
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: text})
	if err != nil {
		log.Printf("Error encoding %s event for %s: %v", event, connID, err)
		return
	}
	if !h.safeSend(client, payload) {
		h.handleDisconnect(client)
	}
}

// broadcastRoom fans an event out to every connection currently a member of
// the room. Membership is resolved through the registry at call time; a
// room deleted meanwhile simply delivers to nobody. Fire-and-forget: no
// acknowledgment, and a connection that fails mid-broadcast is evicted
// without raising an error.
func (h *Hub) broadcastRoom(roomID, event, text string) {
	rm, ok := h.registry.Lookup(roomID)
	if !ok {
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: text})
	if err != nil {
		log.Printf("Error encoding %s broadcast for room %s: %v", event, roomID, err)
		return
	}

	var failed []*Client
	for connID := range rm.Members {
		client := h.byConn[connID]
		if client == nil {
			continue
		}
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		log.Printf("Client %s removed due to full send buffer", client.addr)
		h.handleDisconnect(client)
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation so the client cannot be
	// unregistered and have its channel closed mid-send.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// announceShutdown sends the shutdown notice to every room still in the
// registry. Sent before connections are closed; delivery is best-effort.
func (h *Hub) announceShutdown() {
	for _, roomID := range h.registry.RoomIDs() {
		h.broadcastRoom(roomID, EventMessage, shutdownNotice)
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete. Each room receives a shutdown notice before its
// connections are closed. It returns after all client goroutines have
// finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	// Wait for Run() to complete
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
