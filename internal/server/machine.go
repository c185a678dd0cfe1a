// Package server implements the onboarding state machine that walks a
// connection from the initial choice through room selection into chat.
package server

import "fmt"

// Prompt text for each onboarding step. Every error on the onboarding path
// re-emits the prompt for the step the session is still in, so the remote
// end can retry without losing context.
const (
	promptChoice         = "Enter 1 to host a new room, or 2 to connect to an existing room."
	promptHostType       = "Enter 1 for an open room, or 2 for a private room."
	promptHostPasskey    = "Set a passkey for the room."
	promptConnectRoom    = "Enter the room id."
	promptConnectPasskey = "Enter the room passkey."
	promptUsername       = "Choose a username."
)

// User-facing error text. All of these are recoverable: the session stays
// in (or is reset to) a valid step and keeps being prompted.
const (
	errInvalidChoice   = "Invalid choice."
	errEmptyPasskey    = "Passkey cannot be empty."
	errRoomMissing     = "Room does not exist."
	errInvalidPasskey  = "Invalid passkey."
	errEmptyUsername   = "Username cannot be empty."
	errNotInChat       = "You are not in a chat room yet."
	errAlreadyChatting = "You are already chatting."
	errInvalidState    = "Invalid state."
)

const shutdownNotice = "*** server is shutting down ***"

func joinNotice(username string) string {
	return fmt.Sprintf("*** %s joined the chat ***", username)
}

func leaveNotice(username string) string {
	return fmt.Sprintf("*** %s left the chat ***", username)
}

func relayText(username, text string) string {
	return fmt.Sprintf("[%s] %s", username, text)
}

func welcomeText(username string) string {
	return fmt.Sprintf("Welcome to the room, %s!", username)
}

func roomCreatedText(roomID string, private bool) string {
	if private {
		return fmt.Sprintf("Room created. Share this id to invite others: %s (passkey required).", roomID)
	}
	return fmt.Sprintf("Room created. Share this id to invite others: %s (no passkey).", roomID)
}

// Machine advances sessions through the onboarding flow. It mutates only the
// session it is handed and the registry; all network output is returned as
// Outbound values for the hub to deliver, which keeps the machine testable
// without a live transport.
type Machine struct {
	registry *Registry
}

// NewMachine creates a state machine backed by the given registry.
func NewMachine(registry *Registry) *Machine {
	return &Machine{registry: registry}
}

// Advance feeds one trimmed response into the session's current step and
// returns the messages to deliver. Malformed input never drops the session;
// it produces an error plus a fresh prompt for the same step.
func (m *Machine) Advance(s *Session, input string) []Outbound {
	switch s.Step {
	case StepChoice:
		return m.handleChoice(s, input)
	case StepHostType:
		return m.handleHostType(s, input)
	case StepHostPasskey:
		return m.handleHostPasskey(s, input)
	case StepConnectRoom:
		return m.handleConnectRoom(s, input)
	case StepConnectPasskey:
		return m.handleConnectPasskey(s, input)
	case StepUsername:
		return m.handleUsername(s, input)
	case StepChat:
		return []Outbound{selfError(errAlreadyChatting)}
	default:
		// Corrupted step value: recover by resetting to the initial step.
		s.reset()
		return []Outbound{selfError(errInvalidState), selfPrompt(promptChoice)}
	}
}

// Relay handles a chat message. Only sessions that completed onboarding may
// broadcast; everyone else gets a private error and no state change.
func (m *Machine) Relay(s *Session, text string) []Outbound {
	if s.Step != StepChat {
		return []Outbound{selfError(errNotInChat)}
	}
	if text == "" {
		return nil
	}
	if s.RoomID == "" || s.Username == "" {
		return []Outbound{selfError(errInvalidState)}
	}
	return []Outbound{roomNotice(s.RoomID, relayText(s.Username, text))}
}

func (m *Machine) handleChoice(s *Session, input string) []Outbound {
	switch input {
	case "1":
		s.Step = StepHostType
		return []Outbound{selfPrompt(promptHostType)}
	case "2":
		s.Step = StepConnectRoom
		return []Outbound{selfPrompt(promptConnectRoom)}
	default:
		return []Outbound{selfError(errInvalidChoice), selfPrompt(promptChoice)}
	}
}

func (m *Machine) handleHostType(s *Session, input string) []Outbound {
	switch input {
	case "1":
		return m.commitNewRoom(s, "")
	case "2":
		s.Step = StepHostPasskey
		return []Outbound{selfPrompt(promptHostPasskey)}
	default:
		return []Outbound{selfError(errInvalidChoice), selfPrompt(promptHostType)}
	}
}

func (m *Machine) handleHostPasskey(s *Session, input string) []Outbound {
	if input == "" {
		return []Outbound{selfError(errEmptyPasskey), selfPrompt(promptHostPasskey)}
	}
	return m.commitNewRoom(s, input)
}

// commitNewRoom creates the room, records it as the session's committed
// room, and advances to the shared username step.
func (m *Machine) commitNewRoom(s *Session, passkey string) []Outbound {
	roomID := m.registry.CreateRoom(passkey)
	s.RoomID = roomID
	s.PendingRoomID = ""
	s.Step = StepUsername
	return []Outbound{
		selfMessage(roomCreatedText(roomID, passkey != "")),
		selfPrompt(promptUsername),
	}
}

func (m *Machine) handleConnectRoom(s *Session, input string) []Outbound {
	rm, ok := m.registry.Lookup(input)
	if !ok {
		return []Outbound{selfError(errRoomMissing), selfPrompt(promptConnectRoom)}
	}

	if rm.Passkey != "" {
		s.PendingRoomID = rm.ID
		s.Step = StepConnectPasskey
		return []Outbound{selfPrompt(promptConnectPasskey)}
	}

	s.RoomID = rm.ID
	s.PendingRoomID = ""
	s.Step = StepUsername
	return []Outbound{selfPrompt(promptUsername)}
}

func (m *Machine) handleConnectPasskey(s *Session, input string) []Outbound {
	// A room deleted between the challenge and the check reads the same as a
	// wrong passkey: the id must not be probeable for liveness.
	rm, ok := m.registry.Lookup(s.PendingRoomID)
	if !ok || rm.Passkey != input {
		return []Outbound{selfError(errInvalidPasskey), selfPrompt(promptConnectPasskey)}
	}

	s.RoomID = s.PendingRoomID
	s.PendingRoomID = ""
	s.Step = StepUsername
	return []Outbound{selfPrompt(promptUsername)}
}

func (m *Machine) handleUsername(s *Session, input string) []Outbound {
	if input == "" {
		return []Outbound{selfError(errEmptyUsername), selfPrompt(promptUsername)}
	}

	if err := m.registry.Join(s.RoomID, s.ConnID, input); err != nil {
		// The room vanished before membership was committed. Start over.
		s.reset()
		return []Outbound{selfError(errRoomMissing), selfPrompt(promptChoice)}
	}

	s.Username = input
	s.Step = StepChat
	return []Outbound{
		roomNotice(s.RoomID, joinNotice(input)),
		selfMessage(welcomeText(input)),
	}
}
