// Package server tracks per-connection onboarding state via the Session type.
package server

// Step identifies the onboarding stage a session is in.
type Step int

// Onboarding stages. A session starts at StepChoice and either hosts a room
// (host branch) or joins an existing one (connect branch); both branches
// converge on StepUsername before entering StepChat.
const (
	StepChoice Step = iota
	StepHostType
	StepHostPasskey
	StepConnectRoom
	StepConnectPasskey
	StepUsername
	StepChat
)

// String returns a short name for the step, used in logs.
func (s Step) String() string {
	switch s {
	case StepChoice:
		return "choice"
	case StepHostType:
		return "host_type"
	case StepHostPasskey:
		return "host_passkey"
	case StepConnectRoom:
		return "connect_room"
	case StepConnectPasskey:
		return "connect_passkey"
	case StepUsername:
		return "username"
	case StepChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Session is the server-side state for one active connection. It is created
// when the connection registers with the hub, mutated only by the state
// machine inside the hub's run loop, and discarded when the connection
// closes.
type Session struct {
	ConnID string
	Step   Step

	// PendingRoomID holds the room under consideration during the connect
	// and passkey steps; it is absorbed into RoomID on success.
	PendingRoomID string

	// RoomID is the committed room membership, set from StepUsername onward.
	// Rooms can be deleted between events, so it must be re-resolved through
	// the registry before every use.
	RoomID string

	// Username is set once at the username step and never changes afterward.
	Username string
}

// NewSession creates a session parked at the initial choice step.
func NewSession(connID string) *Session {
	return &Session{ConnID: connID, Step: StepChoice}
}

// reset returns the session to the initial step, discarding any onboarding
// progress and room membership references.
func (s *Session) reset() {
	s.Step = StepChoice
	s.PendingRoomID = ""
	s.RoomID = ""
	s.Username = ""
}
