package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/relay-chat/relaychat/test/testhelpers"
)

// TestInitialPromptOnConnect verifies that a new connection is greeted with
// the choice prompt before it sends anything.
func TestInitialPromptOnConnect(t *testing.T) {
	_, wsURL := startTestServer(t, 18090)

	conn, err := testhelpers.ConnectWebSocket(wsURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	prompt := testhelpers.ExpectEvent(t, conn, "prompt")
	if !strings.Contains(prompt, "host") {
		t.Errorf("Unexpected initial prompt: %q", prompt)
	}
}

// TestInvalidChoiceReprompted verifies that unrecognized input at the menu
// produces an error followed by the same prompt again.
func TestInvalidChoiceReprompted(t *testing.T) {
	_, wsURL := startTestServer(t, 18091)

	conn := testhelpers.Connect(t, wsURL)
	defer conn.Close()

	if err := testhelpers.SendEvent(conn, "response", "9"); err != nil {
		t.Fatalf("Failed to send response: %v", err)
	}

	errText := testhelpers.ExpectEvent(t, conn, "error")
	if errText != "Invalid choice." {
		t.Errorf("Expected invalid choice error, got %q", errText)
	}
	testhelpers.ExpectEvent(t, conn, "prompt")
}

// TestHostOpenRoomFlow walks the full hosting flow and checks the committed
// registry state.
func TestHostOpenRoomFlow(t *testing.T) {
	hub, wsURL := startTestServer(t, 18092)

	conn := testhelpers.Connect(t, wsURL)
	defer conn.Close()

	roomID := testhelpers.HostRoom(t, conn, "", "alice")

	room, ok := hub.Registry().Lookup(roomID)
	if !ok {
		t.Fatalf("Hosted room %s not found in registry", roomID)
	}
	if room.Passkey != "" {
		t.Errorf("Open room has passkey %q", room.Passkey)
	}
	if len(room.Members) != 1 {
		t.Errorf("Expected 1 member, got %d", len(room.Members))
	}
	for _, username := range room.Members {
		if username != "alice" {
			t.Errorf("Expected member alice, got %q", username)
		}
	}
}

// TestJoinWithPasskeyRetry verifies the passkey challenge: a wrong passkey
// keeps the session at the challenge step, the exact passkey admits.
func TestJoinWithPasskeyRetry(t *testing.T) {
	_, wsURL := startTestServer(t, 18093)

	host := testhelpers.Connect(t, wsURL)
	defer host.Close()
	roomID := testhelpers.HostRoom(t, host, "secret", "alice")

	joiner := testhelpers.Connect(t, wsURL)
	defer joiner.Close()

	if err := testhelpers.SendEvent(joiner, "response", "2"); err != nil {
		t.Fatalf("send: %v", err)
	}
	testhelpers.ExpectEvent(t, joiner, "prompt") // room id
	if err := testhelpers.SendEvent(joiner, "response", roomID); err != nil {
		t.Fatalf("send: %v", err)
	}
	testhelpers.ExpectEvent(t, joiner, "prompt") // passkey

	if err := testhelpers.SendEvent(joiner, "response", "wrong"); err != nil {
		t.Fatalf("send: %v", err)
	}
	errText := testhelpers.ExpectEvent(t, joiner, "error")
	if errText != "Invalid passkey." {
		t.Errorf("Expected passkey error, got %q", errText)
	}
	testhelpers.ExpectEvent(t, joiner, "prompt") // passkey again

	if err := testhelpers.SendEvent(joiner, "response", "secret"); err != nil {
		t.Fatalf("send: %v", err)
	}
	testhelpers.ExpectEvent(t, joiner, "prompt") // username

	if err := testhelpers.SendEvent(joiner, "response", "carol"); err != nil {
		t.Fatalf("send: %v", err)
	}
	notice := testhelpers.ExpectEvent(t, joiner, "message")
	if notice != "*** carol joined the chat ***" {
		t.Errorf("Expected join notice, got %q", notice)
	}
	testhelpers.ExpectEvent(t, joiner, "message") // welcome

	// The host sees carol's arrival too.
	hostNotice := testhelpers.ExpectEvent(t, host, "message")
	if hostNotice != "*** carol joined the chat ***" {
		t.Errorf("Host expected join notice, got %q", hostNotice)
	}
}

// TestChatRelayBroadcast verifies that a chat message reaches every member
// of the room, the sender included.
func TestChatRelayBroadcast(t *testing.T) {
	_, wsURL := startTestServer(t, 18094)

	bob := testhelpers.Connect(t, wsURL)
	defer bob.Close()
	roomID := testhelpers.HostRoom(t, bob, "", "bob")

	carol := testhelpers.Connect(t, wsURL)
	defer carol.Close()
	testhelpers.JoinRoom(t, carol, roomID, "", "carol")

	// Bob sees carol join before any chat text.
	testhelpers.ExpectEvent(t, bob, "message")

	if err := testhelpers.SendEvent(bob, "chat_message", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	bobMsg := testhelpers.ExpectEvent(t, bob, "message")
	if bobMsg != "[bob] hi" {
		t.Errorf("Bob expected relay %q, got %q", "[bob] hi", bobMsg)
	}
	carolMsg := testhelpers.ExpectEvent(t, carol, "message")
	if carolMsg != "[bob] hi" {
		t.Errorf("Carol expected relay %q, got %q", "[bob] hi", carolMsg)
	}
}

// TestChatBeforeOnboarding verifies that a chat message sent before
// onboarding completes is answered privately and never broadcast.
func TestChatBeforeOnboarding(t *testing.T) {
	_, wsURL := startTestServer(t, 18095)

	member := testhelpers.Connect(t, wsURL)
	defer member.Close()
	testhelpers.HostRoom(t, member, "", "alice")

	outsider := testhelpers.Connect(t, wsURL)
	defer outsider.Close()

	if err := testhelpers.SendEvent(outsider, "chat_message", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	errText := testhelpers.ExpectEvent(t, outsider, "error")
	if errText != "You are not in a chat room yet." {
		t.Errorf("Expected not-in-chat error, got %q", errText)
	}

	// The in-room member must receive nothing.
	if env, err := testhelpers.ReadEvent(member); err == nil {
		t.Errorf("Member unexpectedly received %q event %q", env.Event, env.Data)
	}
}

// TestQuitAnnouncesDeparture verifies explicit quit: the room is told, the
// room survives while members remain, and the connection is closed.
func TestQuitAnnouncesDeparture(t *testing.T) {
	hub, wsURL := startTestServer(t, 18096)

	bob := testhelpers.Connect(t, wsURL)
	roomID := testhelpers.HostRoom(t, bob, "", "bob")

	carol := testhelpers.Connect(t, wsURL)
	defer carol.Close()
	testhelpers.JoinRoom(t, carol, roomID, "", "carol")
	testhelpers.ExpectEvent(t, bob, "message") // carol's join notice

	if err := testhelpers.SendEvent(bob, "quit", ""); err != nil {
		t.Fatalf("send quit: %v", err)
	}

	notice := testhelpers.ExpectEvent(t, carol, "message")
	if notice != "*** bob left the chat ***" {
		t.Errorf("Expected leave notice, got %q", notice)
	}

	room, ok := hub.Registry().Lookup(roomID)
	if !ok {
		t.Fatal("Room vanished while carol is still a member")
	}
	if len(room.Members) != 1 {
		t.Errorf("Expected 1 remaining member, got %d", len(room.Members))
	}

	// Bob's connection is force-closed by the server.
	waitFor(t, 2*time.Second, func() bool {
		bob.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, _, err := bob.ReadMessage()
		return err != nil
	}, "Bob's connection was not closed after quit")
	bob.Close()
}

// TestLastDisconnectDeletesRoom verifies that the room disappears from the
// registry when its last member's transport drops, with no explicit quit.
func TestLastDisconnectDeletesRoom(t *testing.T) {
	hub, wsURL := startTestServer(t, 18097)

	alice := testhelpers.Connect(t, wsURL)
	roomID := testhelpers.HostRoom(t, alice, "", "alice")

	if _, ok := hub.Registry().Lookup(roomID); !ok {
		t.Fatal("Room missing right after hosting")
	}

	alice.Close()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := hub.Registry().Lookup(roomID)
		return !ok
	}, "Room was not deleted after its last member disconnected")
}

// TestRejoinDeletedRoomReportsMissing verifies that once a
// room is deleted, connecting with its old id reports an error.
func TestRejoinDeletedRoomReportsMissing(t *testing.T) {
	hub, wsURL := startTestServer(t, 18098)

	alice := testhelpers.Connect(t, wsURL)
	roomID := testhelpers.HostRoom(t, alice, "", "alice")
	alice.Close()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := hub.Registry().Lookup(roomID)
		return !ok
	}, "Room was not deleted after disconnect")

	late := testhelpers.Connect(t, wsURL)
	defer late.Close()

	if err := testhelpers.SendEvent(late, "response", "2"); err != nil {
		t.Fatalf("send: %v", err)
	}
	testhelpers.ExpectEvent(t, late, "prompt")
	if err := testhelpers.SendEvent(late, "response", roomID); err != nil {
		t.Fatalf("send: %v", err)
	}

	errText := testhelpers.ExpectEvent(t, late, "error")
	if errText != "Room does not exist." {
		t.Errorf("Expected room-missing error, got %q", errText)
	}
}
