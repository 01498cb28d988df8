package peer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/unishare/unishare/internal/signaling"
	"github.com/unishare/unishare/internal/transfer"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testManager(t *testing.T, id string) *Manager {
	t.Helper()
	return NewManager(Options{
		PeerID: id,
		Logger: testLogger(),
	})
}

// An answer arriving after its connection is gone is a stale signal: logged
// and ignored, never a crash.
func TestHandleAnswerFromUnknownPeer(t *testing.T) {
	m := testManager(t, "local")
	m.HandleAnswer("ghost", signaling.SessionDescription{Type: "answer", SDP: "v=0"})
}

func TestHandleICECandidateFromUnknownPeer(t *testing.T) {
	m := testManager(t, "local")
	m.HandleICECandidate("ghost", webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 192.0.2.1 9 typ host"})
}

func TestSendFileWithoutChannel(t *testing.T) {
	m := testManager(t, "local")

	_, err := m.SendFile(context.Background(), "ghost", transfer.Source{Name: "f.bin"})
	if err != ErrChannelNotReady {
		t.Errorf("expected ErrChannelNotReady, got %v", err)
	}
}

func TestWaitForChannelUnknownPeer(t *testing.T) {
	m := testManager(t, "local")

	if err := m.WaitForChannel(context.Background(), "ghost"); err != ErrChannelNotReady {
		t.Errorf("expected ErrChannelNotReady, got %v", err)
	}
}

func TestWaitForChannelTimeout(t *testing.T) {
	m := testManager(t, "local")

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("failed to create peer connection: %v", err)
	}
	defer pc.Close()

	conn := &peerConn{peerID: "remote", role: RoleInitiator, pc: pc, openCh: make(chan struct{})}
	m.mu.Lock()
	m.conns["remote"] = conn
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.WaitForChannel(ctx, "remote"); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded while channel never opens, got %v", err)
	}

	conn.markOpen()
	if err := m.WaitForChannel(context.Background(), "remote"); err != nil {
		t.Errorf("expected immediate return once open, got %v", err)
	}
}

func TestRosterUpdatesFromEnvelope(t *testing.T) {
	m := testManager(t, "local")

	var snapshots [][]signaling.User
	m.OnOnlineUsers(func(users []signaling.User) { snapshots = append(snapshots, users) })

	m.handleEnvelope(signaling.Envelope{
		Type:  signaling.MsgTypeOnlineUsers,
		Users: []signaling.User{{ID: "b", Username: "bob"}},
	})

	if len(snapshots) != 1 || len(snapshots[0]) != 1 || snapshots[0][0].ID != "b" {
		t.Fatalf("unexpected roster notifications: %+v", snapshots)
	}
	if u, ok := m.Roster().Lookup("b"); !ok || u.Username != "bob" {
		t.Errorf("roster lookup failed: %+v ok=%v", u, ok)
	}
}

func TestObserversFanOut(t *testing.T) {
	m := testManager(t, "local")

	var first, second int
	m.OnFileReceived(func(transfer.FileReceived) { first++ })
	m.OnFileReceived(func(transfer.FileReceived) { second++ })

	m.notifyReceived(transfer.FileReceived{FileID: "f1"})

	if first != 1 || second != 1 {
		t.Errorf("expected both subscribers invoked once, got %d and %d", first, second)
	}
}
