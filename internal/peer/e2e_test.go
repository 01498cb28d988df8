package peer

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/unishare/unishare/internal/relay"
	"github.com/unishare/unishare/internal/signaling"
	"github.com/unishare/unishare/internal/transfer"
)

// Full path test: two managers negotiate through an in-process relay and move
// a file over the resulting data channel. Needs working ICE connectivity, so
// it only runs when UNISHARE_E2E is set.
func TestEndToEndTransfer(t *testing.T) {
	if os.Getenv("UNISHARE_E2E") == "" {
		t.Skip("set UNISHARE_E2E=1 to run the end-to-end transfer test")
	}

	srv := httptest.NewServer(relay.NewServer(relay.Config{Logger: testLogger()}).Handler())
	defer srv.Close()
	baseURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	newSide := func(id, name string) *Manager {
		sig, err := signaling.Dial(ctx, baseURL, id, signaling.DefaultReconnectPolicy(), testLogger())
		if err != nil {
			t.Fatalf("failed to dial relay as %s: %v", id, err)
		}
		m := NewManager(Options{
			PeerID:   id,
			Username: name,
			Signal:   sig,
			Logger:   testLogger(),
		})
		m.Start()
		t.Cleanup(func() { m.Disconnect() })
		return m
	}

	sender := newSide("peer-a", "alice")
	receiver := newSide("peer-b", "bob")

	content := bytes.Repeat([]byte("unishare"), 8*1024)
	received := make(chan transfer.FileReceived, 1)
	receiver.OnFileReceived(func(f transfer.FileReceived) { received <- f })

	if err := sender.Initiate("peer-b"); err != nil {
		t.Fatalf("failed to initiate: %v", err)
	}
	if err := sender.Initiate("peer-b"); err == nil {
		t.Error("expected a second Initiate to an active peer to fail")
	}

	if err := sender.WaitForChannel(ctx, "peer-b"); err != nil {
		t.Fatalf("data channel never opened: %v", err)
	}

	src := transfer.Source{
		Reader:   bytes.NewReader(content),
		Name:     "payload.bin",
		Size:     int64(len(content)),
		MimeType: "application/octet-stream",
	}
	fileID, err := sender.SendFile(ctx, "peer-b", src)
	if err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	select {
	case f := <-received:
		if f.FileID != fileID || f.Name != "payload.bin" {
			t.Errorf("unexpected completion: %+v", f)
		}
		if !bytes.Equal(f.Data, content) {
			t.Errorf("received %d bytes, want %d matching bytes", len(f.Data), len(content))
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the file")
	}
}
