package transfer

import (
	"bytes"
	"encoding/base64"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func metadataFrame(t *testing.T, fileID, name string, size int64, totalChunks int) []byte {
	t.Helper()
	raw, err := Encode(Message{
		Type:        MsgFileMetadata,
		FileID:      fileID,
		Name:        name,
		Size:        size,
		MimeType:    "application/octet-stream",
		TotalChunks: totalChunks,
	})
	if err != nil {
		t.Fatalf("failed to encode metadata frame: %v", err)
	}
	return raw
}

func chunkFrame(t *testing.T, fileID string, index, totalChunks int, data []byte) []byte {
	t.Helper()
	raw, err := Encode(Message{
		Type:        MsgFileChunk,
		FileID:      fileID,
		Index:       index,
		Data:        base64.StdEncoding.EncodeToString(data),
		TotalChunks: totalChunks,
	})
	if err != nil {
		t.Fatalf("failed to encode chunk frame: %v", err)
	}
	return raw
}

// Three chunks of 16, 16 and 5 bytes delivered in order must yield exactly
// one completed file whose contents match byte for byte.
func TestReceiverInOrderRoundTrip(t *testing.T) {
	content := make([]byte, 37)
	for i := range content {
		content[i] = byte(i)
	}
	chunks := [][]byte{content[0:16], content[16:32], content[32:37]}

	r := NewReceiver(testLogger())
	var received []FileReceived
	r.OnFileReceived(func(f FileReceived) { received = append(received, f) })

	r.HandleFrame("peer-a", metadataFrame(t, "file-1", "notes.txt", 37, 3))
	for i, chunk := range chunks {
		r.HandleFrame("peer-a", chunkFrame(t, "file-1", i, 3, chunk))
	}

	if len(received) != 1 {
		t.Fatalf("expected exactly one completed file, got %d", len(received))
	}
	got := received[0]
	if got.FileID != "file-1" || got.Name != "notes.txt" || got.PeerID != "peer-a" {
		t.Errorf("unexpected completion fields: %+v", got)
	}
	if !bytes.Equal(got.Data, content) {
		t.Errorf("reconstructed %d bytes, want %d identical bytes", len(got.Data), len(content))
	}
	if r.ActiveSessions() != 0 {
		t.Errorf("expected no active sessions after completion, got %d", r.ActiveSessions())
	}
}

// Reconstruction fires when the chunk carrying the last index arrives, even
// while earlier indices are still missing. Delivering 2, 0, 1 therefore
// completes on the first frame with only chunk 2's bytes, and the trailing
// chunks are dropped as frames for an unknown transfer.
func TestReceiverCompletesOnLastIndex(t *testing.T) {
	chunks := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cc")}

	r := NewReceiver(testLogger())
	var received []FileReceived
	r.OnFileReceived(func(f FileReceived) { received = append(received, f) })

	r.HandleFrame("peer-a", metadataFrame(t, "file-2", "ooo.bin", 10, 3))
	for _, i := range []int{2, 0, 1} {
		r.HandleFrame("peer-a", chunkFrame(t, "file-2", i, 3, chunks[i]))
	}

	if len(received) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(received))
	}
	if !bytes.Equal(received[0].Data, []byte("cc")) {
		t.Errorf("expected only the final chunk's bytes, got %q", received[0].Data)
	}
	if r.ActiveSessions() != 0 {
		t.Errorf("expected session removed on completion, got %d active", r.ActiveSessions())
	}
}

func TestReceiverProgressPerChunk(t *testing.T) {
	r := NewReceiver(testLogger())
	var progress []Progress
	r.OnProgress(func(p Progress) { progress = append(progress, p) })
	r.OnFileReceived(func(FileReceived) {})

	r.HandleFrame("peer-a", metadataFrame(t, "file-3", "p.bin", 8, 2))
	r.HandleFrame("peer-a", chunkFrame(t, "file-3", 0, 2, []byte("1234")))
	r.HandleFrame("peer-a", chunkFrame(t, "file-3", 1, 2, []byte("5678")))

	if len(progress) != 2 {
		t.Fatalf("expected one progress report per chunk, got %d", len(progress))
	}
	if progress[0].BytesDone != 4 || progress[1].BytesDone != 8 {
		t.Errorf("unexpected byte counts: %d then %d", progress[0].BytesDone, progress[1].BytesDone)
	}
	if progress[0].Direction != DirectionReceive {
		t.Errorf("expected receive direction, got %q", progress[0].Direction)
	}
	if progress[1].Percent != 100 {
		t.Errorf("expected 100%% after last chunk, got %v", progress[1].Percent)
	}
}

func TestReceiverDropsChunkForUnknownTransfer(t *testing.T) {
	r := NewReceiver(testLogger())
	completed := false
	r.OnFileReceived(func(FileReceived) { completed = true })

	r.HandleFrame("peer-a", chunkFrame(t, "never-announced", 0, 1, []byte("x")))

	if completed {
		t.Error("chunk without metadata must not complete a transfer")
	}
	if r.ActiveSessions() != 0 {
		t.Errorf("expected no sessions, got %d", r.ActiveSessions())
	}
}

func TestReceiverMalformedBase64FailsTransfer(t *testing.T) {
	r := NewReceiver(testLogger())
	var failedID string
	r.OnTransferFailed(func(fileID, peerID string, err error) { failedID = fileID })
	r.OnFileReceived(func(FileReceived) { t.Error("failed transfer must not complete") })

	r.HandleFrame("peer-a", metadataFrame(t, "file-4", "bad.bin", 4, 1))
	raw, err := Encode(Message{
		Type:        MsgFileChunk,
		FileID:      "file-4",
		Index:       0,
		Data:        "not!!base64",
		TotalChunks: 1,
	})
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	r.HandleFrame("peer-a", raw)

	if failedID != "file-4" {
		t.Errorf("expected failure callback for file-4, got %q", failedID)
	}
	if r.ActiveSessions() != 0 {
		t.Errorf("expected failed session removed, got %d active", r.ActiveSessions())
	}
}

func TestReceiverAbandonPeer(t *testing.T) {
	r := NewReceiver(testLogger())
	r.OnFileReceived(func(FileReceived) { t.Error("abandoned transfer must not complete") })
	r.OnTransferFailed(func(string, string, error) { t.Error("abandon must not report failure") })

	r.HandleFrame("peer-a", metadataFrame(t, "file-5", "half.bin", 8, 2))
	r.HandleFrame("peer-a", chunkFrame(t, "file-5", 0, 2, []byte("1234")))
	r.HandleFrame("peer-b", metadataFrame(t, "file-6", "other.bin", 8, 2))

	r.AbandonPeer("peer-a")

	if r.ActiveSessions() != 1 {
		t.Fatalf("expected only peer-b's session to survive, got %d", r.ActiveSessions())
	}

	r.AbandonPeer("peer-b")
	if r.ActiveSessions() != 0 {
		t.Errorf("expected no sessions left, got %d", r.ActiveSessions())
	}
}

func TestReceiverRepeatedMetadataRestartsSession(t *testing.T) {
	r := NewReceiver(testLogger())
	var received []FileReceived
	r.OnFileReceived(func(f FileReceived) { received = append(received, f) })

	r.HandleFrame("peer-a", metadataFrame(t, "file-7", "v1.bin", 8, 2))
	r.HandleFrame("peer-a", chunkFrame(t, "file-7", 0, 2, []byte("old!")))
	// Second announcement for the same id discards the partial state.
	r.HandleFrame("peer-a", metadataFrame(t, "file-7", "v2.bin", 8, 2))
	r.HandleFrame("peer-a", chunkFrame(t, "file-7", 0, 2, []byte("new1")))
	r.HandleFrame("peer-a", chunkFrame(t, "file-7", 1, 2, []byte("new2")))

	if len(received) != 1 {
		t.Fatalf("expected one completion, got %d", len(received))
	}
	if received[0].Name != "v2.bin" {
		t.Errorf("expected restarted session's name, got %q", received[0].Name)
	}
	if !bytes.Equal(received[0].Data, []byte("new1new2")) {
		t.Errorf("expected only post-restart chunks, got %q", received[0].Data)
	}
}
