package transfer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FileReceived describes one completed inbound transfer.
type FileReceived struct {
	FileID   string
	Name     string
	MimeType string
	PeerID   string
	Data     []byte
}

// inboundSession tracks one file while its chunks arrive. Chunks is sparse:
// out-of-order arrival stores a later index without requiring earlier ones.
type inboundSession struct {
	fileID        string
	peerID        string
	name          string
	mimeType      string
	size          int64
	totalChunks   int
	chunks        [][]byte
	receivedBytes int64
	startedAt     time.Time
}

// Receiver consumes data-channel frames, reassembles files and reports
// completion. Reconstruction triggers when the chunk with
// index == totalChunks-1 arrives, not when every index is present — the
// behavior the original system shipped with. Under out-of-order delivery of
// the final index this concatenates across gaps; see the design notes before
// strengthening the check.
type Receiver struct {
	log *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*inboundSession

	onReceived func(FileReceived)
	onProgress func(Progress)
	onFailed   func(fileID, peerID string, err error)
}

func NewReceiver(log *logrus.Logger) *Receiver {
	return &Receiver{
		log:      log,
		sessions: make(map[string]*inboundSession),
	}
}

// OnFileReceived registers the completion callback. Must be set before frames
// arrive.
func (r *Receiver) OnFileReceived(fn func(FileReceived)) { r.onReceived = fn }

// OnProgress registers the per-chunk progress callback.
func (r *Receiver) OnProgress(fn func(Progress)) { r.onProgress = fn }

// OnTransferFailed registers the callback for malformed frames that abort a
// session.
func (r *Receiver) OnTransferFailed(fn func(fileID, peerID string, err error)) { r.onFailed = fn }

// HandleFrame processes one raw data-channel message from the given peer.
func (r *Receiver) HandleFrame(peerID string, raw []byte) {
	msg, err := Decode(raw)
	if err != nil {
		r.log.Warnf("Dropping malformed frame from peer %s: %v", peerID, err)
		return
	}

	switch msg.Type {
	case MsgFileMetadata:
		r.handleMetadata(peerID, msg)
	case MsgFileChunk:
		r.handleChunk(peerID, msg)
	}
}

func (r *Receiver) handleMetadata(peerID string, msg Message) {
	session := &inboundSession{
		fileID:      msg.FileID,
		peerID:      peerID,
		name:        msg.Name,
		mimeType:    msg.MimeType,
		size:        msg.Size,
		totalChunks: msg.TotalChunks,
		chunks:      make([][]byte, msg.TotalChunks),
		startedAt:   time.Now(),
	}

	r.mu.Lock()
	// A fileID scopes exactly one session; repeated metadata restarts it.
	r.sessions[msg.FileID] = session
	r.mu.Unlock()

	r.log.Infof("Incoming file %s (%d bytes, %d chunks) from peer %s", msg.Name, msg.Size, msg.TotalChunks, peerID)
}

func (r *Receiver) handleChunk(peerID string, msg Message) {
	r.mu.Lock()
	session, exists := r.sessions[msg.FileID]
	if !exists {
		r.mu.Unlock()
		r.log.Warnf("Chunk %d for unknown transfer %s from peer %s, dropping", msg.Index, msg.FileID, peerID)
		return
	}
	if msg.Index >= session.totalChunks {
		r.mu.Unlock()
		r.fail(session, fmt.Errorf("chunk index %d exceeds announced total %d", msg.Index, session.totalChunks))
		return
	}

	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		r.mu.Unlock()
		r.fail(session, fmt.Errorf("failed to decode chunk %d: %w", msg.Index, err))
		return
	}

	session.chunks[msg.Index] = data
	session.receivedBytes += int64(len(data))

	progress := progressAt(session.fileID, session.peerID, DirectionReceive,
		session.receivedBytes, session.size, time.Since(session.startedAt))
	last := msg.Index == session.totalChunks-1
	if last {
		delete(r.sessions, session.fileID)
	}
	r.mu.Unlock()

	if r.onProgress != nil {
		r.onProgress(progress)
	}
	if last {
		r.complete(session)
	}
}

// complete concatenates chunks in index order and fires the completion
// callback. Gaps left by not-yet-arrived earlier chunks are skipped, matching
// the last-index trigger above.
func (r *Receiver) complete(session *inboundSession) {
	var buf bytes.Buffer
	buf.Grow(int(session.receivedBytes))
	for _, chunk := range session.chunks {
		buf.Write(chunk)
	}

	r.log.Infof("Completed transfer %s (%s, %d bytes) from peer %s", session.fileID, session.name, buf.Len(), session.peerID)

	if r.onReceived != nil {
		r.onReceived(FileReceived{
			FileID:   session.fileID,
			Name:     session.name,
			MimeType: session.mimeType,
			PeerID:   session.peerID,
			Data:     buf.Bytes(),
		})
	}
}

func (r *Receiver) fail(session *inboundSession, err error) {
	r.mu.Lock()
	delete(r.sessions, session.fileID)
	r.mu.Unlock()

	r.log.Errorf("Transfer %s from peer %s failed: %v", session.fileID, session.peerID, err)
	if r.onFailed != nil {
		r.onFailed(session.fileID, session.peerID, err)
	}
}

// AbandonPeer discards every in-flight session tied to the peer, typically
// when its data channel closes mid-transfer. No completion callback fires.
func (r *Receiver) AbandonPeer(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.peerID == peerID {
			r.log.Infof("Abandoning transfer %s: channel to peer %s closed", id, peerID)
			delete(r.sessions, id)
		}
	}
}

// ActiveSessions reports the number of in-flight inbound transfers.
func (r *Receiver) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
