package transfer

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultChunkDelay is the fixed pause between chunk frames. The protocol has
// no acknowledgment or flow-control frame; this throttle is the only pacing.
const DefaultChunkDelay = 5 * time.Millisecond

// Channel is the outbound half of a data channel. *webrtc.DataChannel
// satisfies it.
type Channel interface {
	Send(data []byte) error
}

// Sender streams one file over a channel as a metadata frame followed by
// ChunkSize-sized chunk frames in ascending index order. Completion is
// implicit in the last index; no closing handshake frame exists.
type Sender struct {
	ChunkDelay time.Duration
	log        *logrus.Logger
}

func NewSender(log *logrus.Logger) *Sender {
	return &Sender{ChunkDelay: DefaultChunkDelay, log: log}
}

// Send streams src to the peer behind ch, invoking onProgress after every
// chunk. It returns the generated file id once the local send loop is
// exhausted; delivery is assumed successful at that point.
func (s *Sender) Send(ctx context.Context, peerID string, ch Channel, src Source, onProgress func(Progress)) (string, error) {
	fileID := uuid.NewString()
	totalChunks := TotalChunksFor(src.Size, ChunkSize)

	meta, err := Encode(Message{
		Type:        MsgFileMetadata,
		FileID:      fileID,
		Name:        src.Name,
		Size:        src.Size,
		MimeType:    src.MimeType,
		TotalChunks: totalChunks,
	})
	if err != nil {
		return "", err
	}
	if err := ch.Send(meta); err != nil {
		return "", fmt.Errorf("failed to send file metadata: %w", err)
	}

	s.log.Infof("Sending %s (%d bytes, %d chunks) to peer %s", src.Name, src.Size, totalChunks, peerID)

	start := time.Now()
	var bytesSent int64

	for index := 0; index < totalChunks; index++ {
		chunk, err := ReadChunk(src.Reader, index, ChunkSize, src.Size)
		if err != nil {
			return "", fmt.Errorf("failed to read chunk %d: %w", index, err)
		}

		frame, err := Encode(Message{
			Type:        MsgFileChunk,
			FileID:      fileID,
			Index:       index,
			Data:        base64.StdEncoding.EncodeToString(chunk),
			TotalChunks: totalChunks,
		})
		if err != nil {
			return "", err
		}
		if err := ch.Send(frame); err != nil {
			return "", fmt.Errorf("failed to send chunk %d: %w", index, err)
		}

		bytesSent += int64(len(chunk))

		select {
		case <-time.After(s.ChunkDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		if onProgress != nil {
			onProgress(progressAt(fileID, peerID, DirectionSend, bytesSent, src.Size, time.Since(start)))
		}
	}

	s.log.Infof("Finished sending %s to peer %s in %s", src.Name, peerID, time.Since(start).Round(time.Millisecond))
	return fileID, nil
}
