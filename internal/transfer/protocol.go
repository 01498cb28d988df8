// Package transfer implements the chunked file-transfer protocol that runs
// over an open data channel: a file-metadata frame followed by base64-encoded
// file-chunk frames, all JSON text because control and payload share the one
// channel.
package transfer

import (
	"encoding/json"
	"fmt"
)

// ChunkSize is the fixed payload size of one file-chunk frame. The final
// chunk of a file may be shorter.
const ChunkSize = 16 * 1024

const (
	MsgFileMetadata = "file-metadata"
	MsgFileChunk    = "file-chunk"
)

// Message is the envelope for both frame types. Metadata frames carry Name,
// Size and MimeType; chunk frames carry Index and Data. TotalChunks appears
// on both so a receiver can sanity-check chunk frames against the announced
// count.
type Message struct {
	Type        string `json:"type"`
	FileID      string `json:"fileId"`
	Name        string `json:"name,omitempty"`
	Size        int64  `json:"size,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	TotalChunks int    `json:"totalChunks"`
	Index       int    `json:"index"`
	Data        string `json:"data,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode transfer message: %w", err)
	}
	if msg.FileID == "" {
		return Message{}, fmt.Errorf("transfer message missing fileId")
	}
	switch msg.Type {
	case MsgFileMetadata, MsgFileChunk:
	default:
		return Message{}, fmt.Errorf("unknown transfer message type %q", msg.Type)
	}
	if msg.Type == MsgFileChunk && (msg.Index < 0 || msg.Index >= msg.TotalChunks) {
		return Message{}, fmt.Errorf("chunk index %d out of range [0,%d)", msg.Index, msg.TotalChunks)
	}
	return msg, nil
}

// TotalChunksFor returns ceil(size/chunkSize).
func TotalChunksFor(size, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}
