package transfer

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// Source is the byte source of an outbound transfer: random access reads plus
// the metadata announced to the receiver.
type Source struct {
	Reader   io.ReaderAt
	Name     string
	Size     int64
	MimeType string
}

// FileSource builds a Source over a file on disk. The caller owns the
// returned *os.File and must close it after the transfer.
func FileSource(path string) (Source, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Source{}, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return Source{
		Reader:   f,
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MimeType: mimeType,
	}, f, nil
}

// ReadChunk reads the chunk at index from r. Every chunk is chunkSize bytes
// except the last, which holds the remainder of totalSize.
func ReadChunk(r io.ReaderAt, index int, chunkSize, totalSize int64) ([]byte, error) {
	offset := int64(index) * chunkSize
	if offset >= totalSize {
		return nil, fmt.Errorf("chunk %d starts beyond end of source", index)
	}

	size := chunkSize
	if offset+size > totalSize {
		size = totalSize - offset
	}

	data := make([]byte, size)
	n, err := r.ReadAt(data, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) != size {
		return nil, fmt.Errorf("short read for chunk %d: got %d of %d bytes", index, n, size)
	}
	return data, nil
}
