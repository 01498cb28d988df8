package transfer

import "time"

// Direction tells which side of a transfer a progress update describes.
type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

// Progress is emitted once per chunk on both sides.
type Progress struct {
	FileID         string
	PeerID         string
	Direction      Direction
	BytesDone      int64
	TotalBytes     int64
	Percent        float64
	BytesPerSecond float64
	ETA            time.Duration
}

// progressAt derives a Progress from byte counters and the elapsed time since
// the transfer started.
func progressAt(fileID, peerID string, dir Direction, done, total int64, elapsed time.Duration) Progress {
	p := Progress{
		FileID:     fileID,
		PeerID:     peerID,
		Direction:  dir,
		BytesDone:  done,
		TotalBytes: total,
	}
	if total > 0 {
		p.Percent = float64(done) / float64(total) * 100
	}
	if elapsed > 0 {
		p.BytesPerSecond = float64(done) / elapsed.Seconds()
	}
	if p.BytesPerSecond > 0 {
		remaining := float64(total - done)
		p.ETA = time.Duration(remaining / p.BytesPerSecond * float64(time.Second))
	}
	return p
}
