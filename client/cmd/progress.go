package cmd

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/unishare/unishare/internal/transfer"
)

// progressDisplay renders one progress bar per in-flight transfer.
type progressDisplay struct {
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newProgressDisplay() *progressDisplay {
	return &progressDisplay{bars: make(map[string]*progressbar.ProgressBar)}
}

func (d *progressDisplay) update(p transfer.Progress) {
	d.mu.Lock()
	bar, ok := d.bars[p.FileID]
	if !ok {
		label := "receiving"
		if p.Direction == transfer.DirectionSend {
			label = "sending"
		}
		bar = progressbar.DefaultBytes(p.TotalBytes, label)
		d.bars[p.FileID] = bar
	}
	d.mu.Unlock()

	_ = bar.Set64(p.BytesDone)
	if p.BytesDone >= p.TotalBytes {
		d.finish(p.FileID)
	}
}

func (d *progressDisplay) finish(fileID string) {
	d.mu.Lock()
	bar, ok := d.bars[fileID]
	if ok {
		delete(d.bars, fileID)
	}
	d.mu.Unlock()
	if ok {
		_ = bar.Finish()
		fmt.Println()
	}
}
