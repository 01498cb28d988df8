// Package store persists the transfer history: one row per completed inbound
// transfer, listable from the CLI.
package store

import (
	"gorm.io/gorm"

	"github.com/glebarez/sqlite"
)

// Transfer records one completed inbound file transfer.
type Transfer struct {
	ID         uint `gorm:"primaryKey"`
	FileID     string
	Name       string
	MimeType   string
	Size       int64
	PeerID     string
	PeerName   string
	Path       string
	ReceivedAt int64
}

// NewDB opens (or creates) the history database at path and migrates the
// schema. Use ":memory:" for an ephemeral database.
func NewDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Transfer{}); err != nil {
		return nil, err
	}
	return db, nil
}
