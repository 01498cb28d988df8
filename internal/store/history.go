package store

import (
	"time"

	"gorm.io/gorm"
)

// HistoryStore reads and writes completed transfer records.
type HistoryStore struct {
	DB *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{DB: db}
}

// Record inserts a completed transfer.
func (s *HistoryStore) Record(t Transfer) error {
	if t.ReceivedAt == 0 {
		t.ReceivedAt = time.Now().Unix()
	}
	return s.DB.Create(&t).Error
}

// List returns all transfers, newest first.
func (s *HistoryStore) List() ([]Transfer, error) {
	var transfers []Transfer
	err := s.DB.Order("received_at desc").Find(&transfers).Error
	return transfers, err
}

// FindByFileID returns the record for one transfer token.
func (s *HistoryStore) FindByFileID(fileID string) (Transfer, error) {
	var t Transfer
	err := s.DB.Where("file_id = ?", fileID).First(&t).Error
	return t, err
}
