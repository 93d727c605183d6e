package rdb

import "time"

// PeerEntryRecord is the RDB persistence model for one peer store key.
// Table name: peer_entries
type PeerEntryRecord struct {
	Key       string    `gorm:"primaryKey;type:text;not null"`
	Value     string    `gorm:"type:text;not null"`
	Revision  int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (PeerEntryRecord) TableName() string { return "peer_entries" }
