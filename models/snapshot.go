package models

import "time"

// Snapshot records one ingested catalog publication. Sequence order follows
// the publication date, which is not necessarily the order the files were
// discovered on disk.
type Snapshot struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Sequence   int       `json:"sequence" gorm:"uniqueIndex;not null"`
	SourceID   string    `json:"source_id" gorm:"uniqueIndex;not null"` // file name of the publication
	ObservedAt time.Time `json:"observed_at"`
}

// TableName sets the explicit table name for GORM.
func (Snapshot) TableName() string {
	return "snapshots"
}
