package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sl-indications/models"
)

// Registry assigns snapshot sequence numbers and resolves sequences back to
// release dates. Sequence assignment happens at discovery time, in release
// date order; every temporal operation downstream depends on that order.
type Registry struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewRegistry creates a new snapshot registry.
func NewRegistry(db *gorm.DB, logger *zap.Logger) *Registry {
	return &Registry{DB: db, Logger: logger}
}

// ErrOutOfOrder is returned when a snapshot would be registered with an
// observation date earlier than an already registered one.
var ErrOutOfOrder = errors.New("snapshot observed_at earlier than an already registered snapshot")

// Register records one snapshot and returns its row. Registering the same
// source twice returns the existing row unchanged. A snapshot older than the
// newest registered one is rejected; the caller must sort before
// registering.
func (r *Registry) Register(sourceID string, observedAt time.Time) (*models.Snapshot, error) {
	var existing models.Snapshot
	err := r.DB.Where("source_id = ?", sourceID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up snapshot %s: %w", sourceID, err)
	}

	var last models.Snapshot
	err = r.DB.Order("sequence desc").First(&last).Error
	nextSeq := 1
	if err == nil {
		if observedAt.Before(last.ObservedAt) {
			return nil, fmt.Errorf("%w: %s (%s) after %s (%s)", ErrOutOfOrder,
				sourceID, observedAt.Format("2006-01-02"),
				last.SourceID, last.ObservedAt.Format("2006-01-02"))
		}
		nextSeq = last.Sequence + 1
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading last snapshot: %w", err)
	}

	snap := models.Snapshot{Sequence: nextSeq, SourceID: sourceID, ObservedAt: observedAt}
	if err := r.DB.Create(&snap).Error; err != nil {
		return nil, fmt.Errorf("registering snapshot %s: %w", sourceID, err)
	}
	r.Logger.Info("Snapshot registered",
		zap.String("source", sourceID),
		zap.Int("sequence", nextSeq),
		zap.Time("observed_at", observedAt))
	return &snap, nil
}

// DateFor resolves a sequence number to its release date.
func (r *Registry) DateFor(sequence int) (time.Time, error) {
	var snap models.Snapshot
	if err := r.DB.Where("sequence = ?", sequence).First(&snap).Error; err != nil {
		return time.Time{}, fmt.Errorf("no snapshot with sequence %d: %w", sequence, err)
	}
	return snap.ObservedAt, nil
}

// DateMap loads the full sequence → release date lookup in one query.
func (r *Registry) DateMap() (map[int]time.Time, error) {
	var snaps []models.Snapshot
	if err := r.DB.Find(&snaps).Error; err != nil {
		return nil, err
	}
	m := make(map[int]time.Time, len(snaps))
	for _, s := range snaps {
		m[s.Sequence] = s.ObservedAt
	}
	return m, nil
}
