// Package audit records management actions against the tracking API: who
// did what to which resource, and whether it succeeded, was denied, or
// failed. Events are best-effort; an audit write failure never fails the
// request that produced it.
package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Event is one recorded management action.
type Event struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Actor      string    `gorm:"column:actor;index;not null" json:"actor"`
	Method     string    `gorm:"column:method;not null" json:"method"`
	Path       string    `gorm:"column:path;not null" json:"path"`
	Outcome    string    `gorm:"column:outcome;index;not null" json:"outcome"`
	StatusCode int       `gorm:"column:status_code;not null" json:"status_code"`
	RequestID  string    `gorm:"column:request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;index" json:"created_at"`
}

// TableName returns the GORM table name.
func (Event) TableName() string { return "audit_events" }

// Outcomes recorded per event.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
)

// Store persists audit events.
type Store struct {
	db *gorm.DB
}

// NewStore creates an audit Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Event{}); err != nil {
		return fmt.Errorf("auto-migrate audit table: %w", err)
	}
	return nil
}

// Append writes one event.
func (s *Store) Append(event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first. An actor filter of ""
// matches everyone.
func (s *Store) List(actor string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := s.db.Model(&Event{}).Order("id DESC").Limit(limit)
	if actor != "" {
		query = query.Where("actor = ?", actor)
	}
	var events []Event
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// DeleteOlderThan removes events created before the cutoff and reports how
// many were deleted.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&Event{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
