package models

import (
	"time"

	"github.com/google/uuid"
)

// CalendarEvent is a calendar-visible entry created when a plan goes live.
type CalendarEvent struct {
	ID          uuid.UUID `db:"id"          json:"id"`
	ProfileID   uuid.UUID `db:"profile_id"  json:"profile_id"`
	Title       string    `db:"title"       json:"title"`
	Description string    `db:"description" json:"description"`
	StartTime   time.Time `db:"start_time"  json:"start_time"`
	EndTime     time.Time `db:"end_time"    json:"end_time"`
	Source      string    `db:"source"      json:"source"`
	SourceID    string    `db:"source_id"   json:"source_id"`
	Category    string    `db:"category"    json:"category"`
	Color       string    `db:"color"       json:"color"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
}
