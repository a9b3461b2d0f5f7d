package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskStatusQueued     = "queued"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	PreviewStatusPending   = "pending"
	PreviewStatusBuilding  = "building"
	PreviewStatusReady     = "ready"
	PreviewStatusFailed    = "failed"
	PreviewStatusCancelled = "cancelled"
)

// Task is an entry in the generic task queue owned by other subsystems.
// ContentPilot only ever fails stuck tasks during a recovery sweep.
type Task struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	ProfileID    *uuid.UUID `db:"profile_id"    json:"profile_id,omitempty"`
	Kind         string     `db:"kind"          json:"kind"`
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// PreviewJob is a generic preview/build job owned by other subsystems.
type PreviewJob struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// RecoverySweepResult counts the jobs forced into failed, per subsystem.
// It is a return value only and is never persisted.
type RecoverySweepResult struct {
	Tasks         int64 `json:"tasks"`
	PreviewJobs   int64 `json:"preview_jobs"`
	ScheduleItems int64 `json:"schedule_items"`
}

// Total returns the number of affected jobs across all subsystems.
func (r RecoverySweepResult) Total() int64 {
	return r.Tasks + r.PreviewJobs + r.ScheduleItems
}
