package models

import "time"

// GenerationState is the advisory, cache-mirrored view of an item's in-flight generation.
// The schedule item row remains the source of truth.
type GenerationState struct {
	PlanID    string    `json:"plan_id"`
	ItemID    string    `json:"item_id"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
