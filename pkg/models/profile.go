package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the publishing identity that owns content plans and API keys.
type Profile struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	Name           string    `db:"name"            json:"name"`
	PublishingUser string    `db:"publishing_user" json:"publishing_user"`
	Timezone       string    `db:"timezone"        json:"timezone"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}
