package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func GenerationStateKey(planID uuid.UUID, itemID string) string {
	return fmt.Sprintf("generation:%s:%s", planID, itemID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
