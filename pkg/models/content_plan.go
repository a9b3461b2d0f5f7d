package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	PlanStatusDraft     = "draft"
	PlanStatusLive      = "live"
	PlanStatusCompleted = "completed"
)

const (
	ItemStatusDraft      = "draft"
	ItemStatusPlanned    = "planned"
	ItemStatusGenerating = "generating"
	ItemStatusReady      = "ready"
	ItemStatusPublished  = "published"
	ItemStatusFailed     = "failed"
)

const (
	ContentTypeImage    = "image"
	ContentTypeVideo    = "video"
	ContentTypeText     = "text"
	ContentTypeCarousel = "carousel"
)

// ContentPlan is a named, dated batch of to-be-published posts for one profile and platform.
// Items are in publish order; the plan exclusively owns them.
type ContentPlan struct {
	ID           uuid.UUID      `db:"id"            json:"id"`
	ProfileID    uuid.UUID      `db:"profile_id"    json:"profile_id"`
	Platform     string         `db:"platform"      json:"platform"`
	Name         string         `db:"name"          json:"name"`
	Status       string         `db:"status"        json:"status"`
	BrandContext map[string]any `db:"brand_context" json:"brand_context,omitempty"`
	Items        []ScheduleItem `db:"-"             json:"schedule_items"`
	Version      int            `db:"version"       json:"version"`
	CreatedAt    time.Time      `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"    json:"updated_at"`
}

// ScheduleItem is one post within a plan.
type ScheduleItem struct {
	ID                  string   `db:"id"                    json:"id"`
	Date                string   `db:"post_date"             json:"date"`
	Time                string   `db:"post_time"             json:"time,omitempty"`
	Type                string   `db:"content_type"          json:"type"`
	Caption             string   `db:"caption"               json:"caption"`
	Hashtags            []string `db:"hashtags"              json:"hashtags"`
	MediaPrompt         *string  `db:"media_prompt"          json:"media_prompt,omitempty"`
	MediaURL            *string  `db:"media_url"             json:"media_url"`
	MediaURLs           []string `db:"media_urls"            json:"media_urls,omitempty"`
	Status              string   `db:"status"                json:"status"`
	ErrorMessage        *string  `db:"error_message"         json:"error_message,omitempty"`
	GenerationRequestID *string  `db:"generation_request_id" json:"generation_request_id,omitempty"`
}

// FindItem returns a pointer into p.Items for the given id, or nil.
func (p *ContentPlan) FindItem(id string) *ScheduleItem {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i]
		}
	}
	return nil
}

// HasMedia reports whether the item carries at least one media URL.
func (it *ScheduleItem) HasMedia() bool {
	if it.MediaURL != nil && *it.MediaURL != "" {
		return true
	}
	return len(it.MediaURLs) > 0
}

// NeedsMedia reports whether the item's content type requires media to publish.
func (it *ScheduleItem) NeedsMedia() bool {
	return it.Type != ContentTypeText
}

// Validate checks the invariants that hold for every persisted item.
func (it *ScheduleItem) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("schedule item: id is required")
	}
	if !ValidContentType(it.Type) {
		return fmt.Errorf("schedule item %s: invalid content type %q", it.ID, it.Type)
	}
	if !validItemStatuses[it.Status] {
		return fmt.Errorf("schedule item %s: invalid status %q", it.ID, it.Status)
	}
	if (it.Status == ItemStatusReady || it.Status == ItemStatusPublished) && it.NeedsMedia() && !it.HasMedia() {
		return fmt.Errorf("schedule item %s: status %s requires a media url", it.ID, it.Status)
	}
	return nil
}

// ValidContentType reports whether t is a known content type.
func ValidContentType(t string) bool {
	switch t {
	case ContentTypeImage, ContentTypeVideo, ContentTypeText, ContentTypeCarousel:
		return true
	}
	return false
}

var validItemStatuses = map[string]bool{
	ItemStatusDraft:      true,
	ItemStatusPlanned:    true,
	ItemStatusGenerating: true,
	ItemStatusReady:      true,
	ItemStatusPublished:  true,
	ItemStatusFailed:     true,
}

var itemTransitions = map[string][]string{
	ItemStatusDraft:      {ItemStatusGenerating, ItemStatusPlanned},
	ItemStatusPlanned:    {ItemStatusGenerating, ItemStatusDraft},
	ItemStatusGenerating: {ItemStatusGenerating, ItemStatusReady, ItemStatusFailed},
	ItemStatusReady:      {ItemStatusGenerating, ItemStatusPublished, ItemStatusDraft},
	ItemStatusFailed:     {ItemStatusGenerating, ItemStatusDraft},
}

var planTransitions = map[string][]string{
	PlanStatusDraft: {PlanStatusLive},
	PlanStatusLive:  {PlanStatusCompleted},
}

// CanTransitionItem reports whether an item may move from one status to another.
// ready and failed are only reachable from generating.
func CanTransitionItem(from, to string) bool {
	return contains(itemTransitions[from], to)
}

// CanTransitionPlan reports whether a plan may move from one status to another.
func CanTransitionPlan(from, to string) bool {
	return contains(planTransitions[from], to)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
