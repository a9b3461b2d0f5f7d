package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrItemNotFound = errors.New("schedule item not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidItem = errors.New("invalid schedule item")
var ErrInvalidTransition = errors.New("invalid status transition")
var ErrVersionConflict = errors.New("plan version conflict")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetDefaultProfile(ctx context.Context) (*models.Profile, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, profileID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, profileID uuid.UUID) error

	CreatePlan(ctx context.Context, plan *models.ContentPlan) (uuid.UUID, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.ContentPlan, error)
	GetItem(ctx context.Context, planID uuid.UUID, itemID string) (*models.ScheduleItem, error)
	ListPlansByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.ContentPlan, error)
	UpdateItems(ctx context.Context, planID uuid.UUID, items []models.ScheduleItem, opts ...PlanUpdateOption) (int, error)
	UpdateItemStatus(ctx context.Context, planID uuid.UUID, itemID string, status string, opts ...ItemUpdateOption) (*models.ScheduleItem, error)
	UpdatePlanStatus(ctx context.Context, planID uuid.UUID, status string) error
	DeletePlans(ctx context.Context, profileID uuid.UUID, platforms []string) (int64, error)

	InsertCalendarEvents(ctx context.Context, events []models.CalendarEvent) (int64, error)

	FailInFlightTasks(ctx context.Context, reason string) (int64, error)
	FailInFlightPreviewJobs(ctx context.Context, reason string) (int64, error)
	FailGeneratingItems(ctx context.Context, reason string) (int64, error)
}

type planUpdateParams struct {
	ExpectedVersion *int
}

// PlanUpdateOption configures UpdateItems.
type PlanUpdateOption func(*planUpdateParams)

// WithExpectedVersion makes UpdateItems fail with ErrVersionConflict unless the
// plan is still at version v. Without it the replace is last-writer-wins.
func WithExpectedVersion(v int) PlanUpdateOption {
	return func(p *planUpdateParams) {
		p.ExpectedVersion = &v
	}
}

type itemUpdateParams struct {
	MediaURLs      []string
	ErrorMessage   *string
	RequestID      *string
	ClearRequestID bool
}

// ItemUpdateOption configures UpdateItemStatus.
type ItemUpdateOption func(*itemUpdateParams)

// WithMediaURLs sets the item's media. The first URL becomes media_url; the
// full list is kept in media_urls when there is more than one.
func WithMediaURLs(urls ...string) ItemUpdateOption {
	return func(p *itemUpdateParams) {
		p.MediaURLs = urls
	}
}

// WithErrorMessage records msg on the item. Without it the error is cleared.
func WithErrorMessage(msg string) ItemUpdateOption {
	return func(p *itemUpdateParams) {
		p.ErrorMessage = &msg
	}
}

// WithRequestID records the external generation request id.
func WithRequestID(id string) ItemUpdateOption {
	return func(p *itemUpdateParams) {
		p.RequestID = &id
	}
}

// ClearRequestID removes any recorded generation request id.
func ClearRequestID() ItemUpdateOption {
	return func(p *itemUpdateParams) {
		p.ClearRequestID = true
	}
}

// ApplyItemUpdate moves item to status with opts applied and checks the result
// against the item invariants. The transition itself is not checked.
func ApplyItemUpdate(item *models.ScheduleItem, status string, opts ...ItemUpdateOption) error {
	params := &itemUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	item.Status = status
	item.ErrorMessage = params.ErrorMessage
	if params.MediaURLs != nil {
		item.MediaURL, item.MediaURLs = nil, nil
		if len(params.MediaURLs) > 0 {
			first := params.MediaURLs[0]
			item.MediaURL = &first
		}
		if len(params.MediaURLs) > 1 {
			item.MediaURLs = params.MediaURLs
		}
	}
	if params.RequestID != nil {
		item.GenerationRequestID = params.RequestID
	}
	if params.ClearRequestID {
		item.GenerationRequestID = nil
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}
