// Package pushlive promotes a draft plan to live: it flips the plan status,
// writes calendar entries and schedules every publishable item.
package pushlive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/events"
	"github.com/kiranshivaraju/contentpilot/internal/publish"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

const (
	// CalendarSource tags calendar events created from plans.
	CalendarSource = "content_plan"

	defaultPostHour = 12
	eventDuration   = 30 * time.Minute
	maxTitleRunes   = 80
)

var typeColors = map[string]string{
	models.ContentTypeImage:    "#4f46e5",
	models.ContentTypeVideo:    "#dc2626",
	models.ContentTypeCarousel: "#0891b2",
	models.ContentTypeText:     "#6b7280",
}

// Store is the slice of the data layer push-live needs.
type Store interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.ContentPlan, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	UpdatePlanStatus(ctx context.Context, planID uuid.UUID, status string) error
	InsertCalendarEvents(ctx context.Context, events []models.CalendarEvent) (int64, error)
}

// Observer receives aggregate counts; internal/metrics implements it.
type Observer interface {
	ObservePushLive(scheduled, failed int)
}

type nopObserver struct{}

func (nopObserver) ObservePushLive(int, int) {}

// Failure explains why one item was not scheduled.
type Failure struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// Result aggregates one push-live run. Partial failures are reported here, not as an error.
type Result struct {
	PlanID          uuid.UUID `json:"plan_id"`
	CalendarEntries int64     `json:"calendar_entries"`
	CalendarError   string    `json:"calendar_error,omitempty"`
	PostsScheduled  int       `json:"posts_scheduled"`
	PostsFailed     int       `json:"posts_failed"`
	Failures        []Failure `json:"failures"`
}

// Service runs push-live.
type Service struct {
	store     Store
	publisher publish.Client
	events    events.Publisher
	observer  Observer
	defaultTZ string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithDefaultTimezone is used when the profile has no valid timezone.
func WithDefaultTimezone(tz string) Option {
	return func(s *Service) { s.defaultTZ = tz }
}

// WithClock replaces time.Now; the push-live day is the fallback for items
// whose date cannot be read.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(st Store, pc publish.Client, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: pc,
		events:    events.NoopPublisher{},
		observer:  nopObserver{},
		defaultTZ: "UTC",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PushLive sets the plan live, then best-effort writes calendar entries and
// schedules posts in item order. Only the status write aborts the run.
func (s *Service) PushLive(ctx context.Context, planID uuid.UUID) (*Result, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	profile, err := s.store.GetProfile(ctx, plan.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	tz, loc := s.location(profile)

	if err := s.store.UpdatePlanStatus(ctx, planID, models.PlanStatusLive); err != nil {
		return nil, fmt.Errorf("set plan live: %w", err)
	}

	res := &Result{PlanID: planID, Failures: []Failure{}}

	today := s.now()
	slots := make([]time.Time, len(plan.Items))
	for i := range plan.Items {
		slots[i] = scheduledAt(&plan.Items[i], loc, today)
	}

	entries := calendarEvents(plan, slots)
	n, err := s.store.InsertCalendarEvents(ctx, entries)
	if err != nil {
		slog.Error("failed to insert calendar events", "plan_id", planID, "count", len(entries), "error", err)
		res.CalendarError = err.Error()
	} else {
		res.CalendarEntries = n
	}

	user := profile.PublishingUser
	if user == "" {
		user = profile.Name
	}

	for i := range plan.Items {
		item := &plan.Items[i]
		if err := s.schedule(ctx, plan, item, user, tz, slots[i]); err != nil {
			res.PostsFailed++
			res.Failures = append(res.Failures, Failure{ItemID: item.ID, Reason: err.Error()})
			slog.Warn("post not scheduled", "plan_id", planID, "item_id", item.ID, "error", err)
			continue
		}
		res.PostsScheduled++
	}

	s.observer.ObservePushLive(res.PostsScheduled, res.PostsFailed)
	ev := events.PlanEvent{
		PlanID:         planID.String(),
		Status:         models.PlanStatusLive,
		CalendarEvents: res.CalendarEntries,
		PostsScheduled: res.PostsScheduled,
		PostsFailed:    res.PostsFailed,
		At:             time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, events.TopicPlanLive, ev); err != nil {
		slog.Warn("failed to publish plan event", "plan_id", planID, "error", err)
	}

	slog.Info("plan pushed live", "plan_id", planID,
		"calendar_entries", res.CalendarEntries, "scheduled", res.PostsScheduled, "failed", res.PostsFailed)
	return res, nil
}

func (s *Service) schedule(ctx context.Context, plan *models.ContentPlan, item *models.ScheduleItem, user, tz string, at time.Time) error {
	if item.NeedsMedia() && !item.HasMedia() {
		return fmt.Errorf("%s item has no media", item.Type)
	}

	post := publish.Post{
		User:        user,
		Kind:        postKind(item.Type),
		Platforms:   []string{plan.Platform},
		Title:       postText(item),
		ScheduledAt: at,
		Timezone:    tz,
	}
	if item.MediaURL != nil {
		post.MediaURL = *item.MediaURL
	}
	if len(item.MediaURLs) > 0 {
		post.MediaURLs = item.MediaURLs
		if post.MediaURL == "" {
			post.MediaURL = item.MediaURLs[0]
		}
	}

	if _, err := s.publisher.Schedule(ctx, post); err != nil {
		return fmt.Errorf("schedule post: %w", err)
	}
	return nil
}

func (s *Service) location(p *models.Profile) (string, *time.Location) {
	for _, tz := range []string{p.Timezone, s.defaultTZ} {
		if tz == "" {
			continue
		}
		if loc, err := time.LoadLocation(tz); err == nil {
			return tz, loc
		}
	}
	return "UTC", time.UTC
}

// calendarEvents builds one entry per item, including items that will not be
// published. slots[i] is the start of plan.Items[i].
func calendarEvents(plan *models.ContentPlan, slots []time.Time) []models.CalendarEvent {
	out := make([]models.CalendarEvent, 0, len(plan.Items))
	for i := range plan.Items {
		item := &plan.Items[i]
		start := slots[i]
		out = append(out, models.CalendarEvent{
			ID:          uuid.New(),
			ProfileID:   plan.ProfileID,
			Title:       title(item),
			Description: postText(item),
			StartTime:   start,
			EndTime:     start.Add(eventDuration),
			Source:      CalendarSource,
			SourceID:    plan.ID.String() + ":" + item.ID,
			Category:    plan.Platform,
			Color:       typeColors[item.Type],
		})
	}
	return out
}

// scheduledAt places the item in loc. A missing or unreadable time means noon;
// an unreadable date means today, the push-live day in loc.
func scheduledAt(item *models.ScheduleItem, loc *time.Location, today time.Time) time.Time {
	y, mo, d := today.In(loc).Date()
	if date, ok := models.ParsePostDate(item.Date); ok {
		y, mo, d = date.Date()
	} else {
		slog.Warn("unreadable item date, using push-live day", "item_id", item.ID, "date", item.Date)
	}

	h, mi := defaultPostHour, 0
	if hour, minute, ok := models.ParsePostTime(item.Time); ok {
		h, mi = hour, minute
	} else if strings.TrimSpace(item.Time) != "" {
		slog.Warn("unreadable item time, using noon", "item_id", item.ID, "time", item.Time)
	}
	return time.Date(y, mo, d, h, mi, 0, 0, loc)
}

func postKind(contentType string) string {
	switch contentType {
	case models.ContentTypeVideo:
		return publish.KindVideo
	case models.ContentTypeImage, models.ContentTypeCarousel:
		return publish.KindPhotos
	default:
		return publish.KindText
	}
}

// postText is the caption followed by its hashtags.
func postText(item *models.ScheduleItem) string {
	if len(item.Hashtags) == 0 {
		return item.Caption
	}
	return strings.TrimSpace(item.Caption + "\n\n" + strings.Join(item.Hashtags, " "))
}

func title(item *models.ScheduleItem) string {
	line, _, _ := strings.Cut(strings.TrimSpace(item.Caption), "\n")
	if line == "" {
		return "Scheduled " + item.Type + " post"
	}
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	runes := []rune(line)
	return string(runes[:maxTitleRunes-3]) + "..."
}
