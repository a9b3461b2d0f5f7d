// Package planner turns a user request into one model call and dispatches the
// repaired output by shape: clarifying question, persisted draft plan, list of
// direct actions, or plain message.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/repair"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// maxItems bounds how many schedule items the model is asked for and how many are kept.
const maxItems = 60

// PlanCreator persists a new plan and returns its id.
type PlanCreator interface {
	CreatePlan(ctx context.Context, plan *models.ContentPlan) (uuid.UUID, error)
}

// Observer receives per-call outcomes; internal/metrics implements it.
type Observer interface {
	ObserveRepair(stage string)
	ObserveResponse(kind string)
}

type nopObserver struct{}

func (nopObserver) ObserveRepair(string)   {}
func (nopObserver) ObserveResponse(string) {}

// Request is one user turn.
type Request struct {
	Prompt   string
	Profile  models.Profile
	Platform string
	History  []models.Message
}

// Generator invokes the language model and persists generated plans.
type Generator struct {
	provider  models.LLMProvider
	plans     PlanCreator
	observer  Observer
	timeout   time.Duration
	maxTokens int
	now       func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithObserver reports repair stages and response kinds to o.
func WithObserver(o Observer) Option {
	return func(g *Generator) { g.observer = o }
}

// WithClock overrides the clock used for the prompt date and timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator. timeout bounds the single model call.
func NewGenerator(provider models.LLMProvider, plans PlanCreator, timeout time.Duration, maxTokens int, opts ...Option) *Generator {
	g := &Generator{
		provider:  provider,
		plans:     plans,
		observer:  nopObserver{},
		timeout:   timeout,
		maxTokens: maxTokens,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs one model call for req. Provider failures are returned as
// errors; unparseable output is not an error and comes back as a MessageResponse.
func (g *Generator) Generate(ctx context.Context, req Request) (Response, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	loc := profileLocation(req.Profile)
	system, err := renderSystem(promptVars{
		Today:    g.now().In(loc).Format("2006-01-02 (Monday)"),
		Profile:  req.Profile.Name,
		Platform: req.Platform,
		Timezone: loc.String(),
		MaxItems: maxItems,
	})
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: req.Prompt})

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.provider.Complete(callCtx, models.CompletionRequest{
		System:    system,
		Messages:  messages,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", g.provider.Name(), err)
	}

	resp, err := g.dispatch(ctx, raw, req)
	if err != nil {
		return nil, err
	}
	g.observer.ObserveResponse(string(resp.Kind()))
	return resp, nil
}

func (g *Generator) dispatch(ctx context.Context, raw string, req Request) (Response, error) {
	res, err := repair.Parse(raw)
	if err != nil {
		var pe *repair.ParseError
		if !errors.As(err, &pe) {
			return nil, err
		}
		g.observer.ObserveRepair("failed")
		slog.Warn("model output not parseable, returning as message",
			"provider", g.provider.Name(), "bytes", len(raw), "error", pe.Err)
		return &MessageResponse{Text: raw}, nil
	}
	g.observer.ObserveRepair(res.Stage.String())
	if res.Stage != repair.StageDirect {
		slog.Info("model output repaired", "provider", g.provider.Name(), "stage", res.Stage.String())
	}

	switch v := res.Value.(type) {
	case []any:
		return &ActionsResponse{Actions: decodeActions(v)}, nil
	case map[string]any:
		if q, ok := v["clarify"]; ok && q != nil {
			return decodeClarify(q), nil
		}
		if v["type"] == string(KindPlan) {
			return g.persistPlan(ctx, v, raw, req)
		}
		if steps, ok := v["actions"].([]any); ok {
			return &ActionsResponse{Actions: decodeActions(steps), Message: stringField(v, "message")}, nil
		}
		return &ActionsResponse{Actions: []Action{decodeAction(v)}}, nil
	default:
		return &MessageResponse{Text: raw}, nil
	}
}

func (g *Generator) persistPlan(ctx context.Context, v map[string]any, raw string, req Request) (Response, error) {
	items := decodeItems(v["schedule_items"])
	if len(items) == 0 {
		slog.Warn("model returned a content plan without items", "provider", g.provider.Name())
		return &MessageResponse{Text: raw}, nil
	}

	platform := stringField(v, "platform")
	if req.Platform != "" {
		platform = req.Platform
	}
	name := truncateString(stringField(v, "name"), 200)
	if name == "" {
		name = "Content plan " + g.now().In(profileLocation(req.Profile)).Format("2006-01-02")
	}
	brand, _ := v["brand_context"].(map[string]any)

	now := g.now().UTC()
	plan := &models.ContentPlan{
		ProfileID:    req.Profile.ID,
		Platform:     platform,
		Name:         name,
		Status:       models.PlanStatusDraft,
		BrandContext: brand,
		Items:        items,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := g.plans.CreatePlan(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("creating plan: %w", err)
	}
	plan.ID = id

	slog.Info("content plan created", "plan_id", id, "profile_id", req.Profile.ID, "items", len(items))
	return &PlanResponse{Plan: plan, Message: stringField(v, "message")}, nil
}

func profileLocation(p models.Profile) *time.Location {
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
