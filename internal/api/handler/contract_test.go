package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/ai"
	"github.com/kiranshivaraju/contentpilot/internal/api"
	"github.com/kiranshivaraju/contentpilot/internal/api/handler"
	mw "github.com/kiranshivaraju/contentpilot/internal/api/middleware"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/generation"
	"github.com/kiranshivaraju/contentpilot/internal/media"
	"github.com/kiranshivaraju/contentpilot/internal/planner"
	"github.com/kiranshivaraju/contentpilot/internal/poller"
	"github.com/kiranshivaraju/contentpilot/internal/pushlive"
	"github.com/kiranshivaraju/contentpilot/internal/store"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var (
	testProfileID  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	otherProfileID = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	testPlanID     = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
	foreignPlanID  = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")

	adminRawKey = "cp_admin_contract_key_1234567890"
	writeRawKey = "cp_write_contract_key_1234567890"
)

func hash(raw string) string {
	h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	return string(h)
}

func strPtr(s string) *string { return &s }

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	mu    sync.Mutex
	keys  []*models.APIKey
	plans map[uuid.UUID]*models.ContentPlan

	updateItemsFn func(planID uuid.UUID, items []models.ScheduleItem, opts ...store.PlanUpdateOption) (int, error)
	deleted       []string
}

func newMockStore() *mockStore {
	return &mockStore{
		keys: []*models.APIKey{
			{ID: uuid.New(), ProfileID: testProfileID, Name: "admin", KeyHash: hash(adminRawKey),
				KeyPrefix: adminRawKey[:8], Scopes: []string{"read", "write", "admin"}},
			{ID: uuid.New(), ProfileID: testProfileID, Name: "writer", KeyHash: hash(writeRawKey),
				KeyPrefix: writeRawKey[:8], Scopes: []string{"read", "write"}},
		},
		plans: map[uuid.UUID]*models.ContentPlan{
			testPlanID: {
				ID: testPlanID, ProfileID: testProfileID, Platform: "instagram", Name: "Spring launch",
				Status: models.PlanStatusDraft, Version: 3,
				Items: []models.ScheduleItem{
					{ID: "img", Date: "2024-03-04", Type: models.ContentTypeImage, Status: models.ItemStatusDraft},
					{ID: "vid", Date: "2024-03-05", Type: models.ContentTypeVideo, Status: models.ItemStatusReady,
						MediaURL: strPtr("https://cdn/old.mp4")},
				},
			},
			foreignPlanID: {ID: foreignPlanID, ProfileID: otherProfileID, Platform: "instagram"},
		},
	}
}

func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockStore) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	return &models.Profile{ID: id, Name: "Acme", Timezone: "UTC"}, nil
}

func (s *mockStore) GetPlan(_ context.Context, id uuid.UUID) (*models.ContentPlan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *mockStore) ListPlansByProfile(_ context.Context, profileID uuid.UUID) ([]*models.ContentPlan, error) {
	var out []*models.ContentPlan
	for _, p := range s.plans {
		if p.ProfileID == profileID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateItems(_ context.Context, planID uuid.UUID, items []models.ScheduleItem, opts ...store.PlanUpdateOption) (int, error) {
	if s.updateItemsFn != nil {
		return s.updateItemsFn(planID, items, opts...)
	}
	return s.plans[planID].Version + 1, nil
}

func (s *mockStore) DeletePlans(_ context.Context, _ uuid.UUID, platforms []string) (int64, error) {
	s.deleted = append(s.deleted, platforms...)
	return int64(len(platforms)), nil
}

func (s *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Name == key.Name && k.ProfileID == key.ProfileID {
			return store.ErrDuplicateKey
		}
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *mockStore) ListAPIKeys(_ context.Context, profileID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.ProfileID == profileID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) RevokeAPIKey(_ context.Context, id uuid.UUID, profileID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id && k.ProfileID == profileID {
			return nil
		}
	}
	return store.ErrNotFound
}

// ─── mock services ───────────────────────────────────────────────────────────

type mockAssistant struct {
	fn func(req planner.Request) (planner.Response, error)
}

func (m *mockAssistant) Generate(_ context.Context, req planner.Request) (planner.Response, error) {
	return m.fn(req)
}

type mockGenerator struct {
	fn func(planID uuid.UUID, itemID string) (*generation.Result, error)
}

func (m *mockGenerator) Generate(_ context.Context, planID uuid.UUID, itemID string) (*generation.Result, error) {
	return m.fn(planID, itemID)
}

type mockWatcher struct {
	active    []poller.WatchInfo
	watchErr  error
	baselines []string
	cancelled []string
}

func (m *mockWatcher) Watch(planID uuid.UUID, itemID, baseline string) (poller.WatchInfo, error) {
	m.baselines = append(m.baselines, baseline)
	if m.watchErr != nil {
		return poller.WatchInfo{}, m.watchErr
	}
	info := poller.WatchInfo{PlanID: planID, ItemID: itemID, Baseline: baseline, StartedAt: time.Now()}
	m.active = append(m.active, info)
	return info, nil
}

func (m *mockWatcher) Cancel(planID uuid.UUID, itemID string) bool {
	for i, info := range m.active {
		if info.PlanID == planID && info.ItemID == itemID {
			m.active = append(m.active[:i], m.active[i+1:]...)
			m.cancelled = append(m.cancelled, itemID)
			return true
		}
	}
	return false
}

func (m *mockWatcher) Active() []poller.WatchInfo { return m.active }

type mockStates struct {
	state *models.GenerationState
}

func (m *mockStates) GetGenerationState(_ context.Context, _ uuid.UUID, _ string) (*models.GenerationState, bool, error) {
	return m.state, m.state != nil, nil
}

type mockPushLiver struct {
	fn func(planID uuid.UUID) (*pushlive.Result, error)
}

func (m *mockPushLiver) PushLive(_ context.Context, planID uuid.UUID) (*pushlive.Result, error) {
	return m.fn(planID)
}

type mockSweeper struct {
	fn func() (models.RecoverySweepResult, error)
}

func (m *mockSweeper) Sweep(_ context.Context) (models.RecoverySweepResult, error) { return m.fn() }

type stubCounter struct{}

func (stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// ─── harness ─────────────────────────────────────────────────────────────────

type harness struct {
	store     *mockStore
	assistant *mockAssistant
	gen       *mockGenerator
	watcher   *mockWatcher
	states    *mockStates
	push      *mockPushLiver
	sweeper   *mockSweeper
	router    http.Handler
}

func newHarness() *harness {
	h := &harness{
		store: newMockStore(),
		assistant: &mockAssistant{fn: func(planner.Request) (planner.Response, error) {
			return &planner.MessageResponse{Text: "hi"}, nil
		}},
		gen: &mockGenerator{fn: func(uuid.UUID, string) (*generation.Result, error) {
			return nil, errors.New("not configured")
		}},
		watcher: &mockWatcher{},
		states:  &mockStates{},
		push: &mockPushLiver{fn: func(planID uuid.UUID) (*pushlive.Result, error) {
			return &pushlive.Result{PlanID: planID, Failures: []pushlive.Failure{}}, nil
		}},
		sweeper: &mockSweeper{fn: func() (models.RecoverySweepResult, error) {
			return models.RecoverySweepResult{}, nil
		}},
	}
	h.router = api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(h.store),
		RateLimit: mw.NewRateLimit(stubCounter{}, 1000),

		AssistantHandler:    handler.NewAssistantHandler(h.assistant, h.store),
		ListPlansHandler:    handler.NewListPlansHandler(h.store),
		GetPlanHandler:      handler.NewGetPlanHandler(h.store),
		ReplaceItemsHandler: handler.NewReplaceItemsHandler(h.store),
		ResetPlansHandler:   handler.NewResetPlansHandler(h.store),
		GenerateHandler:     handler.NewGenerateHandler(h.store, h.gen, h.watcher),
		WatchStatusHandler:  handler.NewWatchStatusHandler(h.store, h.watcher, h.states),
		WatchStartHandler:   handler.NewWatchStartHandler(h.store, h.watcher),
		WatchCancelHandler:  handler.NewWatchCancelHandler(h.store, h.watcher),
		PushLiveHandler:     handler.NewPushLiveHandler(h.store, h.push),
		PurgeHandler:        handler.NewPurgeHandler(h.sweeper),
		CreateKeyHandler:    handler.NewCreateKeyHandler(h.store),
		ListKeysHandler:     handler.NewListKeysHandler(h.store),
		RevokeKeyHandler:    handler.NewRevokeKeyHandler(h.store),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, rawKey string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+rawKey)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}

func planPath(id uuid.UUID, suffix string) string {
	return fmt.Sprintf("/api/v1/plans/%s%s", id, suffix)
}

// ─── assistant ───────────────────────────────────────────────────────────────

func TestAssistant_PlanIsCreated(t *testing.T) {
	h := newHarness()
	var got planner.Request
	h.assistant.fn = func(req planner.Request) (planner.Response, error) {
		got = req
		return &planner.PlanResponse{Plan: h.store.plans[testPlanID], Message: "Here is your plan"}, nil
	}

	w := h.do(t, "POST", "/api/v1/assistant", map[string]any{
		"prompt":   "  a week of posts  ",
		"platform": "Instagram",
		"history":  []map[string]string{{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}},
	}, writeRawKey)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := data(t, w)
	assert.Equal(t, "content_plan", d["kind"])
	assert.NotNil(t, d["plan"])
	assert.Nil(t, d["message"])

	assert.Equal(t, "a week of posts", got.Prompt)
	assert.Equal(t, "instagram", got.Platform)
	assert.Equal(t, testProfileID, got.Profile.ID)
	assert.Len(t, got.History, 2)
}

func TestAssistant_VariantsMapToKinds(t *testing.T) {
	cases := []struct {
		resp planner.Response
		kind string
		key  string
	}{
		{&planner.ClarifyResponse{Question: "Which week?"}, "clarify", "clarify"},
		{&planner.ActionsResponse{Actions: []planner.Action{{Name: "create_post"}}}, "actions", "actions"},
		{&planner.MessageResponse{Text: "plain"}, "message", "message"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			h := newHarness()
			h.assistant.fn = func(planner.Request) (planner.Response, error) { return tc.resp, nil }

			w := h.do(t, "POST", "/api/v1/assistant", map[string]any{"prompt": "x", "platform": "tiktok"}, writeRawKey)
			require.Equal(t, http.StatusOK, w.Code)
			d := data(t, w)
			assert.Equal(t, tc.kind, d["kind"])
			assert.NotNil(t, d[tc.key])
		})
	}
}

func TestAssistant_Validation(t *testing.T) {
	h := newHarness()
	bodies := []map[string]any{
		{"platform": "instagram"},
		{"prompt": "   ", "platform": "instagram"},
		{"prompt": "x"},
		{"prompt": "x", "platform": "instagram", "history": []map[string]string{{"role": "system", "content": "y"}}},
	}
	for i, b := range bodies {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			w := h.do(t, "POST", "/api/v1/assistant", b, writeRawKey)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
		})
	}
}

func TestAssistant_ProviderErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("ollama completion: %w", ai.ErrProviderUnavailable), http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE"},
		{fmt.Errorf("ollama completion: %w", ai.ErrInferenceTimeout), http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := newHarness()
			h.assistant.fn = func(planner.Request) (planner.Response, error) { return nil, tc.err }

			w := h.do(t, "POST", "/api/v1/assistant", map[string]any{"prompt": "x", "platform": "x"}, writeRawKey)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errCode(t, w))
		})
	}
}

// ─── plans ───────────────────────────────────────────────────────────────────

func TestPlans_ListOnlyOwn(t *testing.T) {
	h := newHarness()

	w := h.do(t, "GET", "/api/v1/plans", nil, writeRawKey)
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data []models.ContentPlan `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, testPlanID, env.Data[0].ID)
	assert.Equal(t, 1, env.Meta.Total)

	w = h.do(t, "GET", "/api/v1/plans?platform=tiktok", nil, writeRawKey)
	var filtered struct {
		Data []models.ContentPlan `json:"data"`
		Meta response.ListMeta    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	assert.Empty(t, filtered.Data)
	assert.Equal(t, 0, filtered.Meta.Total)
	assert.Equal(t, "tiktok", filtered.Meta.Filters["platform"])
}

func TestPlans_Get(t *testing.T) {
	h := newHarness()

	w := h.do(t, "GET", planPath(testPlanID, ""), nil, writeRawKey)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Equal(t, "Spring launch", d["name"])
	assert.Len(t, d["schedule_items"], 2)

	w = h.do(t, "GET", planPath(foreignPlanID, ""), nil, writeRawKey)
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign plans are hidden")

	w = h.do(t, "GET", planPath(uuid.New(), ""), nil, writeRawKey)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, "GET", "/api/v1/plans/not-a-uuid", nil, writeRawKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlans_ReplaceItems(t *testing.T) {
	h := newHarness()
	var gotItems []models.ScheduleItem
	var gotOpts int
	h.store.updateItemsFn = func(_ uuid.UUID, items []models.ScheduleItem, opts ...store.PlanUpdateOption) (int, error) {
		gotItems, gotOpts = items, len(opts)
		return 4, nil
	}

	items := []models.ScheduleItem{
		{ID: "b", Date: "2024-03-05", Type: "text", Status: "draft"},
		{ID: "a", Date: "2024-03-04", Type: "text", Status: "draft"},
	}
	w := h.do(t, "PUT", planPath(testPlanID, "/items"), map[string]any{
		"schedule_items": items, "expected_version": 3,
	}, writeRawKey)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(4), data(t, w)["version"])
	require.Len(t, gotItems, 2)
	assert.Equal(t, "b", gotItems[0].ID, "order is preserved")
	assert.Equal(t, 1, gotOpts)
}

func TestPlans_ReplaceItemsErrors(t *testing.T) {
	h := newHarness()
	items := []models.ScheduleItem{{ID: "a", Type: "text", Status: "draft"}}

	h.store.updateItemsFn = func(uuid.UUID, []models.ScheduleItem, ...store.PlanUpdateOption) (int, error) {
		return 0, store.ErrVersionConflict
	}
	w := h.do(t, "PUT", planPath(testPlanID, "/items"), map[string]any{"schedule_items": items, "expected_version": 1}, writeRawKey)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "VERSION_CONFLICT", errCode(t, w))

	h.store.updateItemsFn = func(uuid.UUID, []models.ScheduleItem, ...store.PlanUpdateOption) (int, error) {
		return 0, fmt.Errorf("item a: %w", store.ErrInvalidTransition)
	}
	w = h.do(t, "PUT", planPath(testPlanID, "/items"), map[string]any{"schedule_items": items}, writeRawKey)
	assert.Equal(t, "INVALID_TRANSITION", errCode(t, w))

	w = h.do(t, "PUT", planPath(testPlanID, "/items"), map[string]any{"schedule_items": []any{}}, writeRawKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	dup := append(items, items[0])
	w = h.do(t, "PUT", planPath(testPlanID, "/items"), map[string]any{"schedule_items": dup}, writeRawKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlans_Reset(t *testing.T) {
	h := newHarness()

	w := h.do(t, "DELETE", "/api/v1/plans", nil, writeRawKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, "DELETE", "/api/v1/plans?platform=instagram&platform=tiktok", nil, writeRawKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), data(t, w)["deleted"])
	assert.Equal(t, []string{"instagram", "tiktok"}, h.store.deleted)
}

// ─── generation & watch ──────────────────────────────────────────────────────

func TestGenerate_Sync(t *testing.T) {
	h := newHarness()
	h.gen.fn = func(_ uuid.UUID, itemID string) (*generation.Result, error) {
		return &generation.Result{Mode: generation.ModeSync, Status: models.ItemStatusReady,
			Item: &models.ScheduleItem{ID: itemID, Status: models.ItemStatusReady}}, nil
	}

	w := h.do(t, "POST", planPath(testPlanID, "/items/img/generate"), nil, writeRawKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := data(t, w)
	assert.Equal(t, "sync", d["mode"])
	assert.Equal(t, "ready", d["status"])
	assert.Nil(t, d["watch"])
	assert.Empty(t, h.watcher.baselines)
}

func TestGenerate_AsyncStartsWatch(t *testing.T) {
	h := newHarness()
	h.gen.fn = func(uuid.UUID, string) (*generation.Result, error) {
		return &generation.Result{Mode: generation.ModeAsync, Status: models.ItemStatusGenerating,
			Submitted: true, Baseline: "https://cdn/old.mp4"}, nil
	}

	w := h.do(t, "POST", planPath(testPlanID, "/items/vid/generate"), nil, writeRawKey)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	d := data(t, w)
	assert.Equal(t, true, d["submitted"])
	require.NotNil(t, d["watch"])
	assert.Equal(t, []string{"https://cdn/old.mp4"}, h.watcher.baselines)
}

func TestGenerate_AsyncAlreadyWatching(t *testing.T) {
	h := newHarness()
	h.watcher.active = []poller.WatchInfo{{PlanID: testPlanID, ItemID: "vid", Baseline: "first"}}
	h.watcher.watchErr = poller.ErrAlreadyWatching
	h.gen.fn = func(uuid.UUID, string) (*generation.Result, error) {
		return &generation.Result{Mode: generation.ModeAsync, Submitted: true, Baseline: "second"}, nil
	}

	w := h.do(t, "POST", planPath(testPlanID, "/items/vid/generate"), nil, writeRawKey)
	require.Equal(t, http.StatusAccepted, w.Code)
	watch := data(t, w)["watch"].(map[string]any)
	assert.Equal(t, "first", watch["baseline_media_url"])
}

func TestGenerate_Errors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("generate: %w", media.ErrProviderUnavailable), http.StatusBadGateway, "MEDIA_PROVIDER_UNAVAILABLE"},
		{fmt.Errorf("generate: %w", media.ErrTimeout), http.StatusGatewayTimeout, "MEDIA_PROVIDER_TIMEOUT"},
		{store.ErrItemNotFound, http.StatusNotFound, "ITEM_NOT_FOUND"},
		{fmt.Errorf("mark generating: %w", store.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := newHarness()
			h.gen.fn = func(uuid.UUID, string) (*generation.Result, error) { return nil, tc.err }

			w := h.do(t, "POST", planPath(testPlanID, "/items/img/generate"), nil, writeRawKey)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errCode(t, w))
		})
	}
}

func TestGenerate_ForeignPlan(t *testing.T) {
	h := newHarness()
	called := false
	h.gen.fn = func(uuid.UUID, string) (*generation.Result, error) {
		called = true
		return nil, nil
	}

	w := h.do(t, "POST", planPath(foreignPlanID, "/items/img/generate"), nil, writeRawKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, called)
}

func TestWatch_Status(t *testing.T) {
	h := newHarness()
	h.watcher.active = []poller.WatchInfo{{PlanID: testPlanID, ItemID: "vid", Baseline: "https://cdn/old.mp4"}}
	h.states.state = &models.GenerationState{PlanID: testPlanID.String(), ItemID: "vid", Status: "generating", RequestID: "req-1"}

	w := h.do(t, "GET", planPath(testPlanID, "/items/vid/watch"), nil, writeRawKey)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Equal(t, true, d["watching"])
	assert.Equal(t, "req-1", d["state"].(map[string]any)["request_id"])
	assert.Equal(t, "vid", d["item"].(map[string]any)["id"])

	w = h.do(t, "GET", planPath(testPlanID, "/items/nope/watch"), nil, writeRawKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWatch_StartDefaultsToCurrentMedia(t *testing.T) {
	h := newHarness()

	w := h.do(t, "POST", planPath(testPlanID, "/items/vid/watch"), nil, writeRawKey)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, []string{"https://cdn/old.mp4"}, h.watcher.baselines)

	h.watcher.active = nil
	w = h.do(t, "POST", planPath(testPlanID, "/items/vid/watch"), map[string]any{"baseline_media_url": ""}, writeRawKey)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "", h.watcher.baselines[1])

	h.watcher.watchErr = poller.ErrAlreadyWatching
	w = h.do(t, "POST", planPath(testPlanID, "/items/vid/watch"), nil, writeRawKey)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWatch_Cancel(t *testing.T) {
	h := newHarness()

	w := h.do(t, "DELETE", planPath(testPlanID, "/items/vid/watch"), nil, writeRawKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "WATCH_NOT_FOUND", errCode(t, w))

	h.watcher.active = []poller.WatchInfo{{PlanID: testPlanID, ItemID: "vid"}}
	w = h.do(t, "DELETE", planPath(testPlanID, "/items/vid/watch"), nil, writeRawKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"vid"}, h.watcher.cancelled)
}

// ─── push-live ───────────────────────────────────────────────────────────────

func TestPushLive_ReportsPartialFailure(t *testing.T) {
	h := newHarness()
	h.push.fn = func(planID uuid.UUID) (*pushlive.Result, error) {
		return &pushlive.Result{PlanID: planID, CalendarEntries: 3, PostsScheduled: 2, PostsFailed: 1,
			Failures: []pushlive.Failure{{ItemID: "vid", Reason: "video item has no media"}}}, nil
	}

	w := h.do(t, "POST", planPath(testPlanID, "/push-live"), nil, writeRawKey)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Equal(t, float64(3), d["calendar_entries"])
	assert.Equal(t, float64(2), d["posts_scheduled"])
	assert.Equal(t, float64(1), d["posts_failed"])
	assert.Len(t, d["failures"], 1)
}

func TestPushLive_AlreadyLive(t *testing.T) {
	h := newHarness()
	h.push.fn = func(uuid.UUID) (*pushlive.Result, error) {
		return nil, fmt.Errorf("set plan live: %w", store.ErrInvalidTransition)
	}

	w := h.do(t, "POST", planPath(testPlanID, "/push-live"), nil, writeRawKey)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", errCode(t, w))
}

// ─── admin ───────────────────────────────────────────────────────────────────

func TestPurge_RequiresAdmin(t *testing.T) {
	h := newHarness()

	w := h.do(t, "POST", "/api/v1/admin/purge", nil, writeRawKey)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errCode(t, w))
}

func TestPurge(t *testing.T) {
	h := newHarness()
	h.sweeper.fn = func() (models.RecoverySweepResult, error) {
		return models.RecoverySweepResult{Tasks: 1, PreviewJobs: 2, ScheduleItems: 3}, nil
	}

	w := h.do(t, "POST", "/api/v1/admin/purge", nil, adminRawKey)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Equal(t, float64(3), d["schedule_items"])
	assert.Equal(t, float64(6), d["total"])
}

func TestPurge_PartialFailure(t *testing.T) {
	h := newHarness()
	h.sweeper.fn = func() (models.RecoverySweepResult, error) {
		return models.RecoverySweepResult{Tasks: 4}, errors.New("fail in-flight preview jobs: timeout")
	}

	w := h.do(t, "POST", "/api/v1/admin/purge", nil, adminRawKey)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "SWEEP_INCOMPLETE", env.Error.Code)
	assert.Equal(t, float64(4), env.Error.Details["tasks"])
}

func TestKeys_CreateListRevoke(t *testing.T) {
	h := newHarness()

	w := h.do(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "ci", "scopes": []string{"read"}}, adminRawKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := data(t, w)
	raw := d["key"].(string)
	assert.True(t, strings.HasPrefix(raw, "cp_"))
	id := d["id"].(string)

	// the new key authenticates
	w = h.do(t, "GET", "/api/v1/plans", nil, raw)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, "GET", "/api/v1/admin/keys", nil, adminRawKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "key_hash")
	assert.NotContains(t, w.Body.String(), raw)

	w = h.do(t, "DELETE", "/api/v1/admin/keys/"+id, nil, adminRawKey)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, "DELETE", "/api/v1/admin/keys/"+uuid.NewString(), nil, adminRawKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKeys_CreateValidation(t *testing.T) {
	h := newHarness()

	w := h.do(t, "POST", "/api/v1/admin/keys", map[string]any{"name": ""}, adminRawKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "x", "scopes": []string{"root"}}, adminRawKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "admin"}, adminRawKey)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_KEY", errCode(t, w))
}
