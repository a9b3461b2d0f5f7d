package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

type recordingCache struct {
	mu     sync.Mutex
	states []models.GenerationState
}

func (c *recordingCache) SetGenerationState(_ context.Context, s models.GenerationState, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, s)
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObservePoll(outcome string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

// --- Helpers ---

func generatingReader() *mockReader {
	return &mockReader{getFn: func(int) (*models.ScheduleItem, error) {
		return videoItem(models.ItemStatusGenerating, ""), nil
	}}
}

func resultChan() (chan Result, CoordinatorOption) {
	ch := make(chan Result, 4)
	return ch, WithResultHandler(func(_ WatchInfo, r Result) { ch <- r })
}

func waitResult(t *testing.T, ch chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not finish")
		return Result{}
	}
}

// --- Coordinator ---

func TestCoordinator_WatchReportsOutcome(t *testing.T) {
	r := &mockReader{getFn: func(call int) (*models.ScheduleItem, error) {
		if call == 2 {
			return videoItem(models.ItemStatusReady, "https://cdn/new.mp4"), nil
		}
		return videoItem(models.ItemStatusGenerating, ""), nil
	}}
	pub, cache, obs := &recordingPublisher{}, &recordingCache{}, &recordingObserver{}
	ch, onResult := resultChan()
	c := NewCoordinator(New(r, fast, 40), WithPublisher(pub), WithCache(cache), WithObserver(obs), onResult)

	planID := uuid.New()
	info, err := c.Watch(planID, "vid", "")
	require.NoError(t, err)
	assert.Equal(t, planID, info.PlanID)

	res := waitResult(t, ch)
	assert.Equal(t, OutcomeReady, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, c.Active())

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, []string{"generation.watch"}, pub.topics)
	assert.Equal(t, []string{"ready"}, obs.outcomes)
	require.Len(t, cache.states, 1)
	assert.Equal(t, models.ItemStatusReady, cache.states[0].Status)
	assert.Equal(t, "ready", cache.states[0].Outcome)
}

func TestCoordinator_DuplicateWatchRefused(t *testing.T) {
	ch, onResult := resultChan()
	c := NewCoordinator(New(generatingReader(), time.Hour, 40), onResult)
	planID := uuid.New()

	_, err := c.Watch(planID, "vid", "")
	require.NoError(t, err)
	_, err = c.Watch(planID, "vid", "")
	assert.ErrorIs(t, err, ErrAlreadyWatching)

	// A different item on the same plan runs independently.
	_, err = c.Watch(planID, "other", "")
	require.NoError(t, err)
	assert.Len(t, c.Active(), 2)

	assert.True(t, c.Cancel(planID, "vid"))
	res := waitResult(t, ch)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.False(t, c.Cancel(planID, "vid"))

	// Once finished the item can be watched again.
	_, err = c.Watch(planID, "vid", "")
	require.NoError(t, err)

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestCoordinator_ShutdownStopsAll(t *testing.T) {
	ch, onResult := resultChan()
	c := NewCoordinator(New(generatingReader(), time.Hour, 40), onResult)

	for _, id := range []string{"a", "b", "c"} {
		_, err := c.Watch(uuid.New(), id, "")
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	for i := 0; i < 3; i++ {
		assert.Equal(t, OutcomeCancelled, waitResult(t, ch).Outcome)
	}
	assert.Empty(t, c.Active())

	_, err := c.Watch(uuid.New(), "late", "")
	assert.ErrorIs(t, err, ErrShuttingDown)
}
