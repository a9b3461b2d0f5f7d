package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveRepair("direct")
	m.ObserveRepair("closed")
	m.ObserveRepair("closed")
	m.ObserveResponse("content_plan")
	m.ObserveGeneration("sync", "ready")
	m.ObservePoll("inconclusive", 40)
	m.ObservePushLive(2, 1)
	m.ObserveSweep(models.RecoverySweepResult{Tasks: 3, ScheduleItems: 1})
	m.ObserveHTTP(http.MethodPost, http.StatusCreated)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.repairStages.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repairStages.WithLabelValues("direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("content_plan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("sync", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues("inconclusive")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.posts.WithLabelValues("scheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.posts.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweeps.WithLabelValues("tasks")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sweeps.WithLabelValues("preview_jobs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "201")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveResponse("clarify")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `contentpilot_assistant_responses_total{kind="clarify"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveResponse("message")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.responses.WithLabelValues("message")))
}
