package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/cluster-cli/internal/clusterml"
	"github.com/edusight/cluster-cli/internal/config"
	"github.com/edusight/cluster-cli/internal/features"
	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/monitoring"
	"github.com/edusight/cluster-cli/internal/orchestrator"
	"github.com/edusight/cluster-cli/internal/store"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	monitor := monitoring.New(st, "")
	runner := clusterml.NewRunner(clusterml.DefaultParams())
	extractor := features.NewExtractor(st)
	orch := orchestrator.New(config.ClusterConfig{Concurrency: 1}, st, extractor, runner, monitor)
	return &env{Store: st, Monitor: monitor, Orch: orch}
}

func seedCourse(t *testing.T, st store.Store, courseID int64) {
	t.Helper()
	ctx := context.Background()
	bands := []struct {
		prefix          string
		att, comp, ov   float64
		completed, late int
	}{
		{"high", 90, 85, 88, 9, 0},
		{"mid", 55, 50, 52, 5, 2},
		{"low", 15, 10, 12, 1, 6},
	}
	for _, b := range bands {
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("%s-%d", b.prefix, i)
			off := float64(i)
			require.NoError(t, st.Enroll(ctx, courseID, id))
			require.NoError(t, st.UpsertProgress(ctx, model.CourseProgress{
				StudentID:       id,
				CourseID:        courseID,
				AttendanceRate:  b.att + off,
				CompletionRate:  b.comp + off,
				OverallProgress: b.ov + off,
				TaskCount:       10,
				CompletedTasks:  b.completed,
				LateSubmissions: b.late,
				AverageScore:    b.ov + off,
			}))
		}
	}
}

func TestRouterHealth(t *testing.T) {
	r := buildRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouterClusterCourseAndAssignments(t *testing.T) {
	e := newTestEnv(t)
	seedCourse(t, e.Store, 101)
	r := buildRouter(e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/101/cluster", bytes.NewReader([]byte(`{"import_job_id":"job-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var summary model.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 15, summary.ClusteredStudents)
	assert.Equal(t, model.RunStateDone, summary.State)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/courses/101/assignments", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var assignments []model.ClusterAssignment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &assignments))
	assert.Len(t, assignments, 15)
}

func TestRouterClusterCourseInvalidID(t *testing.T) {
	r := buildRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/abc/cluster", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid course ID")
}

func TestRouterStudentAssignmentNotFound(t *testing.T) {
	r := buildRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses/101/students/ghost", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterResolveAlertNotFound(t *testing.T) {
	r := buildRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/no-such-alert/resolve", bytes.NewReader([]byte(`{"notes":"checked"}`)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterThresholdsRoundTrip(t *testing.T) {
	r := buildRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/thresholds", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var current model.Thresholds
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &current))
	assert.Equal(t, 0.2, current.SilhouetteMin)

	current.SilhouetteMin = 0.25
	body, err := json.Marshal(current)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/thresholds", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var updated model.Thresholds
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, 0.25, updated.SilhouetteMin)
}

func TestRouterThresholdsRejectsInvalid(t *testing.T) {
	r := buildRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/thresholds", bytes.NewReader([]byte(`{"silhouette_min":2.0,"combined_min":0.3,"processing_time_max":300,"memory_usage_max":1000}`)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterQualityHistoryBadLookback(t *testing.T) {
	r := buildRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses/101/quality?lookback=yesterday", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid lookback duration")
}
