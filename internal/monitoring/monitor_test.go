package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func runRecord(silhouette, combined float64) RunRecord {
	return RunRecord{
		CourseID:        101,
		Algorithm:       "kmeans",
		AlgorithmParams: `{"n_clusters":3}`,
		Quality: model.QualityMetrics{
			SilhouetteScore:       silhouette,
			CalinskiHarabaszScore: 100,
			CombinedScore:         combined,
			NClusters:             3,
		},
		TotalStudents:         30,
		ClusteredStudents:     30,
		ProcessingTimeSeconds: 1.2,
		MemoryUsageMB:         8,
	}
}

func TestRecordPersistsQualityAndPerformance(t *testing.T) {
	st := newTestStore(t)
	m := New(st, "")
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, runRecord(0.45, 0.4)))

	history, err := m.History(ctx, 101, time.Hour)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 0.45, history[0].SilhouetteScore, 1e-9)
	assert.Equal(t, 30, history[0].ClusteredStudents)

	perfs, err := st.ListAlgorithmPerformance(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, perfs, 1)
	assert.Equal(t, 1, perfs[0].TotalRuns)
	assert.Equal(t, 1, perfs[0].ThresholdMetCount)

	// Good quality raises nothing.
	alerts, err := m.ActiveAlerts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestRecordRaisesQualityLowAlert(t *testing.T) {
	st := newTestStore(t)
	m := New(st, "")
	ctx := context.Background()

	// Silhouette below its floor, combined above its own.
	require.NoError(t, m.Record(ctx, runRecord(0.15, 0.35)))

	alerts, err := m.ActiveAlerts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertQualityLow, alerts[0].AlertType)
	assert.Equal(t, model.AlertLevelWarning, alerts[0].AlertLevel)
	assert.InDelta(t, 0.15, alerts[0].SilhouetteScore, 1e-9)
	assert.InDelta(t, 0.2, alerts[0].Threshold, 1e-9)
}

func TestRecordEscalatesVeryLowSilhouette(t *testing.T) {
	st := newTestStore(t)
	m := New(st, "")
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, runRecord(0.05, 0.35)))

	alerts, err := m.ActiveAlerts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertLevelError, alerts[0].AlertLevel)
}

func TestRecordRaisesCombinedQualityAlert(t *testing.T) {
	st := newTestStore(t)
	m := New(st, "")
	ctx := context.Background()

	// Both thresholds breached raises both alert types.
	require.NoError(t, m.Record(ctx, runRecord(0.1, 0.1)))

	alerts, err := m.ActiveAlerts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	types := []model.AlertType{alerts[0].AlertType, alerts[1].AlertType}
	assert.ElementsMatch(t, []model.AlertType{model.AlertQualityLow, model.AlertCombinedQualityLow}, types)
}

func TestResolveAlertLifecycle(t *testing.T) {
	st := newTestStore(t)
	m := New(st, "")
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, runRecord(0.15, 0.35)))
	alerts, err := m.ActiveAlerts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	resolved, err := m.ResolveAlert(ctx, alerts[0].ID, "tuned parameters")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	_, err = m.ResolveAlert(ctx, alerts[0].ID, "again")
	assert.ErrorIs(t, err, store.ErrAlertResolved)
}

func TestUpdateThresholdsValidation(t *testing.T) {
	m := New(newTestStore(t), "")

	before := m.Thresholds()
	err := m.UpdateThresholds(model.Thresholds{
		SilhouetteMin:     1.5,
		CombinedMin:       0.3,
		ProcessingTimeMax: 300,
		MemoryUsageMax:    1000,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "silhouette_min")
	// A rejected update leaves the previous thresholds intact.
	assert.Equal(t, before, m.Thresholds())

	err = m.UpdateThresholds(model.Thresholds{
		SilhouetteMin:     0.25,
		CombinedMin:       0.35,
		ProcessingTimeMax: 120,
		MemoryUsageMax:    512,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, m.Thresholds().SilhouetteMin, 1e-9)
}

func TestWebhookDelivery(t *testing.T) {
	var received []model.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a model.Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		received = append(received, a)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := newTestStore(t)
	m := New(st, srv.URL)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, runRecord(0.15, 0.35)))

	require.Len(t, received, 1)
	assert.Equal(t, model.AlertQualityLow, received[0].AlertType)
	assert.NotEmpty(t, received[0].ID)
}

func TestWebhookFailureDoesNotFailRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := newTestStore(t)
	m := New(st, srv.URL)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, runRecord(0.15, 0.35)))

	// The alert is still persisted.
	alerts, err := m.ActiveAlerts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestSummary(t *testing.T) {
	st := newTestStore(t)
	m := New(st, "")
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, runRecord(0.45, 0.4)))
	require.NoError(t, m.Record(ctx, runRecord(0.15, 0.35)))

	summary, err := m.Summary(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, summary.Algorithms, 1)
	assert.Equal(t, 2, summary.TotalRuns)
	assert.Equal(t, 1, summary.ActiveAlerts)

	a := summary.Algorithms[0]
	assert.Equal(t, "kmeans", a.AlgorithmName)
	assert.InDelta(t, 1.0, a.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, a.ThresholdMetRate, 1e-9)
	assert.InDelta(t, 0.3, a.AvgSilhouetteScore, 1e-9)
}
