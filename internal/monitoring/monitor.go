// Package monitoring records clustering quality metrics, maintains
// per-algorithm performance aggregates, and raises alerts when quality
// thresholds are breached.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/store"
)

// RunRecord is the monitoring payload produced by one clustering run.
type RunRecord struct {
	CourseID              int64
	Algorithm             string
	AlgorithmParams       string
	Quality               model.QualityMetrics
	TotalStudents         int
	ClusteredStudents     int
	ProcessingTimeSeconds float64
	MemoryUsageMB         float64
	ImportJobID           string
}

// Monitor persists quality history, aggregates algorithm performance, and
// evaluates alert rules after every run.
type Monitor struct {
	store  store.Store
	client *http.Client

	mu         sync.RWMutex
	thresholds model.Thresholds
	webhookURL string

	now func() time.Time
}

// New creates a Monitor with the default thresholds. webhookURL may be empty,
// in which case alerts are persisted but not delivered externally.
func New(st store.Store, webhookURL string) *Monitor {
	return &Monitor{
		store:      st,
		client:     &http.Client{Timeout: 10 * time.Second},
		thresholds: model.DefaultThresholds(),
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

// Record persists the run's quality metrics, folds them into the algorithm
// performance aggregate, and raises any threshold alerts. Alert evaluation
// failures are logged but do not fail the run.
func (m *Monitor) Record(ctx context.Context, rec RunRecord) error {
	thresholds := m.Thresholds()

	qr := &model.QualityRecord{
		CourseID:              rec.CourseID,
		AlgorithmUsed:         rec.Algorithm,
		AlgorithmParams:       rec.AlgorithmParams,
		SilhouetteScore:       rec.Quality.SilhouetteScore,
		CalinskiHarabaszScore: rec.Quality.CalinskiHarabaszScore,
		CombinedScore:         rec.Quality.CombinedScore,
		NClusters:             rec.Quality.NClusters,
		TotalStudents:         rec.TotalStudents,
		ClusteredStudents:     rec.ClusteredStudents,
		ProcessingTimeSeconds: rec.ProcessingTimeSeconds,
		MemoryUsageMB:         rec.MemoryUsageMB,
		ImportJobID:           rec.ImportJobID,
		CreatedAt:             m.now().UTC(),
	}
	if err := m.store.InsertQualityRecord(ctx, qr); err != nil {
		return eris.Wrap(err, "monitoring: record quality")
	}

	sample := store.PerformanceSample{
		SilhouetteScore:       rec.Quality.SilhouetteScore,
		CalinskiHarabaszScore: rec.Quality.CalinskiHarabaszScore,
		CombinedScore:         rec.Quality.CombinedScore,
		ProcessingTimeSeconds: rec.ProcessingTimeSeconds,
		MemoryUsageMB:         rec.MemoryUsageMB,
		ThresholdMet:          rec.Quality.SilhouetteScore >= thresholds.SilhouetteMin,
		QualityThreshold:      thresholds.SilhouetteMin,
	}
	if err := m.store.UpsertAlgorithmPerformance(ctx, rec.Algorithm, rec.AlgorithmParams, sample); err != nil {
		return eris.Wrap(err, "monitoring: record performance")
	}

	alerts := m.evaluate(rec, thresholds)
	if len(alerts) == 0 {
		return nil
	}

	inserted, err := m.store.InsertAlerts(ctx, alerts)
	if err != nil {
		zap.L().Error("monitoring: failed to persist alerts",
			zap.Int64("course_id", rec.CourseID),
			zap.Error(err),
		)
		return nil
	}
	m.sendAlerts(ctx, inserted)
	return nil
}

// evaluate applies the alert rules to one run's metrics.
func (m *Monitor) evaluate(rec RunRecord, t model.Thresholds) []model.Alert {
	var alerts []model.Alert
	now := m.now().UTC()

	if rec.Quality.SilhouetteScore < t.SilhouetteMin {
		level := model.AlertLevelWarning
		if rec.Quality.SilhouetteScore <= t.SilhouetteMin/2 {
			level = model.AlertLevelError
		}
		alerts = append(alerts, model.Alert{
			CourseID:   rec.CourseID,
			AlertType:  model.AlertQualityLow,
			AlertLevel: level,
			Message: fmt.Sprintf(
				"Silhouette score %.3f below threshold %.3f for course %d (algorithm %s)",
				rec.Quality.SilhouetteScore, t.SilhouetteMin, rec.CourseID, rec.Algorithm,
			),
			SilhouetteScore: rec.Quality.SilhouetteScore,
			CombinedScore:   rec.Quality.CombinedScore,
			Threshold:       t.SilhouetteMin,
			ImportJobID:     rec.ImportJobID,
			CreatedAt:       now,
		})
	}

	if rec.Quality.CombinedScore < t.CombinedMin {
		alerts = append(alerts, model.Alert{
			CourseID:   rec.CourseID,
			AlertType:  model.AlertCombinedQualityLow,
			AlertLevel: model.AlertLevelWarning,
			Message: fmt.Sprintf(
				"Combined quality score %.3f below threshold %.3f for course %d (algorithm %s)",
				rec.Quality.CombinedScore, t.CombinedMin, rec.CourseID, rec.Algorithm,
			),
			SilhouetteScore: rec.Quality.SilhouetteScore,
			CombinedScore:   rec.Quality.CombinedScore,
			Threshold:       t.CombinedMin,
			ImportJobID:     rec.ImportJobID,
			CreatedAt:       now,
		})
	}

	return alerts
}

// History returns the quality records for a course within the lookback window,
// newest first.
func (m *Monitor) History(ctx context.Context, courseID int64, lookback time.Duration) ([]model.QualityRecord, error) {
	since := m.now().UTC().Add(-lookback)
	recs, err := m.store.QualityHistory(ctx, courseID, since)
	return recs, eris.Wrap(err, "monitoring: quality history")
}

// ActiveAlerts returns unresolved alerts, optionally filtered by course.
func (m *Monitor) ActiveAlerts(ctx context.Context, courseID *int64) ([]model.Alert, error) {
	alerts, err := m.store.ActiveAlerts(ctx, courseID)
	return alerts, eris.Wrap(err, "monitoring: active alerts")
}

// ResolveAlert marks an alert resolved with the given notes. Resolving an
// already-resolved alert returns store.ErrAlertResolved.
func (m *Monitor) ResolveAlert(ctx context.Context, alertID, notes string) (*model.Alert, error) {
	return m.store.ResolveAlert(ctx, alertID, notes)
}

// Thresholds returns a copy of the current alert thresholds.
func (m *Monitor) Thresholds() model.Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// UpdateThresholds validates and installs new alert thresholds. On any
// invalid value the previous thresholds are kept and an error returned.
func (m *Monitor) UpdateThresholds(t model.Thresholds) error {
	if t.SilhouetteMin <= 0 || t.SilhouetteMin > 1 {
		return eris.Errorf("monitoring: silhouette_min must be in (0, 1], got %v", t.SilhouetteMin)
	}
	if t.CombinedMin <= 0 || t.CombinedMin > 1 {
		return eris.Errorf("monitoring: combined_min must be in (0, 1], got %v", t.CombinedMin)
	}
	if t.ProcessingTimeMax <= 0 {
		return eris.Errorf("monitoring: processing_time_max must be positive, got %v", t.ProcessingTimeMax)
	}
	if t.MemoryUsageMax <= 0 {
		return eris.Errorf("monitoring: memory_usage_max must be positive, got %v", t.MemoryUsageMax)
	}

	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
	return nil
}
