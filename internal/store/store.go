// Package store persists cluster assignments, quality metrics, algorithm
// performance aggregates and alerts behind a backend-neutral interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/edusight/cluster-cli/internal/model"
)

// Errors returned by alert operations.
var (
	ErrAlertNotFound = eris.New("alert not found")
	ErrAlertResolved = eris.New("alert already resolved")
)

// PerformanceSample is one run's contribution to an algorithm's
// performance aggregate.
type PerformanceSample struct {
	SilhouetteScore       float64
	CalinskiHarabaszScore float64
	CombinedScore         float64
	ProcessingTimeSeconds float64
	MemoryUsageMB         float64
	ThresholdMet          bool
	QualityThreshold      float64
}

// Store defines the persistence interface for the clustering pipeline.
type Store interface {
	// Assignments. ReplaceAssignments deletes all existing rows for the
	// course and inserts the new set in a single transaction, stamping
	// ids and timestamps at save time.
	ReplaceAssignments(ctx context.Context, courseID int64, assignments []model.ClusterAssignment) (int, error)
	AssignmentsForCourse(ctx context.Context, courseID int64) ([]model.ClusterAssignment, error)
	AssignmentForStudent(ctx context.Context, studentID string, courseID int64) (*model.ClusterAssignment, error)

	// Quality metrics, append-only.
	InsertQualityRecord(ctx context.Context, rec *model.QualityRecord) error
	QualityHistory(ctx context.Context, courseID int64, since time.Time) ([]model.QualityRecord, error)
	ListQualityRecords(ctx context.Context, since time.Time) ([]model.QualityRecord, error)

	// Per-(algorithm, params) performance aggregates. The upsert applies
	// the online-mean update under a row-level lock so concurrent writers
	// cannot lose updates.
	UpsertAlgorithmPerformance(ctx context.Context, algorithmName, paramsJSON string, sample PerformanceSample) error
	ListAlgorithmPerformance(ctx context.Context, since time.Time) ([]model.AlgorithmPerformance, error)

	// Alerts. InsertAlerts stamps ids and creation times and returns the
	// stored rows. ResolveAlert returns ErrAlertNotFound for unknown ids
	// and ErrAlertResolved when called on an already-resolved alert.
	InsertAlerts(ctx context.Context, alerts []model.Alert) ([]model.Alert, error)
	ActiveAlerts(ctx context.Context, courseID *int64) ([]model.Alert, error)
	ResolveAlert(ctx context.Context, alertID, notes string) (*model.Alert, error)

	// Progress aggregates and enrollment, maintained by the import
	// subsystem and read by feature extraction.
	UpsertProgress(ctx context.Context, p model.CourseProgress) error
	CourseProgress(ctx context.Context, studentID string, courseID int64) (*model.CourseProgress, error)
	Enroll(ctx context.Context, courseID int64, studentID string) error
	ListCourses(ctx context.Context) ([]int64, error)
	ListStudents(ctx context.Context, courseID int64) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// onlineMean folds one sample into a running average over n prior values.
func onlineMean(oldAvg float64, oldN int, value float64) float64 {
	return (oldAvg*float64(oldN) + value) / float64(oldN+1)
}
