package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/cluster-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_AssignmentForStudent_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM student_clusters WHERE student_id = \$1 AND course_id = \$2`).
		WithArgs("nobody", int64(101)).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.AssignmentForStudent(context.Background(), "nobody", 101)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CourseProgress_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM student_progress WHERE student_id = \$1 AND course_id = \$2`).
		WithArgs("nobody", int64(101)).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.CourseProgress(context.Background(), "nobody", 101)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceAssignments_DeletesThenInserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM student_clusters WHERE course_id = \$1`).
		WithArgs(int64(101)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO student_clusters`).
		WithArgs(
			pgxmock.AnyArg(), "s1", int64(101), "A", 0.9,
			85.0, 70.0, 75.0,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.ReplaceAssignments(context.Background(), 101, []model.ClusterAssignment{
		{
			StudentID:       "s1",
			ClusterLabel:    model.LabelA,
			ClusterScore:    0.9,
			AttendanceRate:  85,
			CompletionRate:  70,
			OverallProgress: 75,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceAssignments_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM student_clusters WHERE course_id = \$1`).
		WithArgs(int64(101)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.ReplaceAssignments(context.Background(), 101, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete assignments")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAlgorithmPerformance_Insert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM algorithm_performance WHERE algorithm_name = \$1 AND algorithm_params = \$2 FOR UPDATE`).
		WithArgs("kmeans", `{"n_clusters":3}`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO algorithm_performance`).
		WithArgs(
			pgxmock.AnyArg(), "kmeans", `{"n_clusters":3}`,
			0.4, 100.0, 0.31, 2.0, 10.0,
			0.2, 1,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpsertAlgorithmPerformance(context.Background(), "kmeans", `{"n_clusters":3}`, PerformanceSample{
		SilhouetteScore:       0.4,
		CalinskiHarabaszScore: 100,
		CombinedScore:         0.31,
		ProcessingTimeSeconds: 2.0,
		MemoryUsageMB:         10,
		ThresholdMet:          true,
		QualityThreshold:      0.2,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAlgorithmPerformance_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "avg_silhouette_score", "avg_calinski_harabasz_score", "avg_combined_score",
		"avg_processing_time", "avg_memory_usage", "total_runs", "threshold_met_count",
	}).AddRow("perf-1", 0.4, 100.0, 0.31, 2.0, 10.0, 1, 1)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM algorithm_performance .+ FOR UPDATE`).
		WithArgs("kmeans", `{"n_clusters":3}`).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE algorithm_performance SET`).
		WithArgs(
			0.5, 150.0, 0.31, 3.0, 10.0,
			2, 0.2, 2,
			pgxmock.AnyArg(), pgxmock.AnyArg(), "perf-1",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.UpsertAlgorithmPerformance(context.Background(), "kmeans", `{"n_clusters":3}`, PerformanceSample{
		SilhouetteScore:       0.6,
		CalinskiHarabaszScore: 200,
		CombinedScore:         0.31,
		ProcessingTimeSeconds: 4.0,
		MemoryUsageMB:         10,
		ThresholdMet:          true,
		QualityThreshold:      0.2,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveAlert_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE clustering_alerts SET resolved = true`).
		WithArgs(pgxmock.AnyArg(), "notes", "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT resolved FROM clustering_alerts WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.ResolveAlert(context.Background(), "missing-id", "notes")
	assert.ErrorIs(t, err, ErrAlertNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveAlert_AlreadyResolved(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE clustering_alerts SET resolved = true`).
		WithArgs(pgxmock.AnyArg(), "", "alert-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT resolved FROM clustering_alerts WHERE id = \$1`).
		WithArgs("alert-1").
		WillReturnRows(pgxmock.NewRows([]string{"resolved"}).AddRow(true))

	_, err := s.ResolveAlert(context.Background(), "alert-1", "")
	assert.ErrorIs(t, err, ErrAlertResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
