package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"delete_course_assignments": `DELETE FROM student_clusters WHERE course_id = $1`,
	"get_student_assignment":    `SELECT ` + assignmentColumns + ` FROM student_clusters WHERE student_id = $1 AND course_id = $2`,
	"get_student_progress":      `SELECT student_id, course_id, attendance_rate, completion_rate, overall_progress, task_count, completed_tasks, late_submissions, average_score, updated_at FROM student_progress WHERE student_id = $1 AND course_id = $2`,
	"list_course_students":      `SELECT student_id FROM course_enrollments WHERE course_id = $1 ORDER BY student_id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS student_clusters (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	student_id       TEXT NOT NULL,
	course_id        BIGINT NOT NULL,
	cluster_label    TEXT NOT NULL,
	cluster_score    DOUBLE PRECISION NOT NULL,
	attendance_rate  DOUBLE PRECISION NOT NULL,
	completion_rate  DOUBLE PRECISION NOT NULL,
	overall_progress DOUBLE PRECISION NOT NULL,
	ml_metadata      JSONB,
	import_job_id    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS clustering_quality_metrics (
	id                      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	course_id               BIGINT NOT NULL,
	algorithm_used          TEXT NOT NULL,
	algorithm_params        TEXT NOT NULL,
	silhouette_score        DOUBLE PRECISION NOT NULL,
	calinski_harabasz_score DOUBLE PRECISION NOT NULL,
	combined_score          DOUBLE PRECISION NOT NULL,
	n_clusters              INTEGER NOT NULL,
	total_students          INTEGER NOT NULL,
	clustered_students      INTEGER NOT NULL,
	processing_time_seconds DOUBLE PRECISION NOT NULL,
	memory_usage_mb         DOUBLE PRECISION NOT NULL,
	import_job_id           TEXT,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS algorithm_performance (
	id                          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	algorithm_name              TEXT NOT NULL,
	algorithm_params            TEXT NOT NULL,
	avg_silhouette_score        DOUBLE PRECISION NOT NULL,
	avg_calinski_harabasz_score DOUBLE PRECISION NOT NULL,
	avg_combined_score          DOUBLE PRECISION NOT NULL,
	avg_processing_time         DOUBLE PRECISION NOT NULL,
	avg_memory_usage            DOUBLE PRECISION NOT NULL,
	total_runs                  INTEGER NOT NULL DEFAULT 0,
	successful_runs             INTEGER NOT NULL DEFAULT 0,
	failed_runs                 INTEGER NOT NULL DEFAULT 0,
	quality_threshold           DOUBLE PRECISION NOT NULL,
	threshold_met_count         INTEGER NOT NULL DEFAULT 0,
	first_used                  TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (algorithm_name, algorithm_params)
);

CREATE TABLE IF NOT EXISTS clustering_alerts (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	course_id        BIGINT NOT NULL,
	alert_type       TEXT NOT NULL,
	alert_level      TEXT NOT NULL,
	message          TEXT NOT NULL,
	details          TEXT,
	silhouette_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	combined_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	threshold        DOUBLE PRECISION NOT NULL DEFAULT 0,
	resolved         BOOLEAN NOT NULL DEFAULT false,
	resolved_at      TIMESTAMPTZ,
	resolution_notes TEXT,
	import_job_id    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS student_progress (
	student_id       TEXT NOT NULL,
	course_id        BIGINT NOT NULL,
	attendance_rate  DOUBLE PRECISION NOT NULL,
	completion_rate  DOUBLE PRECISION NOT NULL,
	overall_progress DOUBLE PRECISION NOT NULL,
	task_count       INTEGER NOT NULL,
	completed_tasks  INTEGER NOT NULL,
	late_submissions INTEGER NOT NULL,
	average_score    DOUBLE PRECISION NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS course_enrollments (
	course_id  BIGINT NOT NULL,
	student_id TEXT NOT NULL,
	PRIMARY KEY (course_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_student_clusters_course ON student_clusters(course_id);
CREATE INDEX IF NOT EXISTS idx_student_clusters_import_job ON student_clusters(import_job_id);
CREATE INDEX IF NOT EXISTS idx_quality_metrics_course_created ON clustering_quality_metrics(course_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_quality_metrics_algorithm_created ON clustering_quality_metrics(algorithm_used, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_algorithm_performance_updated ON algorithm_performance(algorithm_name, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_course ON clustering_alerts(course_id);
CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON clustering_alerts(resolved, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_enrollments_student ON course_enrollments(student_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// retrySerialization retries on serialization failures and deadlocks, which
// concurrent batch runs can trigger on the aggregate tables.
var retrySerialization = resilience.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 25 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	Multiplier:     2.0,
	JitterFraction: 0.25,
	ShouldRetry: func(err error) bool {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return pgErr.Code == "40001" || pgErr.Code == "40P01"
		}
		return false
	},
}

func (s *PostgresStore) ReplaceAssignments(ctx context.Context, courseID int64, assignments []model.ClusterAssignment) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin replace assignments")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM student_clusters WHERE course_id = $1`, courseID,
	); err != nil {
		return 0, eris.Wrapf(err, "postgres: delete assignments for course %d", courseID)
	}

	now := time.Now().UTC()
	for i := range assignments {
		a := &assignments[i]
		a.ID = uuid.New().String()
		a.CourseID = courseID
		a.CreatedAt = now
		a.UpdatedAt = now

		metadataJSON, err := marshalMetadata(a.MLMetadata)
		if err != nil {
			return 0, err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO student_clusters
			 (id, student_id, course_id, cluster_label, cluster_score, attendance_rate, completion_rate, overall_progress, ml_metadata, import_job_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			a.ID, a.StudentID, a.CourseID, string(a.ClusterLabel), a.ClusterScore,
			a.AttendanceRate, a.CompletionRate, a.OverallProgress,
			metadataJSON, nullString(a.ImportJobID), a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "postgres: insert assignment for student %s", a.StudentID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit replace assignments")
	}
	return len(assignments), nil
}

func (s *PostgresStore) AssignmentsForCourse(ctx context.Context, courseID int64) ([]model.ClusterAssignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM student_clusters WHERE course_id = $1 ORDER BY cluster_label, student_id`,
		courseID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: assignments for course %d", courseID)
	}
	defer rows.Close()

	var out []model.ClusterAssignment
	for rows.Next() {
		a, err := scanAssignmentPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: assignments iterate")
}

func (s *PostgresStore) AssignmentForStudent(ctx context.Context, studentID string, courseID int64) (*model.ClusterAssignment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM student_clusters WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	)
	a, err := scanAssignmentPG(row)
	if err == errNoRow {
		return nil, nil
	}
	return a, err
}

func (s *PostgresStore) InsertQualityRecord(ctx context.Context, rec *model.QualityRecord) error {
	rec.ID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO clustering_quality_metrics
		 (id, course_id, algorithm_used, algorithm_params, silhouette_score, calinski_harabasz_score, combined_score, n_clusters, total_students, clustered_students, processing_time_seconds, memory_usage_mb, import_job_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.CourseID, rec.AlgorithmUsed, rec.AlgorithmParams,
		rec.SilhouetteScore, rec.CalinskiHarabaszScore, rec.CombinedScore,
		rec.NClusters, rec.TotalStudents, rec.ClusteredStudents,
		rec.ProcessingTimeSeconds, rec.MemoryUsageMB,
		nullString(rec.ImportJobID), rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert quality record")
}

func (s *PostgresStore) QualityHistory(ctx context.Context, courseID int64, since time.Time) ([]model.QualityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+qualityColumns+` FROM clustering_quality_metrics
		 WHERE course_id = $1 AND created_at >= $2 ORDER BY created_at DESC`,
		courseID, since,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: quality history for course %d", courseID)
	}
	defer rows.Close()
	return collectQualityRecordsPG(rows)
}

func (s *PostgresStore) ListQualityRecords(ctx context.Context, since time.Time) ([]model.QualityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+qualityColumns+` FROM clustering_quality_metrics
		 WHERE created_at >= $1 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quality records")
	}
	defer rows.Close()
	return collectQualityRecordsPG(rows)
}

func (s *PostgresStore) UpsertAlgorithmPerformance(ctx context.Context, algorithmName, paramsJSON string, sample PerformanceSample) error {
	return resilience.Do(ctx, retrySerialization, func(ctx context.Context) error {
		return s.upsertPerformanceOnce(ctx, algorithmName, paramsJSON, sample)
	})
}

func (s *PostgresStore) upsertPerformanceOnce(ctx context.Context, algorithmName, paramsJSON string, sample PerformanceSample) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin performance upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	row := tx.QueryRow(ctx,
		`SELECT id, avg_silhouette_score, avg_calinski_harabasz_score, avg_combined_score, avg_processing_time, avg_memory_usage, total_runs, threshold_met_count
		 FROM algorithm_performance WHERE algorithm_name = $1 AND algorithm_params = $2 FOR UPDATE`,
		algorithmName, paramsJSON,
	)

	var (
		id                         string
		avgSil, avgCH, avgCombined float64
		avgTime, avgMem            float64
		totalRuns, thresholdMet    int
	)
	err = row.Scan(&id, &avgSil, &avgCH, &avgCombined, &avgTime, &avgMem, &totalRuns, &thresholdMet)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		metCount := 0
		if sample.ThresholdMet {
			metCount = 1
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO algorithm_performance
			 (id, algorithm_name, algorithm_params, avg_silhouette_score, avg_calinski_harabasz_score, avg_combined_score, avg_processing_time, avg_memory_usage, total_runs, successful_runs, failed_runs, quality_threshold, threshold_met_count, first_used, last_used, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, 1, 0, $9, $10, $11, $12, $13)`,
			uuid.New().String(), algorithmName, paramsJSON,
			sample.SilhouetteScore, sample.CalinskiHarabaszScore, sample.CombinedScore,
			sample.ProcessingTimeSeconds, sample.MemoryUsageMB,
			sample.QualityThreshold, metCount, now, now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert performance for %s", algorithmName)
		}
	case err != nil:
		return eris.Wrapf(err, "postgres: load performance for %s", algorithmName)
	default:
		metCount := thresholdMet
		if sample.ThresholdMet {
			metCount++
		}
		_, err = tx.Exec(ctx,
			`UPDATE algorithm_performance SET
			 avg_silhouette_score = $1, avg_calinski_harabasz_score = $2, avg_combined_score = $3,
			 avg_processing_time = $4, avg_memory_usage = $5,
			 total_runs = $6, successful_runs = successful_runs + 1,
			 quality_threshold = $7, threshold_met_count = $8, last_used = $9, updated_at = $10
			 WHERE id = $11`,
			onlineMean(avgSil, totalRuns, sample.SilhouetteScore),
			onlineMean(avgCH, totalRuns, sample.CalinskiHarabaszScore),
			onlineMean(avgCombined, totalRuns, sample.CombinedScore),
			onlineMean(avgTime, totalRuns, sample.ProcessingTimeSeconds),
			onlineMean(avgMem, totalRuns, sample.MemoryUsageMB),
			totalRuns+1, sample.QualityThreshold, metCount, now, now, id,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update performance for %s", algorithmName)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit performance upsert")
}

func (s *PostgresStore) ListAlgorithmPerformance(ctx context.Context, since time.Time) ([]model.AlgorithmPerformance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+performanceColumns+` FROM algorithm_performance
		 WHERE updated_at >= $1 ORDER BY algorithm_name`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list algorithm performance")
	}
	defer rows.Close()

	var out []model.AlgorithmPerformance
	for rows.Next() {
		var p model.AlgorithmPerformance
		if err := rows.Scan(
			&p.ID, &p.AlgorithmName, &p.AlgorithmParams,
			&p.AvgSilhouetteScore, &p.AvgCalinskiHarabaszScore, &p.AvgCombinedScore,
			&p.AvgProcessingTime, &p.AvgMemoryUsage,
			&p.TotalRuns, &p.SuccessfulRuns, &p.FailedRuns,
			&p.QualityThreshold, &p.ThresholdMetCount,
			&p.FirstUsed, &p.LastUsed, &p.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan algorithm performance")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: algorithm performance iterate")
}

func (s *PostgresStore) InsertAlerts(ctx context.Context, alerts []model.Alert) ([]model.Alert, error) {
	if len(alerts) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	for i := range alerts {
		a := &alerts[i]
		a.ID = uuid.New().String()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO clustering_alerts
			 (id, course_id, alert_type, alert_level, message, details, silhouette_score, combined_score, threshold, resolved, import_job_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11)`,
			a.ID, a.CourseID, string(a.AlertType), string(a.AlertLevel), a.Message,
			nullString(a.Details), a.SilhouetteScore, a.CombinedScore, a.Threshold,
			nullString(a.ImportJobID), a.CreatedAt,
		); err != nil {
			return nil, eris.Wrapf(err, "postgres: insert alert %s", a.AlertType)
		}
	}
	return alerts, nil
}

func (s *PostgresStore) ActiveAlerts(ctx context.Context, courseID *int64) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM clustering_alerts WHERE resolved = false`
	var args []any
	if courseID != nil {
		query += ` AND course_id = $1`
		args = append(args, *courseID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active alerts")
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanAlertPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: active alerts iterate")
}

func (s *PostgresStore) ResolveAlert(ctx context.Context, alertID, notes string) (*model.Alert, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE clustering_alerts SET resolved = true, resolved_at = $1, resolution_notes = $2 WHERE id = $3 AND resolved = false`,
		now, notes, alertID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: resolve alert %s", alertID)
	}
	if tag.RowsAffected() == 0 {
		var resolved bool
		err := s.pool.QueryRow(ctx,
			`SELECT resolved FROM clustering_alerts WHERE id = $1`, alertID,
		).Scan(&resolved)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: check alert %s", alertID)
		}
		return nil, ErrAlertResolved
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM clustering_alerts WHERE id = $1`, alertID,
	)
	a, err := scanAlertPG(row)
	if err == errNoRow {
		return nil, ErrAlertNotFound
	}
	return a, err
}

func (s *PostgresStore) UpsertProgress(ctx context.Context, p model.CourseProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO student_progress
		 (student_id, course_id, attendance_rate, completion_rate, overall_progress, task_count, completed_tasks, late_submissions, average_score, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (student_id, course_id) DO UPDATE SET
		 attendance_rate = $3, completion_rate = $4, overall_progress = $5,
		 task_count = $6, completed_tasks = $7, late_submissions = $8,
		 average_score = $9, updated_at = $10`,
		p.StudentID, p.CourseID, p.AttendanceRate, p.CompletionRate, p.OverallProgress,
		p.TaskCount, p.CompletedTasks, p.LateSubmissions, p.AverageScore, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert progress for student %s", p.StudentID)
}

func (s *PostgresStore) CourseProgress(ctx context.Context, studentID string, courseID int64) (*model.CourseProgress, error) {
	var p model.CourseProgress
	err := s.pool.QueryRow(ctx,
		`SELECT student_id, course_id, attendance_rate, completion_rate, overall_progress, task_count, completed_tasks, late_submissions, average_score, updated_at
		 FROM student_progress WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	).Scan(
		&p.StudentID, &p.CourseID, &p.AttendanceRate, &p.CompletionRate, &p.OverallProgress,
		&p.TaskCount, &p.CompletedTasks, &p.LateSubmissions, &p.AverageScore, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: progress for student %s", studentID)
	}
	return &p, nil
}

func (s *PostgresStore) Enroll(ctx context.Context, courseID int64, studentID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO course_enrollments (course_id, student_id) VALUES ($1, $2)
		 ON CONFLICT (course_id, student_id) DO NOTHING`,
		courseID, studentID,
	)
	return eris.Wrapf(err, "postgres: enroll student %s in course %d", studentID, courseID)
}

func (s *PostgresStore) ListCourses(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT course_id FROM course_enrollments ORDER BY course_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list courses")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan course id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "postgres: courses iterate")
}

func (s *PostgresStore) ListStudents(ctx context.Context, courseID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT student_id FROM course_enrollments WHERE course_id = $1 ORDER BY student_id`,
		courseID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list students for course %d", courseID)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan student id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "postgres: students iterate")
}

func scanAssignmentPG(row pgx.Row) (*model.ClusterAssignment, error) {
	var a model.ClusterAssignment
	var label string
	var metadataJSON []byte
	var importJobID *string

	err := row.Scan(
		&a.ID, &a.StudentID, &a.CourseID, &label, &a.ClusterScore,
		&a.AttendanceRate, &a.CompletionRate, &a.OverallProgress,
		&metadataJSON, &importJobID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoRow
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan assignment")
	}

	a.ClusterLabel = model.Label(label)
	if importJobID != nil {
		a.ImportJobID = *importJobID
	}
	if len(metadataJSON) > 0 {
		a.MLMetadata = &model.MLMetadata{}
		if err := json.Unmarshal(metadataJSON, a.MLMetadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal ml metadata")
		}
	}
	return &a, nil
}

func scanAlertPG(row pgx.Row) (*model.Alert, error) {
	var a model.Alert
	var alertType, alertLevel string
	var details, notes, importJobID *string
	var resolvedAt *time.Time

	err := row.Scan(
		&a.ID, &a.CourseID, &alertType, &alertLevel, &a.Message, &details,
		&a.SilhouetteScore, &a.CombinedScore, &a.Threshold,
		&a.Resolved, &resolvedAt, &notes, &importJobID, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoRow
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan alert")
	}

	a.AlertType = model.AlertType(alertType)
	a.AlertLevel = model.AlertLevel(alertLevel)
	if details != nil {
		a.Details = *details
	}
	if notes != nil {
		a.ResolutionNotes = *notes
	}
	if importJobID != nil {
		a.ImportJobID = *importJobID
	}
	a.ResolvedAt = resolvedAt
	return &a, nil
}

func collectQualityRecordsPG(rows pgx.Rows) ([]model.QualityRecord, error) {
	var out []model.QualityRecord
	for rows.Next() {
		var r model.QualityRecord
		var importJobID *string
		if err := rows.Scan(
			&r.ID, &r.CourseID, &r.AlgorithmUsed, &r.AlgorithmParams,
			&r.SilhouetteScore, &r.CalinskiHarabaszScore, &r.CombinedScore,
			&r.NClusters, &r.TotalStudents, &r.ClusteredStudents,
			&r.ProcessingTimeSeconds, &r.MemoryUsageMB,
			&importJobID, &r.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quality record")
		}
		if importJobID != nil {
			r.ImportJobID = *importJobID
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: quality records iterate")
}
