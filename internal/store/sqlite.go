package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/edusight/cluster-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS student_clusters (
	id               TEXT PRIMARY KEY,
	student_id       TEXT NOT NULL,
	course_id        INTEGER NOT NULL,
	cluster_label    TEXT NOT NULL,
	cluster_score    REAL NOT NULL,
	attendance_rate  REAL NOT NULL,
	completion_rate  REAL NOT NULL,
	overall_progress REAL NOT NULL,
	ml_metadata      TEXT,
	import_job_id    TEXT,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS clustering_quality_metrics (
	id                      TEXT PRIMARY KEY,
	course_id               INTEGER NOT NULL,
	algorithm_used          TEXT NOT NULL,
	algorithm_params        TEXT NOT NULL,
	silhouette_score        REAL NOT NULL,
	calinski_harabasz_score REAL NOT NULL,
	combined_score          REAL NOT NULL,
	n_clusters              INTEGER NOT NULL,
	total_students          INTEGER NOT NULL,
	clustered_students      INTEGER NOT NULL,
	processing_time_seconds REAL NOT NULL,
	memory_usage_mb         REAL NOT NULL,
	import_job_id           TEXT,
	created_at              DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS algorithm_performance (
	id                          TEXT PRIMARY KEY,
	algorithm_name              TEXT NOT NULL,
	algorithm_params            TEXT NOT NULL,
	avg_silhouette_score        REAL NOT NULL,
	avg_calinski_harabasz_score REAL NOT NULL,
	avg_combined_score          REAL NOT NULL,
	avg_processing_time         REAL NOT NULL,
	avg_memory_usage            REAL NOT NULL,
	total_runs                  INTEGER NOT NULL,
	successful_runs             INTEGER NOT NULL,
	failed_runs                 INTEGER NOT NULL,
	quality_threshold           REAL NOT NULL,
	threshold_met_count         INTEGER NOT NULL,
	first_used                  DATETIME NOT NULL,
	last_used                   DATETIME NOT NULL,
	updated_at                  DATETIME NOT NULL,
	UNIQUE (algorithm_name, algorithm_params)
);

CREATE TABLE IF NOT EXISTS clustering_alerts (
	id               TEXT PRIMARY KEY,
	course_id        INTEGER NOT NULL,
	alert_type       TEXT NOT NULL,
	alert_level      TEXT NOT NULL,
	message          TEXT NOT NULL,
	details          TEXT,
	silhouette_score REAL NOT NULL DEFAULT 0,
	combined_score   REAL NOT NULL DEFAULT 0,
	threshold        REAL NOT NULL DEFAULT 0,
	resolved         INTEGER NOT NULL DEFAULT 0,
	resolved_at      DATETIME,
	resolution_notes TEXT,
	import_job_id    TEXT,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS student_progress (
	student_id       TEXT NOT NULL,
	course_id        INTEGER NOT NULL,
	attendance_rate  REAL NOT NULL,
	completion_rate  REAL NOT NULL,
	overall_progress REAL NOT NULL,
	task_count       INTEGER NOT NULL,
	completed_tasks  INTEGER NOT NULL,
	late_submissions INTEGER NOT NULL,
	average_score    REAL NOT NULL,
	updated_at       DATETIME NOT NULL,
	PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS course_enrollments (
	course_id  INTEGER NOT NULL,
	student_id TEXT NOT NULL,
	PRIMARY KEY (course_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_student_clusters_course ON student_clusters(course_id);
CREATE INDEX IF NOT EXISTS idx_student_clusters_import_job ON student_clusters(import_job_id);
CREATE INDEX IF NOT EXISTS idx_quality_metrics_course_created ON clustering_quality_metrics(course_id, created_at);
CREATE INDEX IF NOT EXISTS idx_quality_metrics_algorithm_created ON clustering_quality_metrics(algorithm_used, created_at);
CREATE INDEX IF NOT EXISTS idx_algorithm_performance_updated ON algorithm_performance(algorithm_name, updated_at);
CREATE INDEX IF NOT EXISTS idx_alerts_course ON clustering_alerts(course_id);
CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON clustering_alerts(resolved, created_at);
CREATE INDEX IF NOT EXISTS idx_enrollments_student ON course_enrollments(student_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for test seeding.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) ReplaceAssignments(ctx context.Context, courseID int64, assignments []model.ClusterAssignment) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin replace assignments")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM student_clusters WHERE course_id = ?`, courseID,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete assignments for course %d", courseID)
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

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO student_clusters
			 (id, student_id, course_id, cluster_label, cluster_score, attendance_rate, completion_rate, overall_progress, ml_metadata, import_job_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.StudentID, a.CourseID, string(a.ClusterLabel), a.ClusterScore,
			a.AttendanceRate, a.CompletionRate, a.OverallProgress,
			metadataJSON, nullString(a.ImportJobID), a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert assignment for student %s", a.StudentID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit replace assignments")
	}
	return len(assignments), nil
}

const assignmentColumns = `id, student_id, course_id, cluster_label, cluster_score, attendance_rate, completion_rate, overall_progress, ml_metadata, import_job_id, created_at, updated_at`

func (s *SQLiteStore) AssignmentsForCourse(ctx context.Context, courseID int64) ([]model.ClusterAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM student_clusters WHERE course_id = ? ORDER BY cluster_label, student_id`,
		courseID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: assignments for course %d", courseID)
	}
	defer rows.Close()

	var out []model.ClusterAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: assignments iterate")
}

func (s *SQLiteStore) AssignmentForStudent(ctx context.Context, studentID string, courseID int64) (*model.ClusterAssignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM student_clusters WHERE student_id = ? AND course_id = ?`,
		studentID, courseID,
	)
	a, err := scanAssignment(row)
	if err == errNoRow {
		return nil, nil
	}
	return a, err
}

func (s *SQLiteStore) InsertQualityRecord(ctx context.Context, rec *model.QualityRecord) error {
	rec.ID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clustering_quality_metrics
		 (id, course_id, algorithm_used, algorithm_params, silhouette_score, calinski_harabasz_score, combined_score, n_clusters, total_students, clustered_students, processing_time_seconds, memory_usage_mb, import_job_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CourseID, rec.AlgorithmUsed, rec.AlgorithmParams,
		rec.SilhouetteScore, rec.CalinskiHarabaszScore, rec.CombinedScore,
		rec.NClusters, rec.TotalStudents, rec.ClusteredStudents,
		rec.ProcessingTimeSeconds, rec.MemoryUsageMB,
		nullString(rec.ImportJobID), rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert quality record")
}

const qualityColumns = `id, course_id, algorithm_used, algorithm_params, silhouette_score, calinski_harabasz_score, combined_score, n_clusters, total_students, clustered_students, processing_time_seconds, memory_usage_mb, import_job_id, created_at`

func (s *SQLiteStore) QualityHistory(ctx context.Context, courseID int64, since time.Time) ([]model.QualityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualityColumns+` FROM clustering_quality_metrics
		 WHERE course_id = ? AND created_at >= ? ORDER BY created_at DESC`,
		courseID, since,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: quality history for course %d", courseID)
	}
	defer rows.Close()
	return collectQualityRecords(rows)
}

func (s *SQLiteStore) ListQualityRecords(ctx context.Context, since time.Time) ([]model.QualityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualityColumns+` FROM clustering_quality_metrics
		 WHERE created_at >= ? ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quality records")
	}
	defer rows.Close()
	return collectQualityRecords(rows)
}

func (s *SQLiteStore) UpsertAlgorithmPerformance(ctx context.Context, algorithmName, paramsJSON string, sample PerformanceSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin performance upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx,
		`SELECT id, avg_silhouette_score, avg_calinski_harabasz_score, avg_combined_score, avg_processing_time, avg_memory_usage, total_runs, threshold_met_count
		 FROM algorithm_performance WHERE algorithm_name = ? AND algorithm_params = ?`,
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
	case err == sql.ErrNoRows:
		metCount := 0
		if sample.ThresholdMet {
			metCount = 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO algorithm_performance
			 (id, algorithm_name, algorithm_params, avg_silhouette_score, avg_calinski_harabasz_score, avg_combined_score, avg_processing_time, avg_memory_usage, total_runs, successful_runs, failed_runs, quality_threshold, threshold_met_count, first_used, last_used, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 1, 0, ?, ?, ?, ?, ?)`,
			uuid.New().String(), algorithmName, paramsJSON,
			sample.SilhouetteScore, sample.CalinskiHarabaszScore, sample.CombinedScore,
			sample.ProcessingTimeSeconds, sample.MemoryUsageMB,
			sample.QualityThreshold, metCount, now, now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert performance for %s", algorithmName)
		}
	case err != nil:
		return eris.Wrapf(err, "sqlite: load performance for %s", algorithmName)
	default:
		metCount := thresholdMet
		if sample.ThresholdMet {
			metCount++
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE algorithm_performance SET
			 avg_silhouette_score = ?, avg_calinski_harabasz_score = ?, avg_combined_score = ?,
			 avg_processing_time = ?, avg_memory_usage = ?,
			 total_runs = ?, successful_runs = successful_runs + 1,
			 quality_threshold = ?, threshold_met_count = ?, last_used = ?, updated_at = ?
			 WHERE id = ?`,
			onlineMean(avgSil, totalRuns, sample.SilhouetteScore),
			onlineMean(avgCH, totalRuns, sample.CalinskiHarabaszScore),
			onlineMean(avgCombined, totalRuns, sample.CombinedScore),
			onlineMean(avgTime, totalRuns, sample.ProcessingTimeSeconds),
			onlineMean(avgMem, totalRuns, sample.MemoryUsageMB),
			totalRuns+1, sample.QualityThreshold, metCount, now, now, id,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update performance for %s", algorithmName)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit performance upsert")
}

const performanceColumns = `id, algorithm_name, algorithm_params, avg_silhouette_score, avg_calinski_harabasz_score, avg_combined_score, avg_processing_time, avg_memory_usage, total_runs, successful_runs, failed_runs, quality_threshold, threshold_met_count, first_used, last_used, updated_at`

func (s *SQLiteStore) ListAlgorithmPerformance(ctx context.Context, since time.Time) ([]model.AlgorithmPerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+performanceColumns+` FROM algorithm_performance
		 WHERE updated_at >= ? ORDER BY algorithm_name`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list algorithm performance")
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
			return nil, eris.Wrap(err, "sqlite: scan algorithm performance")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: algorithm performance iterate")
}

func (s *SQLiteStore) InsertAlerts(ctx context.Context, alerts []model.Alert) ([]model.Alert, error) {
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
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO clustering_alerts
			 (id, course_id, alert_type, alert_level, message, details, silhouette_score, combined_score, threshold, resolved, import_job_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			a.ID, a.CourseID, string(a.AlertType), string(a.AlertLevel), a.Message,
			nullString(a.Details), a.SilhouetteScore, a.CombinedScore, a.Threshold,
			nullString(a.ImportJobID), a.CreatedAt,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert alert %s", a.AlertType)
		}
	}
	return alerts, nil
}

const alertColumns = `id, course_id, alert_type, alert_level, message, details, silhouette_score, combined_score, threshold, resolved, resolved_at, resolution_notes, import_job_id, created_at`

func (s *SQLiteStore) ActiveAlerts(ctx context.Context, courseID *int64) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM clustering_alerts WHERE resolved = 0`
	var args []any
	if courseID != nil {
		query += ` AND course_id = ?`
		args = append(args, *courseID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active alerts")
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: active alerts iterate")
}

func (s *SQLiteStore) ResolveAlert(ctx context.Context, alertID, notes string) (*model.Alert, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE clustering_alerts SET resolved = 1, resolved_at = ?, resolution_notes = ? WHERE id = ? AND resolved = 0`,
		now, notes, alertID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: resolve alert %s", alertID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Distinguish a missing alert from one already resolved.
		var resolved bool
		err := s.db.QueryRowContext(ctx,
			`SELECT resolved FROM clustering_alerts WHERE id = ?`, alertID,
		).Scan(&resolved)
		if err == sql.ErrNoRows {
			return nil, ErrAlertNotFound
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: check alert %s", alertID)
		}
		return nil, ErrAlertResolved
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM clustering_alerts WHERE id = ?`, alertID,
	)
	a, err := scanAlert(row)
	if err == errNoRow {
		return nil, ErrAlertNotFound
	}
	return a, err
}

func (s *SQLiteStore) UpsertProgress(ctx context.Context, p model.CourseProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student_progress
		 (student_id, course_id, attendance_rate, completion_rate, overall_progress, task_count, completed_tasks, late_submissions, average_score, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (student_id, course_id) DO UPDATE SET
		 attendance_rate = excluded.attendance_rate,
		 completion_rate = excluded.completion_rate,
		 overall_progress = excluded.overall_progress,
		 task_count = excluded.task_count,
		 completed_tasks = excluded.completed_tasks,
		 late_submissions = excluded.late_submissions,
		 average_score = excluded.average_score,
		 updated_at = excluded.updated_at`,
		p.StudentID, p.CourseID, p.AttendanceRate, p.CompletionRate, p.OverallProgress,
		p.TaskCount, p.CompletedTasks, p.LateSubmissions, p.AverageScore, p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert progress for student %s", p.StudentID)
}

func (s *SQLiteStore) CourseProgress(ctx context.Context, studentID string, courseID int64) (*model.CourseProgress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT student_id, course_id, attendance_rate, completion_rate, overall_progress, task_count, completed_tasks, late_submissions, average_score, updated_at
		 FROM student_progress WHERE student_id = ? AND course_id = ?`,
		studentID, courseID,
	)

	var p model.CourseProgress
	err := row.Scan(
		&p.StudentID, &p.CourseID, &p.AttendanceRate, &p.CompletionRate, &p.OverallProgress,
		&p.TaskCount, &p.CompletedTasks, &p.LateSubmissions, &p.AverageScore, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: progress for student %s", studentID)
	}
	return &p, nil
}

func (s *SQLiteStore) Enroll(ctx context.Context, courseID int64, studentID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO course_enrollments (course_id, student_id) VALUES (?, ?)
		 ON CONFLICT (course_id, student_id) DO NOTHING`,
		courseID, studentID,
	)
	return eris.Wrapf(err, "sqlite: enroll student %s in course %d", studentID, courseID)
}

func (s *SQLiteStore) ListCourses(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT course_id FROM course_enrollments ORDER BY course_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list courses")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan course id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: courses iterate")
}

func (s *SQLiteStore) ListStudents(ctx context.Context, courseID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id FROM course_enrollments WHERE course_id = ? ORDER BY student_id`,
		courseID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list students for course %d", courseID)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan student id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: students iterate")
}

// helpers

var errNoRow = eris.New("no row")

type scannable interface {
	Scan(dest ...any) error
}

func scanAssignment(row scannable) (*model.ClusterAssignment, error) {
	var a model.ClusterAssignment
	var label string
	var metadataJSON, importJobID sql.NullString

	err := row.Scan(
		&a.ID, &a.StudentID, &a.CourseID, &label, &a.ClusterScore,
		&a.AttendanceRate, &a.CompletionRate, &a.OverallProgress,
		&metadataJSON, &importJobID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errNoRow
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan assignment")
	}

	a.ClusterLabel = model.Label(label)
	a.ImportJobID = importJobID.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		a.MLMetadata = &model.MLMetadata{}
		if err := json.Unmarshal([]byte(metadataJSON.String), a.MLMetadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal ml metadata")
		}
	}
	return &a, nil
}

func scanAlert(row scannable) (*model.Alert, error) {
	var a model.Alert
	var alertType, alertLevel string
	var details, notes, importJobID sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.CourseID, &alertType, &alertLevel, &a.Message, &details,
		&a.SilhouetteScore, &a.CombinedScore, &a.Threshold,
		&a.Resolved, &resolvedAt, &notes, &importJobID, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errNoRow
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan alert")
	}

	a.AlertType = model.AlertType(alertType)
	a.AlertLevel = model.AlertLevel(alertLevel)
	a.Details = details.String
	a.ResolutionNotes = notes.String
	a.ImportJobID = importJobID.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}

func collectQualityRecords(rows *sql.Rows) ([]model.QualityRecord, error) {
	var out []model.QualityRecord
	for rows.Next() {
		var r model.QualityRecord
		var importJobID sql.NullString
		if err := rows.Scan(
			&r.ID, &r.CourseID, &r.AlgorithmUsed, &r.AlgorithmParams,
			&r.SilhouetteScore, &r.CalinskiHarabaszScore, &r.CombinedScore,
			&r.NClusters, &r.TotalStudents, &r.ClusteredStudents,
			&r.ProcessingTimeSeconds, &r.MemoryUsageMB,
			&importJobID, &r.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quality record")
		}
		r.ImportJobID = importJobID.String
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: quality records iterate")
}

func marshalMetadata(m *model.MLMetadata) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "marshal ml metadata")
	}
	return string(b), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
