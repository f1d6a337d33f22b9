// Package model defines the domain types shared across the clustering
// pipeline: assignments, quality metrics, performance aggregates and alerts.
package model

import "time"

// Label is a risk tier assigned to a student, from best (A) to worst (C)
// performing group.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
)

// Labels lists all risk tiers in descending performance order.
var Labels = []Label{LabelA, LabelB, LabelC}

// FeatureVector holds the ordered behavioral features used for clustering.
// The field order matters: Slice() feeds the feature matrix.
type FeatureVector struct {
	AttendanceRate         float64 `json:"attendance_rate"`
	CompletionRate         float64 `json:"completion_rate"`
	OverallProgress        float64 `json:"overall_progress"`
	TaskCompletionRatio    float64 `json:"task_completion_ratio"`
	PunctualityScore       float64 `json:"punctuality_score"`
	PerformanceConsistency float64 `json:"performance_consistency"`
	AverageScore           float64 `json:"average_score"`
}

// Slice returns the vector in canonical feature order.
func (f FeatureVector) Slice() []float64 {
	return []float64{
		f.AttendanceRate,
		f.CompletionRate,
		f.OverallProgress,
		f.TaskCompletionRatio,
		f.PunctualityScore,
		f.PerformanceConsistency,
		f.AverageScore,
	}
}

// StudentFeatures pairs a student with their extracted feature vector.
type StudentFeatures struct {
	StudentID string        `json:"student_id"`
	Features  FeatureVector `json:"features"`
}

// ClusteredStudent is one student's placement inside a risk tier.
type ClusteredStudent struct {
	StudentID       string        `json:"student_id"`
	AttendanceRate  float64       `json:"attendance_rate"`
	CompletionRate  float64       `json:"completion_rate"`
	OverallProgress float64       `json:"overall_progress"`
	ClusterScore    float64       `json:"cluster_score"`
	Features        FeatureVector `json:"features"`
}

// QualityMetrics describes how well a clustering run separated students.
type QualityMetrics struct {
	SilhouetteScore       float64        `json:"silhouette_score"`
	CalinskiHarabaszScore float64        `json:"calinski_harabasz_score"`
	CombinedScore         float64        `json:"combined_score"`
	NClusters             int            `json:"n_clusters"`
	Parameters            map[string]any `json:"parameters,omitempty"`
}

// MLMetadata is the opaque payload stored alongside each assignment. Its
// schema is fixed so it round-trips: algorithm name, the run's quality
// metrics, and the raw feature vector the assignment was derived from.
type MLMetadata struct {
	Algorithm      string         `json:"algorithm"`
	QualityMetrics QualityMetrics `json:"quality_metrics"`
	Features       FeatureVector  `json:"features"`
}

// ClusterAssignment is a persisted (student, course) tier assignment.
// At most one row exists per (student, course); a clustering run replaces
// all rows for its course atomically.
type ClusterAssignment struct {
	ID              string      `json:"id"`
	StudentID       string      `json:"student_id"`
	CourseID        int64       `json:"course_id"`
	ClusterLabel    Label       `json:"cluster_label"`
	ClusterScore    float64     `json:"cluster_score"`
	AttendanceRate  float64     `json:"attendance_rate"`
	CompletionRate  float64     `json:"completion_rate"`
	OverallProgress float64     `json:"overall_progress"`
	MLMetadata      *MLMetadata `json:"ml_metadata,omitempty"`
	ImportJobID     string      `json:"import_job_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// CourseProgress holds precomputed per-(student, course) progress
// aggregates produced by the import subsystem. OverallProgress is the
// upstream 30% attendance / 70% completion weighted blend.
type CourseProgress struct {
	StudentID       string    `json:"student_id"`
	CourseID        int64     `json:"course_id"`
	AttendanceRate  float64   `json:"attendance_rate"`
	CompletionRate  float64   `json:"completion_rate"`
	OverallProgress float64   `json:"overall_progress"`
	TaskCount       int       `json:"task_count"`
	CompletedTasks  int       `json:"completed_tasks"`
	LateSubmissions int       `json:"late_submissions"`
	AverageScore    float64   `json:"average_score"`
	UpdatedAt       time.Time `json:"updated_at"`
}
