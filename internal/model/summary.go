package model

import "time"

// RunState tracks a clustering run through its phases. The error state is
// terminal and reachable from any phase.
type RunState string

const (
	RunStateCollectingFeatures RunState = "collecting_features"
	RunStateClustering         RunState = "clustering"
	RunStatePersisting         RunState = "persisting"
	RunStateRecordingMetrics   RunState = "recording_metrics"
	RunStateDone               RunState = "done"
	RunStateError              RunState = "error"
)

// LabelSummary aggregates one tier of a clustering run.
type LabelSummary struct {
	Count         int     `json:"count"`
	AvgAttendance float64 `json:"avg_attendance"`
	AvgCompletion float64 `json:"avg_completion"`
	AvgOverall    float64 `json:"avg_overall"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// RunSummary is the result of clustering one course.
type RunSummary struct {
	CourseID              int64                  `json:"course_id"`
	TotalStudents         int                    `json:"total_students"`
	ClusteredStudents     int                    `json:"clustered_students"`
	SkippedStudents       int                    `json:"skipped_students"`
	AlgorithmUsed         string                 `json:"algorithm_used"`
	Quality               QualityMetrics         `json:"quality_metrics"`
	Labels                map[Label]LabelSummary `json:"clusters"`
	ProcessingTimeSeconds float64                `json:"processing_time_seconds"`
	MemoryUsageMB         float64                `json:"memory_usage_mb"`
	State                 RunState               `json:"state"`
	ImportJobID           string                 `json:"import_job_id,omitempty"`
	ClusteredAt           time.Time              `json:"clustered_at"`
}

// BatchSummary aggregates clustering results across all courses.
type BatchSummary struct {
	TotalCourses      int              `json:"total_courses"`
	SuccessfulCourses int              `json:"successful_courses"`
	FailedCourses     int              `json:"failed_courses"`
	TotalStudents     int              `json:"total_students"`
	TotalClustered    int              `json:"total_clustered"`
	AlgorithmSummary  map[string]int   `json:"algorithm_summary"`
	CourseResults     []RunSummary     `json:"course_results"`
	Errors            map[int64]string `json:"errors,omitempty"`
	ImportJobID       string           `json:"import_job_id,omitempty"`
	ClusteredAt       time.Time        `json:"clustered_at"`
}
