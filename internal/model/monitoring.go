package model

import "time"

// AlertType identifies the kind of quality alert.
type AlertType string

const (
	AlertQualityLow         AlertType = "quality_low"
	AlertCombinedQualityLow AlertType = "combined_quality_low"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelError    AlertLevel = "error"
	AlertLevelCritical AlertLevel = "critical"
)

// QualityRecord captures one clustering run's quality and performance
// numbers. Records are append-only and never mutated.
type QualityRecord struct {
	ID                    string    `json:"id"`
	CourseID              int64     `json:"course_id"`
	AlgorithmUsed         string    `json:"algorithm_used"`
	AlgorithmParams       string    `json:"algorithm_params"`
	SilhouetteScore       float64   `json:"silhouette_score"`
	CalinskiHarabaszScore float64   `json:"calinski_harabasz_score"`
	CombinedScore         float64   `json:"combined_score"`
	NClusters             int       `json:"n_clusters"`
	TotalStudents         int       `json:"total_students"`
	ClusteredStudents     int       `json:"clustered_students"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	MemoryUsageMB         float64   `json:"memory_usage_mb"`
	ImportJobID           string    `json:"import_job_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// AlgorithmPerformance aggregates quality and resource usage per distinct
/// (algorithm, params) pair. Averages are maintained as online means:
// new_avg = (old_avg*old_n + x) / (old_n + 1).
type AlgorithmPerformance struct {
	ID                       string    `json:"id"`
	AlgorithmName            string    `json:"algorithm_name"`
	AlgorithmParams          string    `json:"algorithm_params"`
	AvgSilhouetteScore       float64   `json:"avg_silhouette_score"`
	AvgCalinskiHarabaszScore float64   `json:"avg_calinski_harabasz_score"`
	AvgCombinedScore         float64   `json:"avg_combined_score"`
	AvgProcessingTime        float64   `json:"avg_processing_time"`
	AvgMemoryUsage           float64   `json:"avg_memory_usage"`
	TotalRuns                int       `json:"total_runs"`
	SuccessfulRuns           int       `json:"successful_runs"`
	FailedRuns               int       `json:"failed_runs"`
	QualityThreshold         float64   `json:"quality_threshold"`
	ThresholdMetCount        int       `json:"threshold_met_count"`
	FirstUsed                time.Time `json:"first_used"`
	LastUsed                 time.Time `json:"last_used"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Alert records a threshold breach from a clustering run. Alerts start
// unresolved and transition to resolved exactly once via operator action.
type Alert struct {
	ID              string     `json:"id"`
	CourseID        int64      `json:"course_id"`
	AlertType       AlertType  `json:"alert_type"`
	AlertLevel      AlertLevel `json:"alert_level"`
	Message         string     `json:"message"`
	Details         string     `json:"details,omitempty"`
	SilhouetteScore float64    `json:"silhouette_score"`
	CombinedScore   float64    `json:"combined_score"`
	Threshold       float64    `json:"threshold"`
	Resolved        bool       `json:"resolved"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ImportJobID     string     `json:"import_job_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Thresholds holds the mutable quality gates evaluated after every run.
type Thresholds struct {
	SilhouetteMin     float64 `json:"silhouette_min"`
	CombinedMin       float64 `json:"combined_min"`
	ProcessingTimeMax float64 `json:"processing_time_max"`
	MemoryUsageMax    float64 `json:"memory_usage_max"`
}

// DefaultThresholds returns the stock quality thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SilhouetteMin:     0.2,
		CombinedMin:       0.3,
		ProcessingTimeMax: 300.0,
		MemoryUsageMax:    1000.0,
	}
}
