// Package features derives per-student feature vectors from precomputed
// progress aggregates.
package features

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edusight/cluster-cli/internal/model"
)

// ErrNoProgressData indicates a student has no usable course-specific
// progress data. Callers skip the student and continue the run.
var ErrNoProgressData = eris.New("features: no course progress data")

// ProgressSource provides per-(student, course) progress aggregates.
// Implementations return (nil, nil) when no data exists for the pair.
type ProgressSource interface {
	CourseProgress(ctx context.Context, studentID string, courseID int64) (*model.CourseProgress, error)
}

// Roster lists courses and course membership.
type Roster interface {
	ListCourses(ctx context.Context) ([]int64, error)
	ListStudents(ctx context.Context, courseID int64) ([]string, error)
}

// Extractor builds feature vectors from a ProgressSource.
type Extractor struct {
	source ProgressSource
}

// NewExtractor creates an Extractor over the given progress source.
func NewExtractor(source ProgressSource) *Extractor {
	return &Extractor{source: source}
}

// Extract returns the feature vector for one (student, course) pair.
// Returns ErrNoProgressData when the student has no progress for the course.
func (e *Extractor) Extract(ctx context.Context, studentID string, courseID int64) (*model.StudentFeatures, error) {
	progress, err := e.source.CourseProgress(ctx, studentID, courseID)
	if err != nil {
		return nil, eris.Wrapf(err, "features: load progress for student %s", studentID)
	}
	if progress == nil {
		return nil, ErrNoProgressData
	}

	return &model.StudentFeatures{
		StudentID: studentID,
		Features:  FromProgress(progress),
	}, nil
}

// FromProgress derives the ordered feature vector from progress aggregates.
func FromProgress(p *model.CourseProgress) model.FeatureVector {
	taskCount := p.TaskCount
	if taskCount < 1 {
		taskCount = 1
	}

	punctuality := 100.0 - float64(p.LateSubmissions)*10.0
	if punctuality < 0 {
		punctuality = 0
	}

	return model.FeatureVector{
		AttendanceRate:         p.AttendanceRate,
		CompletionRate:         p.CompletionRate,
		OverallProgress:        p.OverallProgress,
		TaskCompletionRatio:    float64(p.CompletedTasks) / float64(taskCount),
		PunctualityScore:       punctuality,
		PerformanceConsistency: min3(p.AttendanceRate, p.CompletionRate, p.OverallProgress),
		AverageScore:           p.AverageScore,
	}
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
