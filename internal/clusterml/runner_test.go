package clusterml

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/cluster-cli/internal/model"
)

func student(id string, attendance, completion, overall float64) model.StudentFeatures {
	return model.StudentFeatures{
		StudentID: id,
		Features: model.FeatureVector{
			AttendanceRate:         attendance,
			CompletionRate:         completion,
			OverallProgress:        overall,
			TaskCompletionRatio:    completion / 100,
			PunctualityScore:       attendance,
			PerformanceConsistency: min3(attendance, completion, overall),
			AverageScore:           overall,
		},
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

// separatedBatch builds three well-separated groups of five students each.
func separatedBatch() []model.StudentFeatures {
	var students []model.StudentFeatures
	for i := 0; i < 5; i++ {
		off := float64(i)
		students = append(students, student(fmt.Sprintf("high-%d", i), 90+off, 85+off, 88+off))
	}
	for i := 0; i < 5; i++ {
		off := float64(i)
		students = append(students, student(fmt.Sprintf("mid-%d", i), 55+off, 50+off, 52+off))
	}
	for i := 0; i < 5; i++ {
		off := float64(i)
		students = append(students, student(fmt.Sprintf("low-%d", i), 15+off, 10+off, 12+off))
	}
	return students
}

func TestRunnerEmptyBatch(t *testing.T) {
	r := NewRunner(DefaultParams())
	_, err := r.Run(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty feature batch")
}

func TestRunnerSmallBatchUsesRules(t *testing.T) {
	r := NewRunner(DefaultParams())

	result, err := r.Run([]model.StudentFeatures{
		student("s1", 80, 70, 75),
		student("s2", 10, 5, 8),
	})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, AlgorithmRuleBased, result.Algorithm)
	assert.Equal(t, 2, result.ClusteredCount())
	assert.Len(t, result.Clusters[model.LabelA], 1)
	assert.Len(t, result.Clusters[model.LabelC], 1)
}

func TestRunnerWellSeparatedGroups(t *testing.T) {
	r := NewRunner(DefaultParams())

	result, err := r.Run(separatedBatch())
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "kmeans", result.Algorithm)
	assert.Equal(t, 15, result.ClusteredCount())
	assert.Equal(t, 3, result.Quality.NClusters)
	assert.Greater(t, result.Quality.SilhouetteScore, 0.5)
	assert.Greater(t, result.Quality.CalinskiHarabaszScore, 0.0)

	// The best performing group lands in A, the worst in C.
	require.Len(t, result.Clusters[model.LabelA], 5)
	require.Len(t, result.Clusters[model.LabelB], 5)
	require.Len(t, result.Clusters[model.LabelC], 5)
	for _, s := range result.Clusters[model.LabelA] {
		assert.Contains(t, s.StudentID, "high-")
	}
	for _, s := range result.Clusters[model.LabelC] {
		assert.Contains(t, s.StudentID, "low-")
	}
}

func TestRunnerDeterministic(t *testing.T) {
	batch := separatedBatch()

	first, err := NewRunner(DefaultParams()).Run(batch)
	require.NoError(t, err)
	second, err := NewRunner(DefaultParams()).Run(batch)
	require.NoError(t, err)

	assert.Equal(t, first.Algorithm, second.Algorithm)
	assert.InDelta(t, first.Quality.SilhouetteScore, second.Quality.SilhouetteScore, 1e-12)
	for _, label := range model.Labels {
		require.Len(t, second.Clusters[label], len(first.Clusters[label]))
		for i, s := range first.Clusters[label] {
			assert.Equal(t, s.StudentID, second.Clusters[label][i].StudentID)
		}
	}
}

func TestRunnerQualityParameters(t *testing.T) {
	r := NewRunner(DefaultParams())

	result, err := r.Run(separatedBatch())
	require.NoError(t, err)
	require.NotNil(t, result.Quality.Parameters)
	assert.Equal(t, 3, result.Quality.Parameters["n_clusters"])
	assert.Equal(t, int64(42), result.Quality.Parameters["random_state"])
}

func TestRunnerIdenticalPoints(t *testing.T) {
	// Every student identical: k-means collapses to a single cluster and
	// the runner falls through its alternatives. Whatever wins, every
	// student must still receive a tier.
	var students []model.StudentFeatures
	for i := 0; i < 6; i++ {
		students = append(students, student(fmt.Sprintf("s%d", i), 60, 55, 58))
	}

	r := NewRunner(DefaultParams())
	result, err := r.Run(students)
	require.NoError(t, err)
	assert.NotEqual(t, "kmeans", result.Algorithm)
	assert.Equal(t, 6, result.ClusteredCount())
}

func TestCombinedScoreFormula(t *testing.T) {
	r := NewRunner(DefaultParams())
	labels := []int{0, 0, 1, 1}
	matrix := [][]float64{
		{0, 0}, {0.1, 0}, {5, 5}, {5.1, 5},
	}

	quality, ok := r.evaluate(matrix, labels)
	require.True(t, ok)
	expected := 0.7*quality.SilhouetteScore + 0.3*(quality.CalinskiHarabaszScore/1000.0)
	assert.InDelta(t, expected, quality.CombinedScore, 1e-12)
}

func TestEvaluateRejectsSingleCluster(t *testing.T) {
	r := NewRunner(DefaultParams())
	_, ok := r.evaluate([][]float64{{0}, {1}, {2}}, []int{0, 0, 0})
	assert.False(t, ok)
}
