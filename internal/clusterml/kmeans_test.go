package clusterml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBlobs() [][]float64 {
	return [][]float64{
		{0, 0}, {0.2, 0.1}, {0.1, 0.3}, {0.3, 0.2},
		{10, 10}, {10.2, 10.1}, {10.1, 10.3}, {10.3, 10.2},
	}
}

func TestLloydKMeansSeparatesBlobs(t *testing.T) {
	labels := lloydKMeans(twoBlobs(), 2, 42, 10, 300)
	require.Len(t, labels, 8)

	// The first four points share a label, the last four share the other.
	first := labels[0]
	for i := 1; i < 4; i++ {
		assert.Equal(t, first, labels[i])
	}
	second := labels[4]
	assert.NotEqual(t, first, second)
	for i := 5; i < 8; i++ {
		assert.Equal(t, second, labels[i])
	}
}

func TestLloydKMeansDeterministic(t *testing.T) {
	a := lloydKMeans(twoBlobs(), 2, 42, 10, 300)
	b := lloydKMeans(twoBlobs(), 2, 42, 10, 300)
	assert.Equal(t, a, b)

	// A different seed is allowed to relabel but must still partition.
	c := lloydKMeans(twoBlobs(), 2, 7, 10, 300)
	assert.Equal(t, countDistinct(a), countDistinct(c))
}

func TestLloydKMeansMoreClustersThanPoints(t *testing.T) {
	labels := lloydKMeans([][]float64{{0}, {1}}, 5, 42, 3, 100)
	require.Len(t, labels, 2)
	for _, l := range labels {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 2)
	}
}

func TestLloydKMeansEmpty(t *testing.T) {
	assert.Nil(t, lloydKMeans(nil, 3, 42, 10, 300))
}

func TestAgglomerativeAverage(t *testing.T) {
	labels := agglomerativeAverage(twoBlobs(), 2)
	require.Len(t, labels, 8)

	first := labels[0]
	for i := 1; i < 4; i++ {
		assert.Equal(t, first, labels[i])
	}
	assert.NotEqual(t, first, labels[4])
	for i := 5; i < 8; i++ {
		assert.Equal(t, labels[4], labels[i])
	}
}

func TestAgglomerativeProducesExactlyK(t *testing.T) {
	labels := agglomerativeAverage(twoBlobs(), 3)
	assert.Equal(t, 3, countDistinct(labels))
}
