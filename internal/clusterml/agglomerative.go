package clusterml

import "math"

// agglomerativeAverage performs bottom-up hierarchical clustering with
// average linkage, merging the closest pair of clusters until k remain.
// O(n^3) worst case, fine for per-course batch sizes.
func agglomerativeAverage(matrix [][]float64, k int) []int {
	n := len(matrix)
	if n == 0 {
		return nil
	}
	if k > n {
		k = n
	}

	// Pairwise point distances, computed once.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := 0; j < i; j++ {
			d := euclideanDistance(matrix[i], matrix[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	// Each point starts as its own cluster.
	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	for len(clusters) > k {
		bestA, bestB := 0, 1
		bestDist := math.Inf(1)
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				if d := averageLinkage(dist, clusters[a], clusters[b]); d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		clusters[bestA] = append(clusters[bestA], clusters[bestB]...)
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}

	labels := make([]int, n)
	for c, members := range clusters {
		for _, i := range members {
			labels[i] = c
		}
	}
	return labels
}

// averageLinkage is the mean pairwise distance between two clusters.
func averageLinkage(dist [][]float64, a, b []int) float64 {
	sum := 0.0
	for _, i := range a {
		for _, j := range b {
			sum += dist[i][j]
		}
	}
	return sum / float64(len(a)*len(b))
}
