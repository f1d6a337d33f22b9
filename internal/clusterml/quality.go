package clusterml

import "gonum.org/v1/gonum/floats"

// silhouetteScore is the mean per-point silhouette over the batch:
// s(i) = (b(i) - a(i)) / max(a(i), b(i)) where a is the mean intra-cluster
// distance and b the mean distance to the nearest other cluster.
// Range [-1, 1], higher is better. Singleton clusters contribute 0.
func silhouetteScore(matrix [][]float64, labels []int) float64 {
	n := len(matrix)
	if n == 0 {
		return 0
	}

	members := groupByLabel(labels)
	if len(members) < 2 {
		return 0
	}

	total := 0.0
	for i := 0; i < n; i++ {
		own := members[labels[i]]
		if len(own) <= 1 {
			continue
		}

		// Mean distance to other points in the same cluster.
		a := 0.0
		for _, j := range own {
			if j == i {
				continue
			}
			a += euclideanDistance(matrix[i], matrix[j])
		}
		a /= float64(len(own) - 1)

		// Smallest mean distance to any other cluster.
		b := -1.0
		for label, other := range members {
			if label == labels[i] {
				continue
			}
			d := 0.0
			for _, j := range other {
				d += euclideanDistance(matrix[i], matrix[j])
			}
			d /= float64(len(other))
			if b < 0 || d < b {
				b = d
			}
		}

		maxAB := a
		if b > maxAB {
			maxAB = b
		}
		if maxAB > 0 {
			total += (b - a) / maxAB
		}
	}
	return total / float64(n)
}

// calinskiHarabaszScore is the ratio of between-cluster to within-cluster
// dispersion, scaled by degrees of freedom. Unbounded, higher is better.
func calinskiHarabaszScore(matrix [][]float64, labels []int) float64 {
	n := len(matrix)
	if n == 0 {
		return 0
	}
	members := groupByLabel(labels)
	k := len(members)
	if k < 2 || n <= k {
		return 0
	}
	dims := len(matrix[0])

	overall := make([]float64, dims)
	for _, row := range matrix {
		floats.Add(overall, row)
	}
	floats.Scale(1/float64(n), overall)

	between := 0.0
	within := 0.0
	for _, idx := range members {
		centroid := make([]float64, dims)
		for _, i := range idx {
			floats.Add(centroid, matrix[i])
		}
		floats.Scale(1/float64(len(idx)), centroid)

		between += float64(len(idx)) * squaredDistance(centroid, overall)
		for _, i := range idx {
			within += squaredDistance(matrix[i], centroid)
		}
	}

	if within == 0 {
		return 0
	}
	return (between / float64(k-1)) / (within / float64(n-k))
}

// groupByLabel indexes points by cluster label, skipping noise (< 0).
func groupByLabel(labels []int) map[int][]int {
	members := make(map[int][]int)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		members[l] = append(members[l], i)
	}
	return members
}
