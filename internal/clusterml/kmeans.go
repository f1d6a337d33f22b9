package clusterml

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// lloydKMeans runs seeded Lloyd's k-means with k-means++ initialization.
// nInit restarts are performed from deterministic per-restart seeds and the
// labeling with the lowest inertia wins, so results are reproducible.
func lloydKMeans(matrix [][]float64, k int, seed int64, nInit, maxIter int) []int {
	if len(matrix) == 0 {
		return nil
	}
	if k > len(matrix) {
		k = len(matrix)
	}

	var bestLabels []int
	bestInertia := math.Inf(1)

	for restart := 0; restart < nInit; restart++ {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(restart)))
		centers := seedCenters(matrix, k, rng)
		labels, inertia := lloydIterate(matrix, centers, maxIter)
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
		}
	}
	return bestLabels
}

// seedCenters picks initial centers with k-means++ weighting: each next
// center is drawn proportionally to squared distance from the nearest
// already-chosen center.
func seedCenters(matrix [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(matrix)
	centers := make([][]float64, 0, k)
	centers = append(centers, cloneRow(matrix[rng.IntN(n)]))

	dists := make([]float64, n)
	for len(centers) < k {
		total := 0.0
		for i, row := range matrix {
			d := math.Inf(1)
			for _, c := range centers {
				if dd := squaredDistance(row, c); dd < d {
					d = dd
				}
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			// All points coincide with a center; any pick works.
			centers = append(centers, cloneRow(matrix[rng.IntN(n)]))
			continue
		}
		target := rng.Float64() * total
		acc := 0.0
		picked := n - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				picked = i
				break
			}
		}
		centers = append(centers, cloneRow(matrix[picked]))
	}
	return centers
}

// lloydIterate alternates assignment and center updates until convergence
// or maxIter, returning labels and total within-cluster inertia.
func lloydIterate(matrix [][]float64, centers [][]float64, maxIter int) ([]int, float64) {
	n := len(matrix)
	k := len(centers)
	dims := len(matrix[0])
	labels := make([]int, n)

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range matrix {
			best := 0
			bestDist := squaredDistance(row, centers[0])
			for c := 1; c < k; c++ {
				if d := squaredDistance(row, centers[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centers; empty clusters keep their previous position.
		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range matrix {
			counts[labels[i]]++
			floats.Add(sums[labels[i]], row)
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := 0; j < dims; j++ {
				centers[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	inertia := 0.0
	for i, row := range matrix {
		inertia += squaredDistance(row, centers[labels[i]])
	}
	return labels, inertia
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func euclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

func cloneRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
