package clusterml

import (
	"github.com/packagewjx/kmeanspp"
	"github.com/rotisserie/eris"
)

// variant is one clustering algorithm in the fallback chain: a name, its
// serializable parameters, and a pure labeling function over the
// normalized feature matrix.
type variant struct {
	name   string
	params map[string]any
	run    func(matrix [][]float64, p Params) ([]int, error)
}

func (r *Runner) primaryVariant() variant {
	p := r.params
	return variant{
		name: "kmeans",
		params: map[string]any{
			"n_clusters":   p.NClusters,
			"random_state": p.Seed,
			"n_init":       p.NInit,
			"max_iter":     p.MaxIter,
		},
		run: func(matrix [][]float64, p Params) ([]int, error) {
			return lloydKMeans(matrix, p.NClusters, p.Seed, p.NInit, p.MaxIter), nil
		},
	}
}

// alternatives are tried in order after the primary fails the quality
// gate. All operate on the same normalized matrix.
func (r *Runner) alternatives() []variant {
	p := r.params
	return []variant{
		{
			name: "kmeans_simple",
			params: map[string]any{
				"n_clusters":   p.NClusters,
				"random_state": p.Seed + 1,
				"n_init":       5,
			},
			run: func(matrix [][]float64, p Params) ([]int, error) {
				return lloydKMeans(matrix, p.NClusters, p.Seed+1, 5, p.MaxIter), nil
			},
		},
		{
			name: "kmeanspp",
			params: map[string]any{
				"n_clusters": p.NClusters,
				"rounds":     kmeansppRounds,
			},
			run: runKMeansPP,
		},
		{
			name: "agglomerative_average",
			params: map[string]any{
				"n_clusters": p.NClusters,
				"linkage":    "average",
			},
			run: func(matrix [][]float64, p Params) ([]int, error) {
				return agglomerativeAverage(matrix, p.NClusters), nil
			},
		},
	}
}

const kmeansppRounds = 30

// runKMeansPP delegates to the kmeanspp library, which operates on
// float32 matrices.
func runKMeansPP(matrix [][]float64, p Params) (labels []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("clusterml: kmeanspp panic: %v", r)
		}
	}()

	data := make([][]float32, len(matrix))
	for i, row := range matrix {
		data[i] = make([]float32, len(row))
		for j, v := range row {
			data[i][j] = float32(v)
		}
	}
	_, labels = kmeanspp.KMeansPP(p.NClusters, kmeansppRounds, data)
	return labels, nil
}
