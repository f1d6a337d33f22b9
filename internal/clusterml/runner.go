// Package clusterml partitions students into risk tiers from behavioral
// feature vectors. The runner tries a deterministic primary algorithm,
// gates on quality, falls through a small set of alternative variants, and
// finally to rule-based tiering that never fails.
package clusterml

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edusight/cluster-cli/internal/model"
)

// AlgorithmRuleBased names the deterministic rule-based fallback.
const AlgorithmRuleBased = "rule_based"

// Params tunes the clustering runner.
type Params struct {
	NClusters        int
	Seed             int64
	NInit            int
	MaxIter          int
	QualityThreshold float64
	// CHNormalization scales the Calinski-Harabasz term in the combined
	// score. Empirical constant; tune per deployment.
	CHNormalization float64
	MaxAlternatives int
}

// DefaultParams returns the stock runner parameters.
func DefaultParams() Params {
	return Params{
		NClusters:        3,
		Seed:             42,
		NInit:            10,
		MaxIter:          300,
		QualityThreshold: 0.3,
		CHNormalization:  1000.0,
		MaxAlternatives:  3,
	}
}

// Result is the outcome of one clustering run.
type Result struct {
	Clusters  map[model.Label][]model.ClusteredStudent
	Algorithm string
	Quality   model.QualityMetrics
	Fallback  bool
}

// ClusteredCount returns the number of students across all tiers.
func (r *Result) ClusteredCount() int {
	n := 0
	for _, students := range r.Clusters {
		n += len(students)
	}
	return n
}

// Runner executes clustering over a batch of feature vectors. It is a pure
// function over its inputs; persistence belongs to callers.
type Runner struct {
	params Params
}

// NewRunner creates a Runner, filling unset params with defaults.
func NewRunner(p Params) *Runner {
	def := DefaultParams()
	if p.NClusters <= 0 {
		p.NClusters = def.NClusters
	}
	if p.NInit <= 0 {
		p.NInit = def.NInit
	}
	if p.MaxIter <= 0 {
		p.MaxIter = def.MaxIter
	}
	if p.QualityThreshold <= 0 {
		p.QualityThreshold = def.QualityThreshold
	}
	if p.CHNormalization <= 0 {
		p.CHNormalization = def.CHNormalization
	}
	if p.MaxAlternatives <= 0 {
		p.MaxAlternatives = def.MaxAlternatives
	}
	if p.Seed == 0 {
		p.Seed = def.Seed
	}
	return &Runner{params: p}
}

// Run partitions the batch into A/B/C tiers with a quality report.
// Batches smaller than three students skip the algorithmic path entirely:
// quality metrics are meaningless there, so rule-based tiering applies.
func (r *Runner) Run(students []model.StudentFeatures) (*Result, error) {
	if len(students) == 0 {
		return nil, eris.New("clusterml: empty feature batch")
	}
	if len(students) < 3 {
		return r.ruleBasedResult(students), nil
	}

	log := zap.L().With(zap.String("component", "clusterml.runner"))

	matrix := buildMatrix(students)
	normalized := normalize(matrix)

	// Primary: seeded k-means.
	primary := r.primaryVariant()
	labels, err := primary.run(normalized, r.params)
	if err == nil {
		if quality, ok := r.evaluate(normalized, labels); ok {
			if quality.SilhouetteScore >= r.params.QualityThreshold {
				quality.Parameters = primary.params
				return r.algorithmicResult(students, labels, primary.name, quality), nil
			}
			log.Warn("primary algorithm below quality threshold",
				zap.Float64("silhouette", quality.SilhouetteScore),
				zap.Float64("threshold", r.params.QualityThreshold),
			)
		} else {
			log.Warn("primary algorithm produced a single cluster")
		}
	} else {
		log.Warn("primary algorithm failed", zap.Error(err))
	}

	// Alternatives: pick the best combined score among non-degenerate runs.
	var best *Result
	for i, v := range r.alternatives() {
		if i >= r.params.MaxAlternatives {
			break
		}
		altLabels, altErr := v.run(normalized, r.params)
		if altErr != nil {
			log.Warn("alternative algorithm failed", zap.String("algorithm", v.name), zap.Error(altErr))
			continue
		}
		quality, ok := r.evaluate(normalized, altLabels)
		if !ok {
			continue
		}
		if best == nil || quality.CombinedScore > best.Quality.CombinedScore {
			quality.Parameters = v.params
			best = r.algorithmicResult(students, altLabels, v.name, quality)
		}
	}
	if best != nil {
		return best, nil
	}

	log.Warn("all algorithmic attempts degenerate, using rule-based tiering")
	return r.ruleBasedResult(students), nil
}

// evaluate computes quality metrics for a labeling. Returns ok=false when
// the labeling is degenerate (fewer than two distinct non-noise labels).
func (r *Runner) evaluate(normalized [][]float64, labels []int) (model.QualityMetrics, bool) {
	distinct := countDistinct(labels)
	if distinct < 2 {
		return model.QualityMetrics{}, false
	}

	silhouette := silhouetteScore(normalized, labels)
	ch := calinskiHarabaszScore(normalized, labels)
	return model.QualityMetrics{
		SilhouetteScore:       silhouette,
		CalinskiHarabaszScore: ch,
		CombinedScore:         0.7*silhouette + 0.3*(ch/r.params.CHNormalization),
		NClusters:             distinct,
	}, true
}

func (r *Runner) algorithmicResult(students []model.StudentFeatures, labels []int, algorithm string, quality model.QualityMetrics) *Result {
	return &Result{
		Clusters:  mapToTiers(students, labels),
		Algorithm: algorithm,
		Quality:   quality,
	}
}

func (r *Runner) ruleBasedResult(students []model.StudentFeatures) *Result {
	clusters := ruleBasedTiers(students)
	nonEmpty := 0
	for _, tier := range clusters {
		if len(tier) > 0 {
			nonEmpty++
		}
	}
	return &Result{
		Clusters:  clusters,
		Algorithm: AlgorithmRuleBased,
		Quality: model.QualityMetrics{
			NClusters:  nonEmpty,
			Parameters: map[string]any{"fallback": true},
		},
		Fallback: true,
	}
}

func buildMatrix(students []model.StudentFeatures) [][]float64 {
	matrix := make([][]float64, len(students))
	for i, s := range students {
		matrix[i] = s.Features.Slice()
	}
	return matrix
}

func countDistinct(labels []int) int {
	seen := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		if l < 0 {
			// Noise points do not count as a cluster.
			continue
		}
		seen[l] = struct{}{}
	}
	return len(seen)
}
