package clusterml

import (
	"sort"

	"github.com/edusight/cluster-cli/internal/model"
)

// mapToTiers converts raw cluster indices into A/B/C risk tiers. Each
// discovered cluster is ranked by its mean of (attendance, completion,
// overall); the best performing cluster becomes A, the next B, and any
// remaining clusters collapse into C.
func mapToTiers(students []model.StudentFeatures, labels []int) map[model.Label][]model.ClusteredStudent {
	tiers := map[model.Label][]model.ClusteredStudent{
		model.LabelA: {},
		model.LabelB: {},
		model.LabelC: {},
	}

	groups := make(map[int][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}

	type ranked struct {
		label       int
		performance float64
	}
	order := make([]ranked, 0, len(groups))
	for label, idx := range groups {
		sum := 0.0
		for _, i := range idx {
			f := students[i].Features
			sum += (f.AttendanceRate + f.CompletionRate + f.OverallProgress) / 3
		}
		order = append(order, ranked{label: label, performance: sum / float64(len(idx))})
	}
	sort.Slice(order, func(a, b int) bool {
		if order[a].performance != order[b].performance {
			return order[a].performance > order[b].performance
		}
		return order[a].label < order[b].label
	})

	for rank, group := range order {
		tier := model.LabelC
		if rank < len(model.Labels) {
			tier = model.Labels[rank]
		}
		for _, i := range groups[group.label] {
			tiers[tier] = append(tiers[tier], toClustered(students[i]))
		}
	}
	return tiers
}

// ruleBasedTiers assigns tiers from fixed thresholds on the three core
// metrics. This path has no numeric dependencies and always produces a
// full partition.
func ruleBasedTiers(students []model.StudentFeatures) map[model.Label][]model.ClusteredStudent {
	tiers := map[model.Label][]model.ClusteredStudent{
		model.LabelA: {},
		model.LabelB: {},
		model.LabelC: {},
	}
	for _, s := range students {
		f := s.Features
		var tier model.Label
		switch {
		case f.AttendanceRate > 70 && f.CompletionRate > 60 && f.OverallProgress > 70:
			tier = model.LabelA
		case f.AttendanceRate > 50 || f.CompletionRate > 40 || f.OverallProgress > 50:
			tier = model.LabelB
		default:
			tier = model.LabelC
		}
		tiers[tier] = append(tiers[tier], toClustered(s))
	}
	return tiers
}

func toClustered(s model.StudentFeatures) model.ClusteredStudent {
	f := s.Features
	return model.ClusteredStudent{
		StudentID:       s.StudentID,
		AttendanceRate:  f.AttendanceRate,
		CompletionRate:  f.CompletionRate,
		OverallProgress: f.OverallProgress,
		ClusterScore:    confidence(f),
		Features:        f,
	}
}

// confidence is the assignment score derived from the three core metrics,
// clamped to [0, 1].
func confidence(f model.FeatureVector) float64 {
	c := (f.AttendanceRate + f.CompletionRate + f.OverallProgress) / 300
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
