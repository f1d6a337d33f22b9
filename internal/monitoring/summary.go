package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// AlgorithmSummary reports one algorithm's aggregate performance.
type AlgorithmSummary struct {
	AlgorithmName      string    `json:"algorithm_name"`
	AlgorithmParams    string    `json:"algorithm_params"`
	AvgSilhouetteScore float64   `json:"avg_silhouette_score"`
	AvgCombinedScore   float64   `json:"avg_combined_score"`
	AvgProcessingTime  float64   `json:"avg_processing_time"`
	AvgMemoryUsage     float64   `json:"avg_memory_usage"`
	TotalRuns          int       `json:"total_runs"`
	SuccessRate        float64   `json:"success_rate"`
	ThresholdMetRate   float64   `json:"threshold_met_rate"`
	LastUsed           time.Time `json:"last_used"`
}

// PerformanceSummary aggregates algorithm performance over a lookback window.
type PerformanceSummary struct {
	LookbackHours int                `json:"lookback_hours"`
	Algorithms    []AlgorithmSummary `json:"algorithms"`
	TotalRuns     int                `json:"total_runs"`
	ActiveAlerts  int                `json:"active_alerts"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Summary builds a performance summary over the lookback window.
func (m *Monitor) Summary(ctx context.Context, lookback time.Duration) (*PerformanceSummary, error) {
	since := m.now().UTC().Add(-lookback)

	perfs, err := m.store.ListAlgorithmPerformance(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: summary performance")
	}
	alerts, err := m.store.ActiveAlerts(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: summary alerts")
	}

	summary := &PerformanceSummary{
		LookbackHours: int(lookback.Hours()),
		ActiveAlerts:  len(alerts),
		GeneratedAt:   m.now().UTC(),
	}
	for _, p := range perfs {
		s := AlgorithmSummary{
			AlgorithmName:      p.AlgorithmName,
			AlgorithmParams:    p.AlgorithmParams,
			AvgSilhouetteScore: p.AvgSilhouetteScore,
			AvgCombinedScore:   p.AvgCombinedScore,
			AvgProcessingTime:  p.AvgProcessingTime,
			AvgMemoryUsage:     p.AvgMemoryUsage,
			TotalRuns:          p.TotalRuns,
			LastUsed:           p.LastUsed,
		}
		if p.TotalRuns > 0 {
			s.SuccessRate = float64(p.SuccessfulRuns) / float64(p.TotalRuns)
			s.ThresholdMetRate = float64(p.ThresholdMetCount) / float64(p.TotalRuns)
		}
		summary.Algorithms = append(summary.Algorithms, s)
		summary.TotalRuns += p.TotalRuns
	}
	return summary, nil
}
