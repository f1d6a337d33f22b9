// Package orchestrator drives clustering runs end to end: feature
// collection, clustering, atomic persistence and quality recording.
package orchestrator

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edusight/cluster-cli/internal/clusterml"
	"github.com/edusight/cluster-cli/internal/config"
	"github.com/edusight/cluster-cli/internal/features"
	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/monitoring"
	"github.com/edusight/cluster-cli/internal/store"
)

// Orchestrator coordinates one or many course clustering runs.
type Orchestrator struct {
	cfg       config.ClusterConfig
	store     store.Store
	extractor *features.Extractor
	runner    *clusterml.Runner
	monitor   *monitoring.Monitor
}

// New wires an Orchestrator from its collaborators.
func New(cfg config.ClusterConfig, st store.Store, extractor *features.Extractor, runner *clusterml.Runner, monitor *monitoring.Monitor) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		extractor: extractor,
		runner:    runner,
		monitor:   monitor,
	}
}

// ClusterCourse runs the full pipeline for one course: extract features for
// every enrolled student, cluster, replace the course's assignments
// atomically, and record quality metrics. Students without progress data are
// skipped, not failed.
func (o *Orchestrator) ClusterCourse(ctx context.Context, courseID int64, importJobID string) (*model.RunSummary, error) {
	log := zap.L().With(zap.Int64("course_id", courseID))
	started := time.Now()
	memBefore := heapAllocMB()

	state := model.RunStateCollectingFeatures
	log.Info("clustering run started", zap.String("state", string(state)))

	studentIDs, err := o.store.ListStudents(ctx, courseID)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: list students for course %d", courseID)
	}

	var feats []model.StudentFeatures
	skipped := 0
	for _, studentID := range studentIDs {
		sf, err := o.extractor.Extract(ctx, studentID, courseID)
		if err != nil {
			if eris.Is(err, features.ErrNoProgressData) {
				log.Debug("skipping student without progress data", zap.String("student_id", studentID))
				skipped++
				continue
			}
			return nil, eris.Wrapf(err, "orchestrator: extract features for student %s", studentID)
		}
		feats = append(feats, *sf)
	}
	if len(feats) == 0 {
		return nil, eris.Errorf("orchestrator: no valid student features for course %d", courseID)
	}

	state = model.RunStateClustering
	log.Info("features collected",
		zap.String("state", string(state)),
		zap.Int("students", len(feats)),
		zap.Int("skipped", skipped),
	)

	result, err := o.runner.Run(feats)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: cluster course %d", courseID)
	}

	state = model.RunStatePersisting
	assignments := buildAssignments(result, importJobID)
	persisted, err := o.store.ReplaceAssignments(ctx, courseID, assignments)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: persist assignments for course %d", courseID)
	}

	state = model.RunStateRecordingMetrics
	elapsed := time.Since(started).Seconds()
	memUsed := heapAllocMB() - memBefore
	if memUsed < 0 {
		memUsed = 0
	}

	if err := o.monitor.Record(ctx, monitoring.RunRecord{
		CourseID:              courseID,
		Algorithm:             result.Algorithm,
		AlgorithmParams:       marshalParams(result.Quality.Parameters),
		Quality:               result.Quality,
		TotalStudents:         len(studentIDs),
		ClusteredStudents:     persisted,
		ProcessingTimeSeconds: elapsed,
		MemoryUsageMB:         memUsed,
		ImportJobID:           importJobID,
	}); err != nil {
		// Monitoring is advisory; the assignments are already committed.
		log.Warn("failed to record run metrics", zap.Error(err))
	}

	state = model.RunStateDone
	summary := &model.RunSummary{
		CourseID:              courseID,
		TotalStudents:         len(studentIDs),
		ClusteredStudents:     persisted,
		SkippedStudents:       skipped,
		AlgorithmUsed:         result.Algorithm,
		Quality:               result.Quality,
		Labels:                summarizeLabels(result.Clusters),
		ProcessingTimeSeconds: elapsed,
		MemoryUsageMB:         memUsed,
		State:                 state,
		ImportJobID:           importJobID,
		ClusteredAt:           time.Now().UTC(),
	}
	log.Info("clustering run complete",
		zap.String("state", string(state)),
		zap.String("algorithm", result.Algorithm),
		zap.Int("clustered", persisted),
		zap.Float64("silhouette", result.Quality.SilhouetteScore),
		zap.Float64("seconds", elapsed),
	)
	return summary, nil
}

// ClusterAllCourses clusters every known course, bounded by the configured
// concurrency. Failures are collected per course; one bad course never stops
// the batch.
func (o *Orchestrator) ClusterAllCourses(ctx context.Context, importJobID string) (*model.BatchSummary, error) {
	courseIDs, err := o.store.ListCourses(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: list courses")
	}

	concurrency := o.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	batch := &model.BatchSummary{
		TotalCourses:     len(courseIDs),
		AlgorithmSummary: make(map[string]int),
		Errors:           make(map[int64]string),
		ImportJobID:      importJobID,
		ClusteredAt:      time.Now().UTC(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, courseID := range courseIDs {
		g.Go(func() error {
			summary, err := o.ClusterCourse(gctx, courseID, importJobID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Error("course clustering failed",
					zap.Int64("course_id", courseID),
					zap.Error(err),
				)
				batch.FailedCourses++
				batch.Errors[courseID] = err.Error()
				return nil
			}
			batch.SuccessfulCourses++
			batch.TotalStudents += summary.TotalStudents
			batch.TotalClustered += summary.ClusteredStudents
			batch.AlgorithmSummary[summary.AlgorithmUsed]++
			batch.CourseResults = append(batch.CourseResults, *summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "orchestrator: batch clustering")
	}

	zap.L().Info("batch clustering complete",
		zap.Int("courses", batch.TotalCourses),
		zap.Int("successful", batch.SuccessfulCourses),
		zap.Int("failed", batch.FailedCourses),
		zap.Int("students", batch.TotalClustered),
	)
	return batch, nil
}

// buildAssignments flattens a clustering result into persistable rows.
func buildAssignments(result *clusterml.Result, importJobID string) []model.ClusterAssignment {
	var out []model.ClusterAssignment
	for label, students := range result.Clusters {
		for _, s := range students {
			out = append(out, model.ClusterAssignment{
				StudentID:       s.StudentID,
				ClusterLabel:    label,
				ClusterScore:    s.ClusterScore,
				AttendanceRate:  s.AttendanceRate,
				CompletionRate:  s.CompletionRate,
				OverallProgress: s.OverallProgress,
				MLMetadata: &model.MLMetadata{
					Algorithm:      result.Algorithm,
					QualityMetrics: result.Quality,
					Features:       s.Features,
				},
				ImportJobID: importJobID,
			})
		}
	}
	return out
}

func summarizeLabels(clusters map[model.Label][]model.ClusteredStudent) map[model.Label]model.LabelSummary {
	out := make(map[model.Label]model.LabelSummary, len(clusters))
	for label, students := range clusters {
		s := model.LabelSummary{Count: len(students)}
		if len(students) == 0 {
			out[label] = s
			continue
		}
		for _, st := range students {
			s.AvgAttendance += st.AttendanceRate
			s.AvgCompletion += st.CompletionRate
			s.AvgOverall += st.OverallProgress
			s.AvgConfidence += st.ClusterScore
		}
		n := float64(len(students))
		s.AvgAttendance /= n
		s.AvgCompletion /= n
		s.AvgOverall /= n
		s.AvgConfidence /= n
		out[label] = s
	}
	return out
}

func marshalParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func heapAllocMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}
