package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clustering HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := buildRouter(e)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func buildRouter(e *env) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/courses/{courseID}/cluster", e.handleClusterCourse)
		r.Post("/cluster/batch", e.handleClusterBatch)
		r.Get("/courses/{courseID}/assignments", e.handleAssignments)
		r.Get("/courses/{courseID}/students/{studentID}", e.handleStudentAssignment)
		r.Get("/courses/{courseID}/quality", e.handleQualityHistory)
		r.Get("/performance", e.handlePerformance)
		r.Get("/alerts", e.handleAlerts)
		r.Post("/alerts/{alertID}/resolve", e.handleResolveAlert)
		r.Get("/thresholds", e.handleGetThresholds)
		r.Put("/thresholds", e.handleSetThresholds)
	})

	return r
}

func (e *env) handleClusterCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	var req struct {
		ImportJobID string `json:"import_job_id"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	summary, err := e.Orch.ClusterCourse(r.Context(), courseID, req.ImportJobID)
	if err != nil {
		zap.L().Error("cluster request failed", zap.Int64("course_id", courseID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (e *env) handleClusterBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImportJobID string `json:"import_job_id"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	batch, err := e.Orch.ClusterAllCourses(r.Context(), req.ImportJobID)
	if err != nil {
		zap.L().Error("batch cluster request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (e *env) handleAssignments(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	assignments, err := e.Store.AssignmentsForCourse(r.Context(), courseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (e *env) handleStudentAssignment(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course ID")
		return
	}
	studentID := chi.URLParam(r, "studentID")

	assignment, err := e.Store.AssignmentForStudent(r.Context(), studentID, courseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assignment == nil {
		writeError(w, http.StatusNotFound, "no assignment for student")
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (e *env) handleQualityHistory(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	lookback := 24 * time.Hour
	if raw := r.URL.Query().Get("lookback"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid lookback duration")
			return
		}
		lookback = d
	}

	history, err := e.Monitor.History(r.Context(), courseID, lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (e *env) handlePerformance(w http.ResponseWriter, r *http.Request) {
	lookback := 7 * 24 * time.Hour
	if raw := r.URL.Query().Get("lookback"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid lookback duration")
			return
		}
		lookback = d
	}

	summary, err := e.Monitor.Summary(r.Context(), lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (e *env) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var courseFilter *int64
	if raw := r.URL.Query().Get("course"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid course ID")
			return
		}
		courseFilter = &id
	}

	alerts, err := e.Monitor.ActiveAlerts(r.Context(), courseFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (e *env) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")

	var req struct {
		Notes string `json:"notes"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	alert, err := e.Monitor.ResolveAlert(r.Context(), alertID, req.Notes)
	switch {
	case eris.Is(err, store.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
		return
	case eris.Is(err, store.ErrAlertResolved):
		writeError(w, http.StatusConflict, "alert already resolved")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (e *env) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, e.Monitor.Thresholds())
}

func (e *env) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	var t model.Thresholds
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := e.Monitor.UpdateThresholds(t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e.Monitor.Thresholds())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func courseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
}
