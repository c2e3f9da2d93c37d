// SPDX-License-Identifier: MIT

// Package api exposes the trigger and operations endpoints of the
// orchestrator daemon.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/lifecycle"
	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/queue"
)

// Config tunes the HTTP surface.
type Config struct {
	// TriggerRatePerMin caps trigger requests per client IP. The guard makes
	// duplicate triggers harmless; the limiter just keeps a misfiring
	// scheduler from hammering the instance API.
	TriggerRatePerMin int
}

// Server routes trigger and queue operations.
type Server struct {
	guard  *lifecycle.Guard
	queue  queue.Queue
	cfg    Config
	logger zerolog.Logger
}

func NewServer(guard *lifecycle.Guard, q queue.Queue, cfg Config) *Server {
	if cfg.TriggerRatePerMin <= 0 {
		cfg.TriggerRatePerMin = 30
	}
	return &Server{guard: guard, queue: q, cfg: cfg, logger: log.WithComponent("api")}
}

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(httprate.Limit(
			s.cfg.TriggerRatePerMin,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		)).Post("/trigger", s.handleTrigger)

		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/queue/depth", s.handleQueueDepth)
		r.Get("/deadletters", s.handleListDeadLetters)
		r.Post("/deadletters/requeue", s.handleRequeueDeadLetters)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTrigger runs the duplicate-run guard for one scheduler trigger. The
// response status mirrors the guard's decision: skipped and started are both
// 200, anomalies and infra failures are 5xx.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var trigger model.Trigger
	if err := json.NewDecoder(r.Body).Decode(&trigger); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid trigger body: %v", err))
		return
	}
	ctx := log.ContextWithExecutionID(r.Context(), middleware.GetReqID(r.Context()))
	// Hard failures already carry a status and a structured body; the error
	// itself was logged and notified by the guard, so both paths respond
	// the same way.
	res, _ := s.guard.RequestRun(ctx, trigger)
	writeJSON(w, res.StatusCode, res)
}

type submitJobRequest struct {
	JobID      string          `json:"job_id,omitempty"`
	JobType    string          `json:"job_type"`
	Parameters map[string]any  `json:"parameters"`
	DataRange  model.DataRange `json:"data_range"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job body: %v", err))
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.New().String()
	}
	job := model.Job{
		JobID:      req.JobID,
		JobType:    req.JobType,
		Parameters: req.Parameters,
		DataRange:  req.DataRange,
	}
	if err := job.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.JobID})
}

func (s *Server) handleQueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queue.Depth(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"depth": depth})
}

func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.queue.ListDeadLetters(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type requeueRequest struct {
	JobIDs []string `json:"job_ids"`
}

func (s *Server) handleRequeueDeadLetters(w http.ResponseWriter, r *http.Request) {
	var req requeueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if len(req.JobIDs) == 0 {
		writeError(w, http.StatusBadRequest, "job_ids is required")
		return
	}
	n, err := s.queue.RequeueDeadLetters(r.Context(), req.JobIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "requeue failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"requeued": n})
}

// Serve runs the HTTP server until ctx is canceled, then drains for up to 10
// seconds.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("addr", addr).Msg("api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
