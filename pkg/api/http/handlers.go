package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/internal/application/workers"
	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunRequest represents a graph execution request
type RunRequest struct {
	Graph       *domain.GraphSpec `json:"graph" binding:"required"`
	Concurrency *int              `json:"concurrency"`
}

// RunResponse represents the outcome of a run
type RunResponse struct {
	RunID  string                 `json:"run_id"`
	Status domain.RunStatus       `json:"status"`
	Result map[string]interface{} `json:"result"`
	Error  *domain.ErrorSummary   `json:"error"`
}

// SubmitResponse represents an accepted asynchronous run
type SubmitResponse struct {
	RunID       string           `json:"run_id"`
	Status      domain.RunStatus `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"orchestrator": "ok"}
	status := http.StatusOK
	healthy := true

	if s.health != nil {
		pool := s.health.GetStatus()
		checks["workers"] = pool
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
			healthy = false
		}
	}

	state := "healthy"
	if !healthy {
		state = "unhealthy"
	}

	c.JSON(status, gin.H{
		"ok":        healthy,
		"status":    state,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// bindRunRequest decodes a run request and resolves its concurrency
func (s *Server) bindRunRequest(c *gin.Context) (*domain.GraphSpec, int, bool) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid request", zap.Error(err))
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return nil, 0, false
	}

	concurrency := s.defaultConcurrency
	if req.Concurrency != nil {
		concurrency = *req.Concurrency
	}
	if concurrency < 1 {
		abortWithError(c, http.StatusBadRequest, "INVALID_CONCURRENCY", orchestrator.ErrInvalidConcurrency.Error())
		return nil, 0, false
	}

	return req.Graph, concurrency, true
}

// handleExecuteGraph runs a graph to completion and returns its result
func (s *Server) handleExecuteGraph(c *gin.Context) {
	spec, concurrency, ok := s.bindRunRequest(c)
	if !ok {
		return
	}

	// Started runs complete even if the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	runID := uuid.New().String()

	running := domain.NewRunningRecord(runID)
	if err := s.store.Save(ctx, running); err != nil {
		s.logger.Error("failed to save run record", zap.String("run_id", runID), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to record run")
		return
	}

	result, err := s.runner.RunWithID(ctx, runID, spec, concurrency)
	if err != nil {
		s.logger.Error("run could not be executed", zap.String("run_id", runID), zap.Error(err))
		_ = s.store.Delete(ctx, runID)
		abortWithError(c, http.StatusInternalServerError, "EXECUTION_FAILED", err.Error())
		return
	}

	record := &domain.RunRecord{RunResult: *result, SubmittedAt: running.SubmittedAt}
	if err := s.store.Save(ctx, record); err != nil {
		s.logger.Error("failed to save run record", zap.String("run_id", runID), zap.Error(err))
	}

	c.JSON(http.StatusOK, RunResponse{
		RunID:  result.RunID,
		Status: result.Status,
		Result: result.Result,
		Error:  result.Error,
	})
}

// handleSubmitRun queues a graph for asynchronous execution
func (s *Server) handleSubmitRun(c *gin.Context) {
	if s.submitter == nil {
		abortWithError(c, http.StatusServiceUnavailable, "ASYNC_NOT_AVAILABLE", "asynchronous execution is not configured")
		return
	}

	spec, concurrency, ok := s.bindRunRequest(c)
	if !ok {
		return
	}

	runID, err := s.submitter.Submit(c.Request.Context(), spec, concurrency)
	switch {
	case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrPoolStopped):
		abortWithError(c, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", err.Error())
		return
	case errors.Is(err, orchestrator.ErrInvalidConcurrency):
		abortWithError(c, http.StatusBadRequest, "INVALID_CONCURRENCY", err.Error())
		return
	case err != nil:
		s.logger.Error("failed to submit run", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "SUBMISSION_FAILED", err.Error())
		return
	}

	c.Header("Location", "/api/v1/runs/"+runID)
	c.JSON(http.StatusAccepted, SubmitResponse{
		RunID:       runID,
		Status:      domain.RunStatusRunning,
		SubmittedAt: time.Now().UTC(),
	})
}

// handleGetRun returns the stored record of a run
func (s *Server) handleGetRun(c *gin.Context) {
	runID := c.Param("id")

	record, err := s.store.Get(c.Request.Context(), runID)
	if errors.Is(err, domain.ErrRunNotFound) {
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", zap.String("run_id", runID), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load run")
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleListRuns lists the ids of stored runs
func (s *Server) handleListRuns(c *gin.Context) {
	ids, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  ids,
		"total": len(ids),
	})
}

// handleDeleteRun removes a finished run's record
func (s *Server) handleDeleteRun(c *gin.Context) {
	runID := c.Param("id")

	record, err := s.store.Get(c.Request.Context(), runID)
	if errors.Is(err, domain.ErrRunNotFound) {
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", "run not found")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load run")
		return
	}
	if !record.Status.IsTerminal() {
		abortWithError(c, http.StatusConflict, "RUN_IN_PROGRESS", "run has not finished")
		return
	}

	if err := s.store.Delete(c.Request.Context(), runID); err != nil {
		s.logger.Error("failed to delete run", zap.String("run_id", runID), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to delete run")
		return
	}

	c.Status(http.StatusNoContent)
}
