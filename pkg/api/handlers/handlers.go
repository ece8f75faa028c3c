// Package handlers implements the Bastion HTTP API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"aidr-hq/bastion/pkg/api"
	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/orchestrator"
	"aidr-hq/bastion/pkg/store"
	"aidr-hq/bastion/pkg/verdict"
)

// Runner executes flows.
type Runner interface {
	Execute(ctx context.Context, req orchestrator.Request) verdict.TaskResult
	ListFlows() []verdict.FlowInfo
}

// VerdictLister reads recorded verdicts.
type VerdictLister interface {
	List(ctx context.Context, q store.Query) ([]store.Record, error)
}

// Handlers serves the API endpoints.
type Handlers struct {
	runner       Runner
	verdicts     VerdictLister
	maxBodyBytes int64
	logger       *slog.Logger
}

// New creates the API handlers. verdicts may be nil when the verdict
// store is disabled.
func New(runner Runner, verdicts VerdictLister, maxBodyBytes int64, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = config.DefaultMaxBodyBytes
	}
	return &Handlers{
		runner:       runner,
		verdicts:     verdicts,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With("component", "api"),
	}
}

// RunPipeline handles POST /api/v1/run_pipeline.
func (h *Handlers) RunPipeline(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req api.RunPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.WriteError(w, api.NewInvalidRequestError(
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", "", api.CodeRequestTooLarge))
			return
		}
		api.WriteError(w, api.NewInvalidRequestError("invalid JSON body: "+err.Error(), "", api.CodeInvalidJSON))
		return
	}
	if req.Prompt == nil {
		api.WriteError(w, api.NewInvalidRequestError("prompt is required", "prompt", api.CodeMissingField))
		return
	}
	if req.PipelineFlow == "" {
		req.PipelineFlow = "default"
	}

	result := h.runner.Execute(r.Context(), orchestrator.Request{
		Prompt:   *req.Prompt,
		Flow:     req.PipelineFlow,
		TaskID:   string(req.TaskID),
		Language: req.Language,
	})
	api.WriteJSON(w, http.StatusOK, result)
}

// ListFlows handles GET /api/v1/flows.
func (h *Handlers) ListFlows(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, api.FlowsResponse{Flows: h.runner.ListFlows()})
}

// ListVerdicts handles GET /api/v1/verdicts. Query parameters: task_id,
// flow, status, since (RFC 3339) and limit.
func (h *Handlers) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	if h.verdicts == nil {
		api.WriteError(w, api.NewUnavailableError("verdict store is disabled"))
		return
	}

	params := r.URL.Query()
	q := store.Query{
		TaskID: params.Get("task_id"),
		Flow:   params.Get("flow"),
	}
	if s := params.Get("status"); s != "" {
		status, err := verdict.ParseStatus(s)
		if err != nil {
			api.WriteError(w, api.NewInvalidRequestError(err.Error(), "status", api.CodeInvalidValue))
			return
		}
		q.Status = status
	}
	if s := params.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			api.WriteError(w, api.NewInvalidRequestError("since must be an RFC 3339 timestamp", "since", api.CodeInvalidValue))
			return
		}
		q.Since = since
	}
	if s := params.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			api.WriteError(w, api.NewInvalidRequestError("limit must be a positive integer", "limit", api.CodeInvalidValue))
			return
		}
		q.Limit = limit
	}

	records, err := h.verdicts.List(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "listing verdicts failed", "error", err)
		api.WriteError(w, api.NewServerError("failed to list verdicts"))
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	api.WriteJSON(w, http.StatusOK, api.VerdictsResponse{Verdicts: records})
}
