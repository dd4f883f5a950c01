package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/service"
)

// ExecutionHandler drives the full conversion flow and exposes execution
// tracking.
type ExecutionHandler struct {
	svc    *service.IntentService
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(svc *service.IntentService, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{svc: svc, logger: logger}
}

type statusDTO struct {
	ID          string     `json:"id"`
	IntentID    string     `json:"intent_id,omitempty"`
	SolverID    string     `json:"solver_id,omitempty"`
	State       string     `json:"state"`
	Progress    float64    `json:"progress"`
	Step        string     `json:"step"`
	GasUsed     string     `json:"gas_used"`
	RealizedOut string     `json:"realized_out"`
	Errors      []errorDTO `json:"errors,omitempty"`
	StartedAt   string     `json:"started_at"`
	CompletedAt string     `json:"completed_at,omitempty"`
}

type errorDTO struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Step        string `json:"step"`
	Recoverable bool   `json:"recoverable"`
	At          string `json:"at"`
}

// Start runs discover, rank, plan, and execute for a conversion, returning
// the execution id to poll.
// POST /api/executions
func (h *ExecutionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	intent, err := intentFromRequest(req.AssetIn, req.AssetOut, req.AmountIn, req.AmountOutMin, req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	objective := domain.Objective(req.Objective)
	if objective == "" {
		objective = domain.ObjectiveBalanced
	}
	constraints := domain.RouteConstraints{
		MaxSlippage: req.MaxSlippage,
		MaxExecTime: time.Duration(req.MaxExecTimeMS) * time.Millisecond,
	}

	ranked, err := h.svc.DiscoverAndScoreRoutes(r.Context(), intent, objective, constraints)
	if err != nil || len(ranked) == 0 {
		if err != nil && (errors.Is(err, domain.ErrInvalidIntent) || errors.Is(err, domain.ErrUnsupportedAsset)) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusNotFound, "no viable routes")
		return
	}

	plan, err := h.svc.PlanExecutionStrategy(r.Context(), ranked[0].Route)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "strategy planning failed",
			slog.String("intent_id", intent.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "strategy planning failed")
		return
	}

	// Best-effort quote round: a winning quote pins the solver whose
	// settlement outcome feeds the reputation counters. No quotes within
	// the window is not an error here; the route executes unattributed.
	if analyses, err := h.svc.RequestQuotes(r.Context(), intent, domain.QuoteCriteria{}); err == nil {
		if selected, ok := h.svc.SelectQuote(r.Context(), analyses, domain.QuoteCriteria{}); ok {
			plan.SolverID = selected.Quote.SolverID
		}
	}

	id, err := h.svc.Execute(r.Context(), intent.ID, plan)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "intent is already executing")
			return
		}
		h.logger.ErrorContext(r.Context(), "execution start failed",
			slog.String("intent_id", intent.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "execution start failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"execution_id": id,
		"intent_id":    intent.ID,
		"timing":       string(plan.Timing),
	})
}

// Get returns the live or retained status for an attempt.
// GET /api/executions/{id}
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, err := h.svc.GetExecutionStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get execution failed",
			slog.String("execution_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load execution")
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(status))
}

// Cancel requests cooperative cancellation.
// DELETE /api/executions/{id}
func (h *ExecutionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.svc.CancelExecution(r.Context(), id) {
		writeError(w, http.StatusConflict, "execution is not cancellable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// List returns recent terminal attempts.
// GET /api/executions?limit=50
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)
	statuses, err := h.svc.RecentExecutions(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list executions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	out := make([]statusDTO, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, toStatusDTO(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": out})
}

func toStatusDTO(s domain.ExecutionStatus) statusDTO {
	dto := statusDTO{
		ID:          s.ID,
		IntentID:    s.IntentID,
		SolverID:    s.SolverID,
		State:       string(s.State),
		Progress:    s.Progress,
		Step:        s.Step,
		GasUsed:     bigString(s.GasUsed),
		RealizedOut: bigString(s.RealizedOut),
		StartedAt:   s.StartedAt.UTC().Format(time.RFC3339),
	}
	if s.CompletedAt != nil {
		dto.CompletedAt = s.CompletedAt.UTC().Format(time.RFC3339)
	}
	for _, e := range s.Errors {
		dto.Errors = append(dto.Errors, errorDTO{
			Code:        e.Code,
			Message:     e.Message,
			Step:        e.Step,
			Recoverable: e.Recoverable,
			At:          e.At.UTC().Format(time.RFC3339),
		})
	}
	return dto
}
