package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// SolverHandler serves the solver registry endpoints.
type SolverHandler struct {
	solvers domain.SolverStore
	logger  *slog.Logger
}

// NewSolverHandler creates a SolverHandler.
func NewSolverHandler(solvers domain.SolverStore, logger *slog.Logger) *SolverHandler {
	return &SolverHandler{solvers: solvers, logger: logger}
}

type solverDTO struct {
	ID              string  `json:"id"`
	Address         string  `json:"address"`
	Reputation      float64 `json:"reputation"`
	TotalFills      int64   `json:"total_fills"`
	SuccessfulFills int64   `json:"successful_fills"`
	Stake           string  `json:"stake"`
	Active          bool    `json:"active"`
	LastSeen        string  `json:"last_seen"`
}

// ListActive returns the active solver set, most reputable first.
// GET /api/solvers
func (h *SolverHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	solvers, err := h.solvers.ListActive(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list solvers failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list solvers")
		return
	}
	out := make([]solverDTO, 0, len(solvers))
	for _, s := range solvers {
		out = append(out, solverDTO{
			ID:              s.ID,
			Address:         s.Address,
			Reputation:      s.Reputation,
			TotalFills:      s.TotalFills,
			SuccessfulFills: s.SuccessfulFills,
			Stake:           bigString(s.Stake),
			Active:          s.Active,
			LastSeen:        s.LastSeen.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"solvers": out})
}

type registerSolverRequest struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Stake   string `json:"stake"`
}

// Register upserts a solver registration. New solvers start at full
// reputation until they accumulate fill history.
// POST /api/solvers
func (h *SolverHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSolverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "id and address are required")
		return
	}
	stakeStr := req.Stake
	if stakeStr == "" {
		stakeStr = "0"
	}
	stake, ok := newBig(stakeStr)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stake")
		return
	}

	solver := domain.Solver{
		ID:         req.ID,
		Address:    req.Address,
		Reputation: 1.0,
		Stake:      stake,
		Active:     true,
		LastSeen:   time.Now(),
	}
	if existing, err := h.solvers.GetByID(r.Context(), req.ID); err == nil {
		solver.Reputation = existing.Reputation
		solver.TotalFills = existing.TotalFills
		solver.SuccessfulFills = existing.SuccessfulFills
	}

	if err := h.solvers.Upsert(r.Context(), solver); err != nil {
		h.logger.ErrorContext(r.Context(), "register solver failed",
			slog.String("solver_id", req.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to register solver")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}
