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

// QuoteHandler serves quote solicitation over the solver network.
type QuoteHandler struct {
	svc    *service.IntentService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(svc *service.IntentService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{svc: svc, logger: logger}
}

type quoteRequest struct {
	AssetIn          string   `json:"asset_in"`
	AssetOut         string   `json:"asset_out"`
	AmountIn         string   `json:"amount_in"`
	AmountOutMin     string   `json:"amount_out_min"`
	User             string   `json:"user"`
	MaxSlippage      float64  `json:"max_slippage"`
	MaxFeePct        float64  `json:"max_fee_pct"`
	MaxExecTimeMS    int64    `json:"max_exec_time_ms"`
	MinConfidence    float64  `json:"min_confidence"`
	PreferredSolvers []string `json:"preferred_solvers"`
	Prioritize       string   `json:"prioritize"`
}

type quoteAnalysisDTO struct {
	QuoteID        string   `json:"quote_id"`
	SolverID       string   `json:"solver_id"`
	AmountOut      string   `json:"amount_out"`
	Fee            string   `json:"fee"`
	ExecTimeMS     int64    `json:"exec_time_ms"`
	Confidence     float64  `json:"confidence"`
	Score          float64  `json:"score"`
	Risk           string   `json:"risk"`
	Recommendation string   `json:"recommendation"`
	Positives      []string `json:"positives"`
	Negatives      []string `json:"negatives"`
}

// Request publishes an intent to the solver network and returns the
// analyzed quotes collected within the quote window, best first.
// POST /api/quotes/request
func (h *QuoteHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	intent, err := intentFromRequest(req.AssetIn, req.AssetOut, req.AmountIn, req.AmountOutMin, req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	criteria := domain.QuoteCriteria{
		MaxSlippage:      req.MaxSlippage,
		MaxFeePct:        req.MaxFeePct,
		MaxExecTime:      time.Duration(req.MaxExecTimeMS) * time.Millisecond,
		MinConfidence:    req.MinConfidence,
		PreferredSolvers: req.PreferredSolvers,
		Prioritize:       domain.QuotePriority(req.Prioritize),
	}

	analyses, err := h.svc.RequestQuotes(r.Context(), intent, criteria)
	if err != nil {
		if errors.Is(err, domain.ErrQuoteTimeout) {
			writeError(w, http.StatusGatewayTimeout, "no quotes received within timeout")
			return
		}
		if errors.Is(err, domain.ErrInvalidIntent) || errors.Is(err, domain.ErrUnsupportedAsset) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "quote request failed",
			slog.String("intent_id", intent.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "quote request failed")
		return
	}

	out := make([]quoteAnalysisDTO, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, quoteAnalysisDTO{
			QuoteID:        a.Quote.ID,
			SolverID:       a.Quote.SolverID,
			AmountOut:      bigString(a.Quote.AmountOut),
			Fee:            bigString(a.Quote.Fee),
			ExecTimeMS:     a.Quote.ExecTime.Milliseconds(),
			Confidence:     a.Quote.Confidence,
			Score:          a.Score,
			Risk:           string(a.Risk),
			Recommendation: string(a.Recommendation),
			Positives:      a.Positives,
			Negatives:      a.Negatives,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intent_id": intent.ID,
		"quotes":    out,
	})
}
