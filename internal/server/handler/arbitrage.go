package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/service"
)

// ArbHandler serves arbitrage scanning and history endpoints.
type ArbHandler struct {
	svc    *service.IntentService
	store  domain.OpportunityStore // optional; Recent returns 501 when nil
	logger *slog.Logger
}

// NewArbHandler creates an ArbHandler.
func NewArbHandler(svc *service.IntentService, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{svc: svc, logger: logger}
}

// WithOpportunityStore attaches the store backing the Recent endpoint.
func (h *ArbHandler) WithOpportunityStore(store domain.OpportunityStore) *ArbHandler {
	h.store = store
	return h
}

type opportunityDTO struct {
	ID                string  `json:"id"`
	Pair              string  `json:"pair"`
	BuyVenue          string  `json:"buy_venue"`
	SellVenue         string  `json:"sell_venue"`
	BuyPrice          float64 `json:"buy_price"`
	SellPrice         float64 `json:"sell_price"`
	ProfitPct         float64 `json:"profit_pct"`
	ProfitAmount      string  `json:"profit_amount"`
	RequiredCapital   string  `json:"required_capital"`
	Complexity        string  `json:"complexity"`
	TimeSensitivityMS int64   `json:"time_sensitivity_ms"`
	Confidence        float64 `json:"confidence"`
	DetectedAt        string  `json:"detected_at"`
}

// Scan detects current cross-venue opportunities for a pair.
// GET /api/arbitrage/scan?asset_in=ETH&asset_out=USDC&amount=1000000
func (h *ArbHandler) Scan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assetIn, assetOut := q.Get("asset_in"), q.Get("asset_out")
	if assetIn == "" || assetOut == "" {
		writeError(w, http.StatusBadRequest, "asset_in and asset_out are required")
		return
	}
	amount, err := parseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opps, err := h.svc.DetectArbitrage(r.Context(), assetIn, assetOut, amount)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedAsset) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "arbitrage scan failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "arbitrage scan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": toOpportunityDTOs(opps)})
}

// Recent returns the most recently persisted opportunities.
// GET /api/arbitrage/recent?limit=20
func (h *ArbHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "opportunity persistence not configured")
		return
	}
	limit := parseLimit(r, 20, 200)
	opps, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": toOpportunityDTOs(opps)})
}

func toOpportunityDTOs(opps []domain.ArbitrageOpportunity) []opportunityDTO {
	out := make([]opportunityDTO, 0, len(opps))
	for _, o := range opps {
		out = append(out, opportunityDTO{
			ID:                o.ID,
			Pair:              o.Pair,
			BuyVenue:          o.BuyVenue,
			SellVenue:         o.SellVenue,
			BuyPrice:          o.BuyPrice,
			SellPrice:         o.SellPrice,
			ProfitPct:         o.ProfitPct,
			ProfitAmount:      bigString(o.ProfitAmount),
			RequiredCapital:   bigString(o.RequiredCapital),
			Complexity:        string(o.Complexity),
			TimeSensitivityMS: o.TimeSensitivity.Milliseconds(),
			Confidence:        o.Confidence,
			DetectedAt:        o.DetectedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
