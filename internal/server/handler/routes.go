package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/service"
)

// RouteHandler serves route discovery and ranking.
type RouteHandler struct {
	svc    *service.IntentService
	logger *slog.Logger
}

// NewRouteHandler creates a RouteHandler.
func NewRouteHandler(svc *service.IntentService, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{svc: svc, logger: logger}
}

type discoverRequest struct {
	AssetIn       string  `json:"asset_in"`
	AssetOut      string  `json:"asset_out"`
	AmountIn      string  `json:"amount_in"`
	AmountOutMin  string  `json:"amount_out_min"`
	User          string  `json:"user"`
	Objective     string  `json:"objective"`
	MaxSlippage   float64 `json:"max_slippage"`
	MaxExecTimeMS int64   `json:"max_exec_time_ms"`
}

type routeDTO struct {
	ID               string   `json:"id"`
	Path             []string `json:"path"`
	Venues           []string `json:"venues"`
	AmountIn         string   `json:"amount_in"`
	EstimatedOut     string   `json:"estimated_out"`
	ProtocolFee      string   `json:"protocol_fee"`
	GasFee           string   `json:"gas_fee"`
	SlippageCost     string   `json:"slippage_cost"`
	TotalFee         string   `json:"total_fee"`
	ExpectedSlippage float64  `json:"expected_slippage"`
	EstimatedTimeMS  int64    `json:"estimated_time_ms"`
	Confidence       float64  `json:"confidence"`
	Score            float64  `json:"score"`
}

// Discover finds and ranks routes for a conversion.
// POST /api/routes/discover
func (h *RouteHandler) Discover(w http.ResponseWriter, r *http.Request) {
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
	if err != nil {
		if errors.Is(err, domain.ErrNoRoutes) {
			writeError(w, http.StatusNotFound, "no viable routes")
			return
		}
		if errors.Is(err, domain.ErrInvalidIntent) || errors.Is(err, domain.ErrUnsupportedAsset) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "route discovery failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "route discovery failed")
		return
	}

	out := make([]routeDTO, 0, len(ranked))
	for _, rr := range ranked {
		out = append(out, toRouteDTO(rr.Route, rr.Score))
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": out})
}

func toRouteDTO(route domain.ExecutionRoute, score float64) routeDTO {
	return routeDTO{
		ID:               route.ID,
		Path:             route.Path,
		Venues:           route.Venues,
		AmountIn:         bigString(route.AmountIn),
		EstimatedOut:     bigString(route.EstimatedOut),
		ProtocolFee:      bigString(route.Fees.ProtocolFee),
		GasFee:           bigString(route.Fees.GasFee),
		SlippageCost:     bigString(route.Fees.SlippageCost),
		TotalFee:         bigString(route.Fees.Total),
		ExpectedSlippage: route.ExpectedSlippage,
		EstimatedTimeMS:  route.EstimatedTime.Milliseconds(),
		Confidence:       route.Confidence,
		Score:            score,
	}
}

func intentFromRequest(assetIn, assetOut, amountIn, amountOutMin, user string) (domain.Intent, error) {
	amount, err := parseAmount(amountIn)
	if err != nil {
		return domain.Intent{}, err
	}
	minOut := "0"
	if amountOutMin != "" {
		minOut = amountOutMin
	}
	outMin, ok := newBig(minOut)
	if !ok {
		return domain.Intent{}, errors.New("invalid amount_out_min")
	}
	if user == "" {
		user = "api"
	}
	return domain.Intent{
		ID:           uuid.NewString(),
		User:         user,
		AssetIn:      assetIn,
		AssetOut:     assetOut,
		AmountIn:     amount,
		AmountOutMin: outMin,
		Status:       domain.IntentPending,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(5 * time.Minute),
	}, nil
}
