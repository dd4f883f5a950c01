package engine

import (
	"math"

	"github.com/solvernet/intentbot/internal/domain"
)

// Metrics derives post-hoc performance numbers for a terminal attempt by
// comparing the realized outcome against the route's estimates. GasUsed and
// the route's gas estimate are both in gas units.
func Metrics(final domain.ExecutionStatus, route domain.ExecutionRoute) domain.PerformanceMetrics {
	var m domain.PerformanceMetrics

	if final.GasUsed != nil && final.GasUsed.Sign() > 0 && route.Fees.GasFee != nil {
		eff := domain.RatioOf(route.Fees.GasFee, final.GasUsed)
		if eff > 1 {
			eff = 1
		}
		m.GasEfficiency = eff
	}

	if final.RealizedOut != nil && route.EstimatedOut != nil && route.EstimatedOut.Sign() > 0 {
		diff := domain.RatioOf(final.RealizedOut, route.EstimatedOut)
		m.RealizedSlippage = math.Abs(1 - diff)
		m.PriceImpact = m.RealizedSlippage
	}
	return m
}
