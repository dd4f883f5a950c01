package router

import "math/big"

// expectedSlippage estimates the slippage fraction for one hop: a base
// term, a liquidity-impact term scaling inversely with the venue's
// liquidity score, and a size-impact term scaling with trade size relative
// to the notional ceiling. The same model applies to every hop of every
// route shape.
func (c Config) expectedSlippage(liquidity float64, amountIn *big.Int) float64 {
	s := c.BaseSlippage

	if liquidity < 0.01 {
		liquidity = 0.01
	}
	liqTerm := c.LiquidityImpact / liquidity
	if liqTerm > c.LiquidityCap {
		liqTerm = c.LiquidityCap
	}
	s += liqTerm

	notional, _ := new(big.Float).SetInt(amountIn).Float64()
	if c.NotionalCeiling > 0 {
		sizeTerm := notional / c.NotionalCeiling * c.SizeImpactCap
		if sizeTerm > c.SizeImpactCap {
			sizeTerm = c.SizeImpactCap
		}
		s += sizeTerm
	}
	return s
}
