package quote

import (
	"fmt"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// Reference scales for the additive point score. A surplus of 5% over the
// intent minimum, a 5% fee, or a 60s execution estimate earns/loses the
// full point allocation for its factor.
const (
	fullSurplusFrac = 0.05
	fullFeeFrac     = 0.05
	fullExecTime    = 60 * time.Second
)

// scoreQuote builds the QuoteAnalysis for one validated quote. Scoring is
// deterministic: the same quote, intent, solver, and criteria always yield
// the same score and recommendation.
func (m *Manager) scoreQuote(q domain.Quote, intent domain.Intent, solver domain.Solver, criteria domain.QuoteCriteria) domain.QuoteAnalysis {
	a := domain.QuoteAnalysis{Quote: q}
	score := 0.0

	// (a) surplus above the intent minimum.
	surplus := domain.RatioOf(q.AmountOut, intent.AmountOutMin) - 1
	score += clampFrac(surplus/fullSurplusFrac) * m.cfg.SurplusPoints
	if surplus > 0.01 {
		a.Positives = append(a.Positives, fmt.Sprintf("output %.1f%% above minimum", surplus*100))
	}

	// (b) fee as a fraction of the intent's input amount.
	feeFrac := domain.RatioOf(q.Fee, intent.AmountIn)
	score += (1 - clampFrac(feeFrac/fullFeeFrac)) * m.cfg.FeePoints
	if feeFrac > fullFeeFrac {
		a.Negatives = append(a.Negatives, fmt.Sprintf("fee %.2f%% of input", feeFrac*100))
	}

	// (c) execution-time estimate.
	execFrac := float64(q.ExecTime) / float64(fullExecTime)
	score += (1 - clampFrac(execFrac)) * m.cfg.SpeedPoints
	if q.ExecTime <= 10*time.Second {
		a.Positives = append(a.Positives, "fast execution estimate")
	}

	// (d) solver history.
	rep := (solver.Reputation + solver.SuccessRate()) / 2
	score += rep * m.cfg.ReputationPoints
	if rep >= 0.9 {
		a.Positives = append(a.Positives, "high solver reputation")
	} else if rep < 0.5 {
		a.Negatives = append(a.Negatives, "weak solver track record")
	}

	// (e) the quote's own confidence.
	score += clampFrac(q.Confidence) * m.cfg.ConfidencePoints

	// Caller criteria: hard exclusions first.
	excluded := false
	if criteria.MaxFeePct > 0 && feeFrac > criteria.MaxFeePct {
		a.Negatives = append(a.Negatives, "fee above caller maximum")
		excluded = true
	}
	if criteria.MaxExecTime > 0 && q.ExecTime > criteria.MaxExecTime {
		a.Negatives = append(a.Negatives, "execution time above caller maximum")
		excluded = true
	}
	if criteria.MinConfidence > 0 && q.Confidence < criteria.MinConfidence {
		a.Negatives = append(a.Negatives, "confidence below caller minimum")
		excluded = true
	}
	// Thin surplus margin is subtractive, not exclusionary: the caller's
	// slippage budget eats into the buffer the quote provides.
	if criteria.MaxSlippage > 0 && surplus < criteria.MaxSlippage {
		a.Negatives = append(a.Negatives, "surplus thinner than slippage budget")
		score -= 10
	}
	for _, id := range criteria.PreferredSolvers {
		if id == q.SolverID {
			a.Positives = append(a.Positives, "preferred solver")
			score += m.cfg.PreferredBonus
			break
		}
	}

	if score < 0 {
		score = 0
	}
	a.Score = score
	a.Risk = riskTier(rep, q.Confidence)

	switch {
	case excluded:
		a.Recommendation = domain.RecommendReject
	case score >= m.cfg.AcceptScore:
		a.Recommendation = domain.RecommendAccept
	case score < m.cfg.RejectScore:
		a.Recommendation = domain.RecommendReject
	default:
		a.Recommendation = domain.RecommendConsider
	}
	return a
}

func riskTier(rep, confidence float64) domain.QuoteRisk {
	blend := (rep + confidence) / 2
	switch {
	case blend >= 0.75:
		return domain.QuoteRiskLow
	case blend >= 0.45:
		return domain.QuoteRiskMedium
	default:
		return domain.QuoteRiskHigh
	}
}

func clampFrac(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
