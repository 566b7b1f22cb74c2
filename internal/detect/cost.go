package detect

import (
	"fmt"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/metrics"
	"github.com/bagula/platform/internal/models"
)

// AnalyzeCost evaluates the cost rules over a session's model calls.
func AnalyzeCost(session *models.Session, turns []models.Turn, modelCalls []models.ModelCall, toolCalls []models.ToolCall, cfg config.CostThresholds) []models.Opportunity {
	var out []models.Opportunity

	for _, mc := range modelCalls {
		if cfg.CallCostUSD > 0 && mc.CostUSD > cfg.CallCostUSD {
			out = append(out, expensiveCall(session, mc, cfg))
		}
		if cfg.TokenCeiling > 0 && mc.TotalTokens > cfg.TokenCeiling {
			op := newOpportunity(session, models.TypeCost,
				severityByRatio(float64(mc.TotalTokens), float64(cfg.TokenCeiling)),
				"Oversized model call",
				fmt.Sprintf("Model call to %s used %d tokens, above the %d token ceiling.",
					mc.Model, mc.TotalTokens, cfg.TokenCeiling),
				"Trim the prompt or split the request to reduce context size.")
			out = append(out, op)
		}
	}

	out = append(out, repeatedCalls(session, modelCalls, cfg)...)
	out = append(out, premiumShortOutput(session, modelCalls, cfg)...)
	return out
}

func expensiveCall(session *models.Session, mc models.ModelCall, cfg config.CostThresholds) models.Opportunity {
	op := newOpportunity(session, models.TypeCost,
		severityByRatio(mc.CostUSD, cfg.CallCostUSD),
		"Expensive model call",
		fmt.Sprintf("Model call to %s cost $%.4f, above the $%.4f threshold.",
			mc.Model, mc.CostUSD, cfg.CallCostUSD),
		"Review whether a cheaper model or a shorter prompt would serve this call.")
	op.EstimatedSavingsUSD = f64ptr(mc.CostUSD - cfg.CallCostUSD)
	return op
}

// repeatedCalls flags more than RepeatCallLimit calls to the same
// (provider, model) pair within one session as a batching or caching
// opportunity. Counting is by pair only, not input hash.
func repeatedCalls(session *models.Session, modelCalls []models.ModelCall, cfg config.CostThresholds) []models.Opportunity {
	if cfg.RepeatCallLimit <= 0 {
		return nil
	}
	type pair struct{ provider, model string }
	counts := make(map[pair]int)
	for _, mc := range modelCalls {
		counts[pair{mc.Provider, mc.Model}]++
	}

	var out []models.Opportunity
	for p, n := range counts {
		if n > cfg.RepeatCallLimit {
			out = append(out, newOpportunity(session, models.TypeCost, models.SeverityMedium,
				"Repeated model calls",
				fmt.Sprintf("%d calls to %s/%s in one session; consider batching or caching.",
					n, p.provider, p.model),
				"Batch related prompts into one call or cache repeated results."))
		}
	}
	return out
}

// premiumShortOutput flags premium-model calls that produced short outputs
// as downgrade candidates. Savings are estimated as a configured fraction
// of the observed cost.
func premiumShortOutput(session *models.Session, modelCalls []models.ModelCall, cfg config.CostThresholds) []models.Opportunity {
	var out []models.Opportunity
	for _, mc := range modelCalls {
		if !metrics.IsPremium(mc.Model, cfg.PremiumModels) {
			continue
		}
		if mc.OutputTokens >= cfg.ShortOutputTokens {
			continue
		}
		op := newOpportunity(session, models.TypeCost, models.SeverityLow,
			"Premium model for short output",
			fmt.Sprintf("%s produced only %d output tokens; a smaller model likely suffices.",
				mc.Model, mc.OutputTokens),
			"Route short-output requests to a cheaper model tier.")
		op.EstimatedSavingsUSD = f64ptr(mc.CostUSD * cfg.DowngradeSavingPct)
		out = append(out, op)
	}
	return out
}
