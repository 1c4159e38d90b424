// Package pricing estimates response cost from configured per-token rules.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/looplj/modelrelay/llm"
)

// Warning codes attached by cost estimation. Pricing never fails a call; it
// reports what it could not price.
const (
	WarnMissingRule          = "pricing.missing_rule"
	WarnInvalidRule          = "pricing.invalid_rule"
	WarnMissingUsage         = "pricing.missing_usage"
	WarnPartialUsage         = "pricing.partial_usage"
	WarnPartialReasoningRate = "pricing.partial_reasoning_rate"
)

// Rule prices one provider's models matched by pattern: an exact model id, a
// prefix ending in '*', or a lone '*'. Rates are USD per token.
type Rule struct {
	Provider              llm.ProviderID `json:"provider"`
	ModelPattern          string         `json:"model_pattern"`
	InputCostPerToken     float64        `json:"input_cost_per_token"`
	OutputCostPerToken    float64        `json:"output_cost_per_token"`
	ReasoningCostPerToken *float64       `json:"reasoning_cost_per_token,omitempty"`
}

func (r Rule) hasValidRates() bool {
	if !isValidRate(r.InputCostPerToken) || !isValidRate(r.OutputCostPerToken) {
		return false
	}

	return r.ReasoningCostPerToken == nil || isValidRate(*r.ReasoningCostPerToken)
}

func isValidRate(rate float64) bool {
	return !math.IsInf(rate, 0) && !math.IsNaN(rate) && rate >= 0
}

// Table is an ordered rule list. Matching prefers exact patterns, then the
// longest prefix; among equal scores the earliest rule wins.
type Table struct {
	Rules []Rule `json:"rules,omitempty"`
}

func NewTable(rules []Rule) *Table {
	return &Table{Rules: rules}
}

type matchScore struct {
	exact     bool
	prefixLen int
}

func (s matchScore) beats(other matchScore) bool {
	if s.exact != other.exact {
		return s.exact
	}

	return s.prefixLen > other.prefixLen
}

// FindRule returns the best-scoring valid rule for (provider, model). Matching
// rules with invalid rates are skipped and reported so a lower-scored valid
// rule can still apply.
func (t *Table) FindRule(provider llm.ProviderID, model string) (*Rule, []llm.Warning) {
	var (
		warnings  []llm.Warning
		bestIndex = -1
		bestScore matchScore
	)

	for index, rule := range t.Rules {
		if rule.Provider != provider {
			continue
		}

		score, ok := matchPattern(rule.ModelPattern, model)
		if !ok {
			continue
		}

		if !rule.hasValidRates() {
			warnings = append(warnings, llm.Warning{
				Code: WarnInvalidRule,
				Message: fmt.Sprintf(
					"invalid pricing rule for provider=%s, model_pattern=%s", provider, rule.ModelPattern,
				),
			})

			continue
		}

		if bestIndex < 0 || score.beats(bestScore) {
			bestIndex = index
			bestScore = score
		}
	}

	if bestIndex < 0 {
		return nil, warnings
	}

	return &t.Rules[bestIndex], warnings
}

func matchPattern(pattern, model string) (matchScore, bool) {
	if pattern == model {
		return matchScore{exact: true, prefixLen: len(pattern)}, true
	}

	if pattern == "*" {
		return matchScore{}, true
	}

	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		return matchScore{}, false
	}

	if !strings.HasPrefix(model, prefix) {
		return matchScore{}, false
	}

	return matchScore{prefixLen: len(prefix)}, true
}

// EstimateCost prices a response's usage. It returns either a cost whose
// components sum to the total, or no cost and at least one warning.
func EstimateCost(provider llm.ProviderID, model string, usage llm.Usage, table *Table) (*llm.Cost, []llm.Warning) {
	rule, warnings := table.FindRule(provider, model)
	if rule == nil {
		warnings = append(warnings, llm.Warning{
			Code: WarnMissingRule,
			Message: fmt.Sprintf(
				"no pricing rule configured for provider=%s, model=%s", provider, model,
			),
		})

		return nil, warnings
	}

	hasAnyUsage := usage.InputTokens != nil || usage.OutputTokens != nil || usage.ReasoningTokens != nil
	if !hasAnyUsage {
		warnings = append(warnings, llm.Warning{
			Code:    WarnMissingUsage,
			Message: fmt.Sprintf("usage tokens missing for provider=%s, model=%s", provider, model),
		})

		return nil, warnings
	}

	if usage.InputTokens == nil || usage.OutputTokens == nil {
		warnings = append(warnings, llm.Warning{
			Code: WarnPartialUsage,
			Message: fmt.Sprintf(
				"partial usage for provider=%s, model=%s; missing input or output tokens", provider, model,
			),
		})
	}

	inputCost := float64(tokensOrZero(usage.InputTokens)) * rule.InputCostPerToken
	outputCost := float64(tokensOrZero(usage.OutputTokens)) * rule.OutputCostPerToken

	var reasoningCost *float64

	if usage.ReasoningTokens != nil {
		if rule.ReasoningCostPerToken != nil {
			cost := float64(*usage.ReasoningTokens) * *rule.ReasoningCostPerToken
			reasoningCost = &cost
		} else {
			warnings = append(warnings, llm.Warning{
				Code: WarnPartialReasoningRate,
				Message: fmt.Sprintf(
					"reasoning tokens provided but no reasoning rate configured for provider=%s, model=%s",
					provider, model,
				),
			})
		}
	}

	total := inputCost + outputCost
	if reasoningCost != nil {
		total += *reasoningCost
	}

	return &llm.Cost{
		Currency:      "USD",
		InputCost:     inputCost,
		OutputCost:    outputCost,
		ReasoningCost: reasoningCost,
		TotalCost:     total,
		PricingSource: llm.PricingSourceConfigured,
	}, warnings
}

func tokensOrZero(tokens *int64) int64 {
	if tokens == nil {
		return 0
	}

	return *tokens
}
