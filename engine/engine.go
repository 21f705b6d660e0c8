/*
engine.go - Policy selection, tiering, rounding, and cap enforcement

PURPOSE:
  The evaluation algorithm. Given a transaction projection and the policy
  set for its card type, produce a point total plus the rationale for it.

SELECTION PIPELINE:
  1. Filter to enabled policies
  2. Stable-sort descending by priority (ties keep catalog order)
  3. Filter to policies whose conditions ALL match
  4. None match -> default result: nearest(amount) base points, no bonus
  5. First survivor wins; exactly one policy applies, no merging

CALCULATION:
  standard: round amount -> divide into blocks -> rate per block
  direct:   rate per currency unit; bonus = total-at-full-rate - base,
            a difference rather than an independent rounding, so the two
            roundings cannot drift apart

GATES AND CAPS:
  - Minimum monthly spend suppresses the entire bonus when unmet; base
    points are still computed.
  - Monthly bonus cap clamps the bonus to the period's remaining headroom.
  - TotalPoints == BasePoints + BonusPoints holds exactly in all paths.

PURITY:
  Evaluate performs no I/O and holds no per-call state. Identical inputs
  and identical usage snapshots yield identical results.

SEE ALSO:
  - condition.go: Matching semantics used by steps 3 and tier filtering
  - service.go: Composition root that resolves policies and usage figures
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Engine evaluates transactions against reward policies. It is stateless
// apart from registered per-card overrides and safe for concurrent use
// after construction.
type Engine struct {
	overrides map[CardTypeID]OverrideFunc
}

// New creates an Engine with no overrides registered.
func New() *Engine {
	return &Engine{overrides: make(map[CardTypeID]OverrideFunc)}
}

// Evaluate computes the points earned for input under the given policies.
// The policy slice order is the catalog order used for tie-breaking.
// It never returns an error: malformed conditions fail closed and an empty
// or nil policy set produces the default result.
func (e *Engine) Evaluate(input CalculationInput, policies []RewardPolicy) CalculationResult {
	applied := selectPolicy(input, policies)
	if applied == nil {
		return e.applyOverride(input, defaultResult(input))
	}

	result := e.evaluatePolicy(input, applied)
	return e.applyOverride(input, result)
}

// =============================================================================
// POLICY SELECTION
// =============================================================================

// selectPolicy returns the winning policy, or nil when none match.
func selectPolicy(input CalculationInput, policies []RewardPolicy) *RewardPolicy {
	candidates := make([]*RewardPolicy, 0, len(policies))
	for i := range policies {
		if policies[i].Enabled {
			candidates = append(candidates, &policies[i])
		}
	}

	// Stable: equal priorities keep catalog order, which decides the winner.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	for _, p := range candidates {
		if allConditionsMatch(p.Conditions, input) {
			return p
		}
	}
	return nil
}

func allConditionsMatch(conditions []RuleCondition, input CalculationInput) bool {
	for _, c := range conditions {
		if !Matches(c, input) {
			return false
		}
	}
	return true
}

// defaultResult is the zero-rule fallback: 1 point per currency unit,
// nearest-rounded, independent of any policy's configured strategy.
func defaultResult(input CalculationInput) CalculationResult {
	base := Round(RoundNearest, input.Amount)
	return CalculationResult{
		TotalPoints:    base,
		BasePoints:     base,
		BonusPoints:    decimal.Zero,
		PointsCurrency: issuerPointsLabel(input.Issuer),
		MinSpendMet:    true,
		Messages:       []string{"No specific reward rules applied"},
		Source:         ResolutionResolved,
	}
}

// issuerPointsLabel derives a display label for the default result from the
// card's issuer, e.g. "Meridian Points".
func issuerPointsLabel(issuer string) string {
	if issuer == "" {
		return "Points"
	}
	return issuer + " Points"
}

// =============================================================================
// PER-POLICY EVALUATION
// =============================================================================

func (e *Engine) evaluatePolicy(input CalculationInput, policy *RewardPolicy) CalculationResult {
	cfg := policy.Reward

	minSpendMet := minSpendMet(cfg, input)

	var tier *BonusTier
	effectiveMultiplier := cfg.BonusMultiplier
	if minSpendMet {
		tier = selectTier(input, cfg.BonusTiers)
		if tier != nil {
			effectiveMultiplier = tier.Multiplier
		}
	}

	base, bonus := computePoints(cfg, input.Amount, effectiveMultiplier, minSpendMet)

	actualBonus, remaining, capExhausted := applyMonthlyCap(cfg, input, bonus, minSpendMet)

	result := CalculationResult{
		TotalPoints:                 base.Add(actualBonus),
		BasePoints:                  base,
		BonusPoints:                 actualBonus,
		PointsCurrency:              cfg.PointsCurrency,
		RemainingMonthlyBonusPoints: remaining,
		MinSpendMet:                 minSpendMet,
		AppliedPolicy:               policy,
		AppliedTier:                 tier,
		Source:                      ResolutionResolved,
	}
	result.Messages = buildMessages(policy, tier, effectiveMultiplier, minSpendMet, capExhausted)
	return result
}

// minSpendMet implements the minimum spend gate. The gate is open when no
// threshold is configured; it is closed when a threshold exists but the
// period-to-date spend was not supplied.
func minSpendMet(cfg RewardConfig, input CalculationInput) bool {
	if cfg.MonthlyMinSpend == nil || !cfg.MonthlyMinSpend.IsPositive() {
		return true
	}
	if input.MonthlySpend == nil {
		return false
	}
	return input.MonthlySpend.Cmp(*cfg.MonthlyMinSpend) >= 0
}

// selectTier returns the highest-priority matching tier, or nil.
// Ties keep authoring order, same rule as policy selection.
func selectTier(input CalculationInput, tiers []BonusTier) *BonusTier {
	if len(tiers) == 0 {
		return nil
	}

	matched := make([]*BonusTier, 0, len(tiers))
	for i := range tiers {
		if Matches(tiers[i].Condition, input) {
			matched = append(matched, &tiers[i])
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched[0]
}

// computePoints returns (base, bonus) before cap enforcement. The bonus is
// zero whenever the minimum spend gate is closed.
func computePoints(cfg RewardConfig, amount, effectiveMultiplier decimal.Decimal, minSpendMet bool) (decimal.Decimal, decimal.Decimal) {
	switch cfg.Method {
	case MethodDirect:
		base := Round(cfg.PointsRounding, amount.Mul(cfg.BaseMultiplier))
		if !minSpendMet {
			return base, decimal.Zero
		}
		// Bonus as a difference from the full-rate total, not an independent
		// rounding, so base+bonus reproduces the full-rate result exactly.
		totalAtFullRate := Round(cfg.PointsRounding, amount.Mul(cfg.BaseMultiplier.Add(effectiveMultiplier)))
		return base, totalAtFullRate.Sub(base)

	default: // MethodStandard
		blockSize := cfg.BlockSize
		if blockSize <= 0 {
			blockSize = 1 // validation rejects this at load time
		}
		roundedAmount := Round(cfg.AmountRounding, amount)
		unitsPerBlock := roundedAmount.Div(decimal.NewFromInt(blockSize))

		base := Round(cfg.PointsRounding, unitsPerBlock.Mul(cfg.BaseMultiplier))
		if !minSpendMet {
			return base, decimal.Zero
		}
		bonus := Round(cfg.PointsRounding, unitsPerBlock.Mul(effectiveMultiplier))
		return base, bonus
	}
}

// applyMonthlyCap clamps the computed bonus to the period's remaining
// headroom. Returns the granted bonus, remaining headroom after this
// transaction (nil when uncapped), and whether the cap wiped a non-zero
// computed bonus to zero.
func applyMonthlyCap(cfg RewardConfig, input CalculationInput, bonus decimal.Decimal, minSpendMet bool) (decimal.Decimal, *decimal.Decimal, bool) {
	if cfg.MonthlyCap == nil || *cfg.MonthlyCap <= 0 || !minSpendMet {
		return bonus, nil, false
	}

	monthlyCap := decimal.NewFromInt(*cfg.MonthlyCap)
	used := decimal.Zero
	if input.UsedBonusPoints != nil {
		used = *input.UsedBonusPoints
	}

	if used.Cmp(monthlyCap) >= 0 {
		zero := decimal.Zero
		return decimal.Zero, &zero, bonus.IsPositive()
	}

	remainingCap := monthlyCap.Sub(used)
	if bonus.Cmp(remainingCap) > 0 {
		zero := decimal.Zero
		return remainingCap, &zero, false
	}

	remaining := remainingCap.Sub(bonus)
	return bonus, &remaining, false
}

// =============================================================================
// MESSAGES - First applicable wins, never concatenated
// =============================================================================

func buildMessages(policy *RewardPolicy, tier *BonusTier, effectiveMultiplier decimal.Decimal, minSpendMet, capExhausted bool) []string {
	switch {
	case !minSpendMet:
		threshold := decimal.Zero
		if policy.Reward.MonthlyMinSpend != nil {
			threshold = *policy.Reward.MonthlyMinSpend
		}
		return []string{fmt.Sprintf(
			"Bonus requires a minimum monthly spend of %s; threshold not met", threshold)}

	case capExhausted:
		return []string{"Monthly bonus cap reached; no bonus points awarded"}

	case tier != nil:
		return []string{fmt.Sprintf(
			"%s tier applied: bonus rate %s", tier.Name, effectiveMultiplier)}

	case policy.Description != "":
		return []string{policy.Description}

	default:
		return nil
	}
}
