/*
validate.go - Load-time policy validation

PURPOSE:
  Invariant violations (negative block size, negative cap, unknown method)
  are policy-authoring errors. They are rejected when a policy is loaded or
  written, surfacing a configuration error to the administrative surface,
  so the engine never has to defend against them mid-calculation.
*/
package engine

// ValidatePolicy rejects a policy that violates an authoring invariant.
// Returns nil for a well-formed policy.
func ValidatePolicy(p RewardPolicy) error {
	if p.ID == "" {
		return &PolicyValidationError{PolicyID: p.ID, Field: "id", Reason: "must not be empty"}
	}
	if p.CardTypeID == "" {
		return &PolicyValidationError{PolicyID: p.ID, Field: "card_type_id", Reason: "must not be empty"}
	}
	return validateReward(p.ID, p.Reward)
}

func validateReward(id PolicyID, cfg RewardConfig) error {
	switch cfg.Method {
	case MethodStandard, MethodDirect, "":
	default:
		return &PolicyValidationError{PolicyID: id, Field: "calculation_method", Reason: "unknown: " + string(cfg.Method)}
	}

	if cfg.Method != MethodDirect && cfg.BlockSize < 0 {
		return &PolicyValidationError{PolicyID: id, Field: "block_size", Reason: "must not be negative"}
	}
	if cfg.BaseMultiplier.IsNegative() {
		return &PolicyValidationError{PolicyID: id, Field: "base_multiplier", Reason: "must not be negative"}
	}
	if cfg.BonusMultiplier.IsNegative() {
		return &PolicyValidationError{PolicyID: id, Field: "bonus_multiplier", Reason: "must not be negative"}
	}
	if cfg.MonthlyCap != nil && *cfg.MonthlyCap < 0 {
		return &PolicyValidationError{PolicyID: id, Field: "monthly_cap", Reason: "must not be negative"}
	}
	if cfg.MonthlyMinSpend != nil && cfg.MonthlyMinSpend.IsNegative() {
		return &PolicyValidationError{PolicyID: id, Field: "monthly_min_spend", Reason: "must not be negative"}
	}
	if !KnownRoundingStrategy(cfg.PointsRounding) {
		return &PolicyValidationError{PolicyID: id, Field: "points_rounding", Reason: "unknown: " + string(cfg.PointsRounding)}
	}
	if !KnownRoundingStrategy(cfg.AmountRounding) {
		return &PolicyValidationError{PolicyID: id, Field: "amount_rounding", Reason: "unknown: " + string(cfg.AmountRounding)}
	}

	for _, tier := range cfg.BonusTiers {
		if tier.Multiplier.IsNegative() {
			return &PolicyValidationError{PolicyID: id, Field: "bonus_tier " + tier.Name, Reason: "multiplier must not be negative"}
		}
	}

	switch cfg.SpendPeriod {
	case PeriodCalendarMonth, PeriodStatementMonth, PeriodRolling30Days, "":
	default:
		return &PolicyValidationError{PolicyID: id, Field: "spend_period", Reason: "unknown: " + string(cfg.SpendPeriod)}
	}

	return nil
}
