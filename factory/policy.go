/*
Package factory provides JSON to Go reward policy conversion.

PURPOSE:
  Converts JSON policy definitions into engine.RewardPolicy values. This
  enables policy configuration without code changes - a program team can
  define card rules in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify reward rules
  - Easy integration with the admin API
  - Version control for policy definitions
  - Database storage of policy rows (conditions/reward as JSON columns)

JSON SCHEMA:
  {
    "id": "aurora-online-bonus",
    "card_type_id": "meridian-aurora",
    "name": "Online spend bonus",
    "priority": 10,
    "enabled": true,
    "conditions": [
      {"kind": "transaction_type", "op": "equals", "values": ["online"]}
    ],
    "reward": {
      "calculation_method": "standard",
      "base_multiplier": "1",
      "bonus_multiplier": "9",
      "block_size": 5,
      "points_rounding": "floor",
      "monthly_cap": 2000,
      "points_currency": "Miles"
    }
  }

KEY FEATURES:
  - Validates the decoded policy against the engine's authoring invariants
  - Sets sensible defaults (standard method, enabled, priority 0)
  - Round-trips: ToJSON(FromJSON(x)) preserves semantics

USAGE:
  factory := NewPolicyFactory()

  policy, err := factory.ParsePolicy(jsonString)

  // Store round-trip
  raw, err := factory.MarshalPolicy(policy)

SEE ALSO:
  - engine/types.go: RewardPolicy definition
  - engine/validate.go: The invariants enforced after decoding
  - store/sqlite: Persists conditions and reward as JSON columns
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a reward policy.
type PolicyJSON struct {
	ID          string          `json:"id"`
	CardTypeID  string          `json:"card_type_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"` // default true
	Conditions  []ConditionJSON `json:"conditions,omitempty"`
	Reward      RewardJSON      `json:"reward"`
}

// ConditionJSON represents one rule condition. Sub is only meaningful for
// kind "compound".
type ConditionJSON struct {
	Kind   string           `json:"kind"`
	Op     string           `json:"op"`
	Values []string         `json:"values,omitempty"`
	Min    *decimal.Decimal `json:"min,omitempty"`
	Max    *decimal.Decimal `json:"max,omitempty"`
	Sub    []ConditionJSON  `json:"sub,omitempty"`
}

// RewardJSON represents a policy's reward configuration. Multipliers decode
// from JSON numbers or strings; strings avoid float precision loss.
type RewardJSON struct {
	Method          string           `json:"calculation_method,omitempty"` // default "standard"
	BaseMultiplier  decimal.Decimal  `json:"base_multiplier"`
	BonusMultiplier decimal.Decimal  `json:"bonus_multiplier,omitempty"`
	PointsRounding  string           `json:"points_rounding,omitempty"`
	AmountRounding  string           `json:"amount_rounding,omitempty"`
	BlockSize       int64            `json:"block_size,omitempty"`
	BonusTiers      []TierJSON       `json:"bonus_tiers,omitempty"`
	MonthlyCap      *int64           `json:"monthly_cap,omitempty"`
	MonthlyMinSpend *decimal.Decimal `json:"monthly_min_spend,omitempty"`
	SpendPeriod     string           `json:"spend_period,omitempty"`
	PointsCurrency  string           `json:"points_currency,omitempty"`
}

// TierJSON represents a conditional bonus-rate override.
type TierJSON struct {
	Name       string          `json:"name"`
	Priority   int             `json:"priority,omitempty"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Condition  ConditionJSON   `json:"condition"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to engine structs and back.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated RewardPolicy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (engine.RewardPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return engine.RewardPolicy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a validated engine.RewardPolicy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (engine.RewardPolicy, error) {
	enabled := true
	if pj.Enabled != nil {
		enabled = *pj.Enabled
	}

	policy := engine.RewardPolicy{
		ID:          engine.PolicyID(pj.ID),
		CardTypeID:  engine.CardTypeID(pj.CardTypeID),
		Name:        pj.Name,
		Description: pj.Description,
		Priority:    pj.Priority,
		Enabled:     enabled,
		Conditions:  conditionsFromJSON(pj.Conditions),
		Reward:      rewardFromJSON(pj.Reward),
	}

	if err := engine.ValidatePolicy(policy); err != nil {
		return engine.RewardPolicy{}, err
	}
	return policy, nil
}

// ToJSON converts a RewardPolicy to its JSON representation.
func (f *PolicyFactory) ToJSON(policy engine.RewardPolicy) PolicyJSON {
	enabled := policy.Enabled
	return PolicyJSON{
		ID:          string(policy.ID),
		CardTypeID:  string(policy.CardTypeID),
		Name:        policy.Name,
		Description: policy.Description,
		Priority:    policy.Priority,
		Enabled:     &enabled,
		Conditions:  conditionsToJSON(policy.Conditions),
		Reward:      rewardToJSON(policy.Reward),
	}
}

// MarshalPolicy serializes a policy as a JSON string.
func (f *PolicyFactory) MarshalPolicy(policy engine.RewardPolicy) (string, error) {
	raw, err := json.Marshal(f.ToJSON(policy))
	if err != nil {
		return "", fmt.Errorf("failed to marshal policy %s: %w", policy.ID, err)
	}
	return string(raw), nil
}

// =============================================================================
// CONDITION CODEC - Used directly by the SQLite store's JSON columns
// =============================================================================

// MarshalConditions serializes a condition list as a JSON string.
func MarshalConditions(conditions []engine.RuleCondition) (string, error) {
	raw, err := json.Marshal(conditionsToJSON(conditions))
	if err != nil {
		return "", fmt.Errorf("failed to marshal conditions: %w", err)
	}
	return string(raw), nil
}

// UnmarshalConditions decodes a JSON condition list. An empty string decodes
// to no conditions.
func UnmarshalConditions(raw string) ([]engine.RuleCondition, error) {
	if raw == "" {
		return nil, nil
	}
	var cjs []ConditionJSON
	if err := json.Unmarshal([]byte(raw), &cjs); err != nil {
		return nil, fmt.Errorf("failed to parse conditions JSON: %w", err)
	}
	return conditionsFromJSON(cjs), nil
}

// MarshalReward serializes a reward configuration as a JSON string.
func MarshalReward(reward engine.RewardConfig) (string, error) {
	raw, err := json.Marshal(rewardToJSON(reward))
	if err != nil {
		return "", fmt.Errorf("failed to marshal reward config: %w", err)
	}
	return string(raw), nil
}

// UnmarshalReward decodes a JSON reward configuration.
func UnmarshalReward(raw string) (engine.RewardConfig, error) {
	var rj RewardJSON
	if err := json.Unmarshal([]byte(raw), &rj); err != nil {
		return engine.RewardConfig{}, fmt.Errorf("failed to parse reward JSON: %w", err)
	}
	return rewardFromJSON(rj), nil
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func conditionsFromJSON(cjs []ConditionJSON) []engine.RuleCondition {
	if len(cjs) == 0 {
		return nil
	}
	out := make([]engine.RuleCondition, len(cjs))
	for i, cj := range cjs {
		out[i] = conditionFromJSON(cj)
	}
	return out
}

func conditionFromJSON(cj ConditionJSON) engine.RuleCondition {
	return engine.RuleCondition{
		Kind:   engine.ConditionKind(cj.Kind),
		Op:     engine.ConditionOp(cj.Op),
		Values: cj.Values,
		Min:    cj.Min,
		Max:    cj.Max,
		Sub:    conditionsFromJSON(cj.Sub),
	}
}

func conditionsToJSON(conditions []engine.RuleCondition) []ConditionJSON {
	if len(conditions) == 0 {
		return nil
	}
	out := make([]ConditionJSON, len(conditions))
	for i, c := range conditions {
		out[i] = conditionToJSON(c)
	}
	return out
}

func conditionToJSON(c engine.RuleCondition) ConditionJSON {
	return ConditionJSON{
		Kind:   string(c.Kind),
		Op:     string(c.Op),
		Values: c.Values,
		Min:    c.Min,
		Max:    c.Max,
		Sub:    conditionsToJSON(c.Sub),
	}
}

func rewardFromJSON(rj RewardJSON) engine.RewardConfig {
	method := engine.CalculationMethod(rj.Method)
	if method == "" {
		method = engine.MethodStandard
	}

	cfg := engine.RewardConfig{
		Method:          method,
		BaseMultiplier:  rj.BaseMultiplier,
		BonusMultiplier: rj.BonusMultiplier,
		PointsRounding:  engine.RoundingStrategy(rj.PointsRounding),
		AmountRounding:  engine.RoundingStrategy(rj.AmountRounding),
		BlockSize:       rj.BlockSize,
		MonthlyCap:      rj.MonthlyCap,
		MonthlyMinSpend: rj.MonthlyMinSpend,
		SpendPeriod:     engine.PeriodType(rj.SpendPeriod),
		PointsCurrency:  rj.PointsCurrency,
	}

	for _, tj := range rj.BonusTiers {
		cfg.BonusTiers = append(cfg.BonusTiers, engine.BonusTier{
			Name:       tj.Name,
			Priority:   tj.Priority,
			Multiplier: tj.Multiplier,
			Condition:  conditionFromJSON(tj.Condition),
		})
	}

	return cfg
}

func rewardToJSON(reward engine.RewardConfig) RewardJSON {
	rj := RewardJSON{
		Method:          string(reward.Method),
		BaseMultiplier:  reward.BaseMultiplier,
		BonusMultiplier: reward.BonusMultiplier,
		PointsRounding:  string(reward.PointsRounding),
		AmountRounding:  string(reward.AmountRounding),
		BlockSize:       reward.BlockSize,
		MonthlyCap:      reward.MonthlyCap,
		MonthlyMinSpend: reward.MonthlyMinSpend,
		SpendPeriod:     string(reward.SpendPeriod),
		PointsCurrency:  reward.PointsCurrency,
	}

	for _, tier := range reward.BonusTiers {
		rj.BonusTiers = append(rj.BonusTiers, TierJSON{
			Name:       tier.Name,
			Priority:   tier.Priority,
			Multiplier: tier.Multiplier,
			Condition:  conditionToJSON(tier.Condition),
		})
	}

	return rj
}
