package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardfolio/reward-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func int64Ptr(n int64) *int64 { return &n }

// milesPolicy reproduces a typical block-based miles card: every $5 block
// earns 1 base + 9 bonus points, amount floored to blocks of 5 first.
func milesPolicy() engine.RewardPolicy {
	return engine.RewardPolicy{
		ID:         "miles-standard",
		CardTypeID: "meridian-aurora",
		Name:       "Standard Miles Earn",
		Enabled:    true,
		Priority:   10,
		Reward: engine.RewardConfig{
			Method:          engine.MethodStandard,
			BaseMultiplier:  dec("1"),
			BonusMultiplier: dec("9"),
			AmountRounding:  engine.RoundFloorBlock5,
			PointsRounding:  engine.RoundFloor,
			BlockSize:       5,
			PointsCurrency:  "Miles",
		},
	}
}

func input(amount string) engine.CalculationInput {
	return engine.CalculationInput{
		Amount:   dec(amount),
		Currency: "SGD",
	}
}

// =============================================================================
// SCENARIO TESTS - Block-based and direct calculations
// =============================================================================

func TestEvaluate_StandardMethod_FloorBlockOfFive(t *testing.T) {
	// GIVEN: standard method, amount=97, floor-block-of-5 amount rounding,
	//        block size 5, base x1, bonus x9, no cap
	// WHEN: evaluating
	// THEN: roundedAmount=95 -> 19 blocks -> base=19, bonus=171, total=190

	eng := engine.New()
	result := eng.Evaluate(input("97"), []engine.RewardPolicy{milesPolicy()})

	require.NotNil(t, result.AppliedPolicy)
	assert.True(t, result.BasePoints.Equal(dec("19")), "base points: %s", result.BasePoints)
	assert.True(t, result.BonusPoints.Equal(dec("171")), "bonus points: %s", result.BonusPoints)
	assert.True(t, result.TotalPoints.Equal(dec("190")), "total points: %s", result.TotalPoints)
	assert.True(t, result.MinSpendMet)
	assert.Equal(t, "Miles", result.PointsCurrency)
	assert.Nil(t, result.RemainingMonthlyBonusPoints)
}

func TestEvaluate_MonthlyCap_ClampsBonus(t *testing.T) {
	// GIVEN: same policy with monthlyCap=200 and 180 bonus points already used
	// WHEN: evaluating a transaction that would earn 171 bonus points
	// THEN: bonus clamped to the remaining 20, remaining headroom 0, total 39

	policy := milesPolicy()
	policy.Reward.MonthlyCap = int64Ptr(200)

	in := input("97")
	in.UsedBonusPoints = decPtr("180")

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

	assert.True(t, result.BasePoints.Equal(dec("19")))
	assert.True(t, result.BonusPoints.Equal(dec("20")), "bonus points: %s", result.BonusPoints)
	assert.True(t, result.TotalPoints.Equal(dec("39")))
	require.NotNil(t, result.RemainingMonthlyBonusPoints)
	assert.True(t, result.RemainingMonthlyBonusPoints.IsZero())
}

func TestEvaluate_MonthlyCap_AlreadyExhausted(t *testing.T) {
	// GIVEN: cap 200 with 200 already used
	// WHEN: evaluating
	// THEN: no bonus at all, "cap reached" message, base still earned

	policy := milesPolicy()
	policy.Reward.MonthlyCap = int64Ptr(200)

	in := input("97")
	in.UsedBonusPoints = decPtr("200")

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

	assert.True(t, result.BonusPoints.IsZero())
	assert.True(t, result.BasePoints.Equal(dec("19")))
	assert.True(t, result.TotalPoints.Equal(dec("19")))
	require.NotNil(t, result.RemainingMonthlyBonusPoints)
	assert.True(t, result.RemainingMonthlyBonusPoints.IsZero())
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "cap reached")
}

func TestEvaluate_DirectMethod_BonusIsDifferenceNotIndependentRounding(t *testing.T) {
	// GIVEN: direct method, amount=1000, base x1, bonus x9, floor rounding
	// WHEN: evaluating
	// THEN: base=1000, totalAtFullRate=10000, bonus=9000

	policy := engine.RewardPolicy{
		ID:         "cashback-direct",
		CardTypeID: "harbor-cashback",
		Name:       "Direct Earn",
		Enabled:    true,
		Priority:   1,
		Reward: engine.RewardConfig{
			Method:          engine.MethodDirect,
			BaseMultiplier:  dec("1"),
			BonusMultiplier: dec("9"),
			PointsRounding:  engine.RoundFloor,
			PointsCurrency:  "Points",
		},
	}

	result := engine.New().Evaluate(input("1000"), []engine.RewardPolicy{policy})

	assert.True(t, result.BasePoints.Equal(dec("1000")))
	assert.True(t, result.BonusPoints.Equal(dec("9000")))
	assert.True(t, result.TotalPoints.Equal(dec("10000")))
}

func TestEvaluate_DirectMethod_NoDoubleRoundingDrift(t *testing.T) {
	// GIVEN: fractional rates where rounding base and bonus independently
	//        would drift from rounding the full-rate total
	// WHEN: evaluating amount=99.50 at base 0.4 + bonus 1.2, floor rounding
	// THEN: base=floor(39.8)=39, total@full=floor(159.2)=159, bonus=120
	//       (independent rounding would give floor(119.4)=119)

	policy := engine.RewardPolicy{
		ID:         "fractional",
		CardTypeID: "harbor-cashback",
		Enabled:    true,
		Reward: engine.RewardConfig{
			Method:          engine.MethodDirect,
			BaseMultiplier:  dec("0.4"),
			BonusMultiplier: dec("1.2"),
			PointsRounding:  engine.RoundFloor,
			PointsCurrency:  "Points",
		},
	}

	result := engine.New().Evaluate(input("99.50"), []engine.RewardPolicy{policy})

	assert.True(t, result.BasePoints.Equal(dec("39")))
	assert.True(t, result.BonusPoints.Equal(dec("120")))
	assert.True(t, result.TotalPoints.Equal(dec("159")))
	assert.True(t, result.TotalPoints.Equal(result.BasePoints.Add(result.BonusPoints)))
}

// =============================================================================
// MINIMUM SPEND GATE
// =============================================================================

func TestEvaluate_MinSpendNotMet_SuppressesBonusEntirely(t *testing.T) {
	// GIVEN: policy requires $500 monthly spend; card has spent $400
	// WHEN: evaluating
	// THEN: bonus=0 regardless of tiers, base still computed, message explains

	policy := milesPolicy()
	policy.Reward.MonthlyMinSpend = decPtr("500")
	policy.Reward.BonusTiers = []engine.BonusTier{{
		Name:       "Everything",
		Multiplier: dec("20"),
		Condition:  engine.RuleCondition{Kind: engine.CondCompound, Op: engine.OpAll},
	}}

	in := input("97")
	in.MonthlySpend = decPtr("400")

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

	assert.False(t, result.MinSpendMet)
	assert.True(t, result.BonusPoints.IsZero())
	assert.True(t, result.BasePoints.Equal(dec("19")))
	assert.Nil(t, result.AppliedTier)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "minimum monthly spend")
}

func TestEvaluate_MinSpendUnset_GateOpen(t *testing.T) {
	result := engine.New().Evaluate(input("97"), []engine.RewardPolicy{milesPolicy()})
	assert.True(t, result.MinSpendMet)
}

func TestEvaluate_MinSpendSet_SpendNotSupplied_GateClosed(t *testing.T) {
	// Period-to-date spend missing entirely: fail closed on the gate.
	policy := milesPolicy()
	policy.Reward.MonthlyMinSpend = decPtr("500")

	result := engine.New().Evaluate(input("97"), []engine.RewardPolicy{policy})

	assert.False(t, result.MinSpendMet)
	assert.True(t, result.BonusPoints.IsZero())
}

func TestEvaluate_MinSpendExactlyMet_GateOpen(t *testing.T) {
	policy := milesPolicy()
	policy.Reward.MonthlyMinSpend = decPtr("500")

	in := input("97")
	in.MonthlySpend = decPtr("500")

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

	assert.True(t, result.MinSpendMet)
	assert.True(t, result.BonusPoints.Equal(dec("171")))
}

// =============================================================================
// POLICY SELECTION
// =============================================================================

func TestEvaluate_HigherPriorityPolicyWins(t *testing.T) {
	// GIVEN: two enabled matching policies, priorities 10 and 5
	// WHEN: evaluating
	// THEN: the priority-10 policy is applied; no merging

	low := milesPolicy()
	low.ID = "low"
	low.Priority = 5
	low.Reward.BonusMultiplier = dec("1")

	high := milesPolicy()
	high.ID = "high"
	high.Priority = 10

	result := engine.New().Evaluate(input("97"), []engine.RewardPolicy{low, high})

	require.NotNil(t, result.AppliedPolicy)
	assert.Equal(t, engine.PolicyID("high"), result.AppliedPolicy.ID)
	assert.True(t, result.BonusPoints.Equal(dec("171")))
}

func TestEvaluate_EqualPriority_CatalogOrderBreaksTie(t *testing.T) {
	// GIVEN: two equal-priority matching policies
	// WHEN: evaluating with each catalog order
	// THEN: the first in catalog order wins; reversing the order flips it

	first := milesPolicy()
	first.ID = "first"
	second := milesPolicy()
	second.ID = "second"

	eng := engine.New()

	result := eng.Evaluate(input("97"), []engine.RewardPolicy{first, second})
	require.NotNil(t, result.AppliedPolicy)
	assert.Equal(t, engine.PolicyID("first"), result.AppliedPolicy.ID)

	result = eng.Evaluate(input("97"), []engine.RewardPolicy{second, first})
	require.NotNil(t, result.AppliedPolicy)
	assert.Equal(t, engine.PolicyID("second"), result.AppliedPolicy.ID)
}

func TestEvaluate_DisabledPolicyIgnored(t *testing.T) {
	policy := milesPolicy()
	policy.Enabled = false

	result := engine.New().Evaluate(input("97"), []engine.RewardPolicy{policy})

	assert.Nil(t, result.AppliedPolicy)
	assert.Equal(t, []string{"No specific reward rules applied"}, result.Messages)
}

func TestEvaluate_ConditionFilteredOut(t *testing.T) {
	// Policy requires online transactions; input is in-store.
	policy := milesPolicy()
	policy.Conditions = []engine.RuleCondition{{
		Kind:   engine.CondTransactionType,
		Op:     engine.OpEquals,
		Values: []string{"online"},
	}}

	in := input("97")
	in.TransactionType = engine.TxInStore

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})
	assert.Nil(t, result.AppliedPolicy)
}

func TestEvaluate_NoPolicies_DefaultResult(t *testing.T) {
	// GIVEN: a card type with zero policies
	// WHEN: evaluating amount=97.40
	// THEN: base = nearest(97.40) = 97, no bonus, issuer-derived currency

	in := input("97.40")
	in.Issuer = "Meridian"

	result := engine.New().Evaluate(in, nil)

	assert.True(t, result.BasePoints.Equal(dec("97")))
	assert.True(t, result.BonusPoints.IsZero())
	assert.True(t, result.TotalPoints.Equal(dec("97")))
	assert.Equal(t, "Meridian Points", result.PointsCurrency)
	assert.Equal(t, []string{"No specific reward rules applied"}, result.Messages)
	assert.Equal(t, engine.ResolutionResolved, result.Source)
}

func TestEvaluate_DefaultResult_AlwaysNearestRounding(t *testing.T) {
	// Default base-point rounding is nearest regardless of any policy's
	// configured strategy (there is no policy to consult).
	result := engine.New().Evaluate(input("10.50"), []engine.RewardPolicy{})
	assert.True(t, result.BasePoints.Equal(dec("11")), "10.50 rounds half away from zero")
}

// =============================================================================
// TIER RESOLUTION
// =============================================================================

func onlineTier(name string, priority int, multiplier string) engine.BonusTier {
	return engine.BonusTier{
		Name:       name,
		Priority:   priority,
		Multiplier: dec(multiplier),
		Condition: engine.RuleCondition{
			Kind:   engine.CondTransactionType,
			Op:     engine.OpEquals,
			Values: []string{"online"},
		},
	}
}

func TestEvaluate_TierReplacesBonusMultiplier(t *testing.T) {
	// GIVEN: an online tier at x19 on a x9 policy
	// WHEN: evaluating an online transaction
	// THEN: the tier multiplier replaces the policy bonus multiplier

	policy := milesPolicy()
	policy.Reward.BonusTiers = []engine.BonusTier{onlineTier("Online Shopping", 5, "19")}

	in := input("97")
	in.TransactionType = engine.TxOnline

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

	require.NotNil(t, result.AppliedTier)
	assert.Equal(t, "Online Shopping", result.AppliedTier.Name)
	// 19 blocks * 19 = 361 bonus
	assert.True(t, result.BonusPoints.Equal(dec("361")), "bonus: %s", result.BonusPoints)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "Online Shopping")
}

func TestEvaluate_TierNoMatch_FallsBackToPolicyMultiplier(t *testing.T) {
	policy := milesPolicy()
	policy.Reward.BonusTiers = []engine.BonusTier{onlineTier("Online Shopping", 5, "19")}

	in := input("97")
	in.TransactionType = engine.TxInStore

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

	assert.Nil(t, result.AppliedTier)
	assert.True(t, result.BonusPoints.Equal(dec("171")))
}

func TestEvaluate_TierPriority_HighestMatchingTierWins(t *testing.T) {
	policy := milesPolicy()
	policy.Reward.BonusTiers = []engine.BonusTier{
		onlineTier("Basic Online", 1, "10"),
		onlineTier("Promo Online", 9, "20"),
	}

	in := input("97")
	in.TransactionType = engine.TxOnline

	result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

	require.NotNil(t, result.AppliedTier)
	assert.Equal(t, "Promo Online", result.AppliedTier.Name)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestEvaluate_TotalAlwaysBasePlusBonus(t *testing.T) {
	cases := []struct {
		name string
		in   engine.CalculationInput
		pol  []engine.RewardPolicy
	}{
		{"no policies", input("123.45"), nil},
		{"standard", input("97"), []engine.RewardPolicy{milesPolicy()}},
		{"capped", func() engine.CalculationInput {
			in := input("97")
			in.UsedBonusPoints = decPtr("195")
			return in
		}(), func() []engine.RewardPolicy {
			p := milesPolicy()
			p.Reward.MonthlyCap = int64Ptr(200)
			return []engine.RewardPolicy{p}
		}()},
	}

	eng := engine.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := eng.Evaluate(tc.in, tc.pol)
			assert.True(t, result.TotalPoints.Equal(result.BasePoints.Add(result.BonusPoints)),
				"total %s != base %s + bonus %s", result.TotalPoints, result.BasePoints, result.BonusPoints)
		})
	}
}

func TestEvaluate_CapNeverExceeded(t *testing.T) {
	policy := milesPolicy()
	policy.Reward.MonthlyCap = int64Ptr(200)

	for _, used := range []string{"0", "50", "150", "199", "200", "500"} {
		in := input("97")
		in.UsedBonusPoints = decPtr(used)

		result := engine.New().Evaluate(in, []engine.RewardPolicy{policy})

		headroom := dec("200").Sub(dec(used))
		if headroom.IsNegative() {
			headroom = decimal.Zero
		}
		assert.True(t, result.BonusPoints.Cmp(headroom) <= 0,
			"used=%s: bonus %s exceeds headroom %s", used, result.BonusPoints, headroom)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	// Identical inputs and usage snapshots yield identical results.
	policy := milesPolicy()
	policy.Reward.MonthlyCap = int64Ptr(200)
	in := input("97")
	in.UsedBonusPoints = decPtr("100")

	eng := engine.New()
	first := eng.Evaluate(in, []engine.RewardPolicy{policy})
	second := eng.Evaluate(in, []engine.RewardPolicy{policy})

	assert.True(t, first.TotalPoints.Equal(second.TotalPoints))
	assert.True(t, first.BonusPoints.Equal(second.BonusPoints))
	assert.Equal(t, first.Messages, second.Messages)
	require.NotNil(t, second.RemainingMonthlyBonusPoints)
	assert.True(t, first.RemainingMonthlyBonusPoints.Equal(*second.RemainingMonthlyBonusPoints))
}

// =============================================================================
// OVERRIDES
// =============================================================================

func TestEvaluate_RegisteredOverrideAdjustsResult(t *testing.T) {
	// GIVEN: an override registered for the policy's card type that doubles
	//        base points (a launch promotion not expressible as data)
	// WHEN: evaluating
	// THEN: the override result is returned, invariant preserved

	eng := engine.New()
	eng.RegisterOverride("meridian-aurora", func(_ engine.CalculationInput, r engine.CalculationResult) engine.CalculationResult {
		r.BasePoints = r.BasePoints.Mul(dec("2"))
		r.TotalPoints = r.BasePoints.Add(r.BonusPoints)
		return r
	})

	result := eng.Evaluate(input("97"), []engine.RewardPolicy{milesPolicy()})

	assert.True(t, result.BasePoints.Equal(dec("38")))
	assert.True(t, result.TotalPoints.Equal(dec("209")))
}

func TestEvaluate_OverrideNotAppliedToOtherCardTypes(t *testing.T) {
	eng := engine.New()
	eng.RegisterOverride("some-other-card", func(_ engine.CalculationInput, r engine.CalculationResult) engine.CalculationResult {
		r.BasePoints = decimal.Zero
		return r
	})

	result := eng.Evaluate(input("97"), []engine.RewardPolicy{milesPolicy()})
	assert.True(t, result.BasePoints.Equal(dec("19")))
}
