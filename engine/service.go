/*
service.go - Calculator: the composition root around the pure engine

PURPOSE:
  Evaluate() on the Engine is a pure function; something still has to
  resolve its inputs. The Calculator owns that wiring: it maps a card to
  its card-type id, fetches policies (store, then catalog defaults, then
  the last-resort default), fetches period-to-date usage figures, and only
  then calls the engine.

FALLBACK CHAIN (order is a tested property):
  1. Policy repository (store-backed)       -> Source = resolved
  2. Card catalog built-in defaults         -> Source = fell_back_to_default
  3. 1 point per currency unit, nearest     -> Source = unavailable

  Each tier is an explicit, named result variant rather than a silent
  fallback, so callers can distinguish "answer computed" from "best-effort
  default used".

USAGE FAILURES:
  A failed spend/bonus aggregation is treated as zero usage. This is a
  deliberate conservative default: it maximizes bonus eligibility on
  lookup failure. The failure itself is observable at the tracker, which
  wraps it in ErrUsageLookupFailed before this layer zero-fills.

SEE ALSO:
  - repository/: PolicySource implementation with caching
  - usage/: UsageSource implementation with caching
  - catalog/: CardResolver implementation
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// PolicySource supplies enabled policies for a card type. An empty slice
// with a nil error means "no stored policies"; the Calculator then falls
// back to catalog defaults.
type PolicySource interface {
	Policies(ctx context.Context, cardType CardTypeID) ([]RewardPolicy, error)
}

// UsageSource supplies period-to-date aggregates from the transaction
// ledger.
type UsageSource interface {
	// MonthlySpend returns spend-to-date for the card in the period
	// containing asOf, excluding any transaction not yet recorded.
	MonthlySpend(ctx context.Context, cardID string, period PeriodType, asOf time.Time, statementDay int) (decimal.Decimal, error)

	// UsedBonusPoints returns bonus points consumed in the given calendar
	// month.
	UsedBonusPoints(ctx context.Context, cardID string, year int, month time.Month) (decimal.Decimal, error)
}

// CardResolver maps an issuer+product identity to a stable card-type id
// and supplies built-in default policies as a bootstrap seed.
type CardResolver interface {
	Resolve(issuer, productName string) (CardTypeID, error)
	DefaultPolicies(cardType CardTypeID) []RewardPolicy
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Card identifies the paying card for an evaluation.
type Card struct {
	ID           string
	Issuer       string
	ProductName  string
	StatementDay int
}

// Calculator orchestrates engine evaluation with resolved collaborator
// data. Construct once at process start; it owns no mutable state of its
// own beyond the engine's override table.
type Calculator struct {
	Engine   *Engine
	Policies PolicySource
	Usage    UsageSource
	Cards    CardResolver
}

// NewCalculator wires a Calculator from its collaborators.
func NewCalculator(eng *Engine, policies PolicySource, usage UsageSource, cards CardResolver) *Calculator {
	return &Calculator{Engine: eng, Policies: policies, Usage: usage, Cards: cards}
}

// Evaluate computes points for a real transaction on the given card.
// It never returns an error past this boundary: lookup failures degrade
// per the fallback chain and a best-effort result is always produced.
func (c *Calculator) Evaluate(ctx context.Context, card Card, input CalculationInput) CalculationResult {
	cardType, err := c.Cards.Resolve(card.Issuer, card.ProductName)
	if err != nil || cardType.IsCashEquivalent() {
		if cardType.IsCashEquivalent() {
			// Cash earns nothing; skip the store round-trip entirely.
			return CalculationResult{
				PointsCurrency: issuerPointsLabel(card.Issuer),
				MinSpendMet:    true,
				Messages:       []string{"Cash payments do not earn rewards"},
				Source:         ResolutionResolved,
			}
		}
		return c.lastResort(card, input)
	}

	input.Issuer = card.Issuer
	input.StatementDay = card.StatementDay

	policies, source := c.resolvePolicies(ctx, cardType)
	if policies == nil {
		return c.lastResort(card, input)
	}

	c.resolveUsage(ctx, card, policies, &input)

	result := c.Engine.Evaluate(input, policies)
	result.Source = source
	return result
}

// SimulationRequest is a what-if calculation: same algorithm as Evaluate,
// synthesized input, nothing persisted.
type SimulationRequest struct {
	Card     Card
	Amount   decimal.Decimal
	Currency string

	MCC          string
	MerchantName string
	Category     string
	Online       bool
	Contactless  bool
}

// Simulate runs a what-if calculation for the request. The transaction
// type is synthesized from the online/contactless flags (online wins when
// both are set); the date is "now".
func (c *Calculator) Simulate(ctx context.Context, req SimulationRequest) CalculationResult {
	txType := TxInStore
	switch {
	case req.Online:
		txType = TxOnline
	case req.Contactless:
		txType = TxContactless
	}

	return c.Evaluate(ctx, req.Card, CalculationInput{
		Amount:          req.Amount,
		Currency:        req.Currency,
		MCC:             req.MCC,
		MerchantName:    req.MerchantName,
		Category:        req.Category,
		TransactionType: txType,
		Date:            time.Now().UTC(),
	})
}

// =============================================================================
// FALLBACK RESOLUTION
// =============================================================================

// resolvePolicies walks the store -> catalog fallback chain. A nil slice
// means both tiers failed and the last-resort default applies.
func (c *Calculator) resolvePolicies(ctx context.Context, cardType CardTypeID) ([]RewardPolicy, Resolution) {
	stored, err := c.Policies.Policies(ctx, cardType)
	if err == nil && len(stored) > 0 {
		return stored, ResolutionResolved
	}

	// Store empty or unreachable: the repository does not invent policies,
	// the catalog's built-in defaults take over here.
	defaults := c.Cards.DefaultPolicies(cardType)
	if len(defaults) > 0 {
		return defaults, ResolutionFellBackToDefault
	}

	if err != nil {
		return nil, ResolutionUnavailable
	}
	// No store policies and no defaults: an empty set is a legitimate
	// answer, the engine produces the zero-rule default result.
	return []RewardPolicy{}, ResolutionResolved
}

// resolveUsage fills in period-to-date spend and bonus usage when any
// candidate policy needs them. Lookup failures degrade to zero usage.
func (c *Calculator) resolveUsage(ctx context.Context, card Card, policies []RewardPolicy, input *CalculationInput) {
	needSpend, needBonus := false, false
	period := PeriodCalendarMonth
	for _, p := range policies {
		if p.Reward.MonthlyMinSpend != nil {
			needSpend = true
			if p.Reward.SpendPeriod != "" {
				period = p.Reward.SpendPeriod
			}
		}
		if p.Reward.MonthlyCap != nil {
			needBonus = true
		}
		for _, cond := range p.Conditions {
			if conditionNeedsSpend(cond) {
				needSpend = true
			}
		}
		// Tier gates may reference period spend too.
		for _, tier := range p.Reward.BonusTiers {
			if conditionNeedsSpend(tier.Condition) {
				needSpend = true
			}
		}
	}

	asOf := input.Date
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	if needSpend && input.MonthlySpend == nil {
		spend, err := c.Usage.MonthlySpend(ctx, card.ID, period, asOf, card.StatementDay)
		if err != nil {
			// Conservative default: missing usage counts as zero.
			spend = decimal.Zero
		}
		input.MonthlySpend = &spend
	}

	if needBonus && input.UsedBonusPoints == nil {
		used, err := c.Usage.UsedBonusPoints(ctx, card.ID, asOf.Year(), asOf.Month())
		if err != nil {
			// Conservative default: zero usage maximizes bonus eligibility.
			used = decimal.Zero
		}
		input.UsedBonusPoints = &used
	}
}

func conditionNeedsSpend(c RuleCondition) bool {
	if c.Kind == CondSpendThreshold {
		return true
	}
	for _, sub := range c.Sub {
		if conditionNeedsSpend(sub) {
			return true
		}
	}
	return false
}

// lastResort is the final tier of the fallback chain: base points at a
// rate of 1 point per currency unit, nearest-rounded, no bonus.
func (c *Calculator) lastResort(card Card, input CalculationInput) CalculationResult {
	base := Round(RoundNearest, input.Amount)
	return CalculationResult{
		TotalPoints:    base,
		BasePoints:     base,
		BonusPoints:    decimal.Zero,
		PointsCurrency: issuerPointsLabel(card.Issuer),
		MinSpendMet:    true,
		Messages:       []string{"Reward rules unavailable; default earn rate applied"},
		Source:         ResolutionUnavailable,
	}
}
