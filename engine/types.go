/*
Package engine computes loyalty points earned on a payment transaction,
given a catalog of per-card reward policies.

PURPOSE:
  This package contains the data model for reward policies (conditions +
  reward configuration) and the evaluation algorithm that turns a
  transaction plus a policy set into a point total with an audit trail
  of why that total was produced.

KEY CONCEPTS IN THIS FILE (types.go):
  - RewardPolicy: One named, enabled/disabled unit of reward logic
  - RuleCondition: A predicate over a transaction's attributes (closed union)
  - RewardConfig: How points are computed when a policy wins
  - BonusTier: A conditional override of a policy's bonus rate
  - CalculationInput/Result: The evaluate() contract

DESIGN PRINCIPLES:
  1. Data over code: Every card's behavior is policy data, not a subclass
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Purity: evaluate() is a pure function of input + policies + usage
  4. Auditability: Every result carries human-readable rationale messages

USAGE:
  eng := engine.New()
  result := eng.Evaluate(input, policies)
  fmt.Println(result.TotalPoints, result.Messages)

SEE ALSO:
  - condition.go: Condition matching semantics
  - rounding.go: Rounding strategies
  - engine.go: Policy selection, tiering, caps
  - validate.go: Load-time policy validation
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PolicyID string
type CardTypeID string

// CardTypeCash is the card-type id for cash-equivalent payment methods.
// No card means no reward policies apply.
const CardTypeCash CardTypeID = "cash"

// IsCashEquivalent reports whether the card type never earns rewards.
func (id CardTypeID) IsCashEquivalent() bool {
	return id == CardTypeCash || id == ""
}

// =============================================================================
// REWARD POLICY - One named unit of reward logic for one card type
// =============================================================================

// RewardPolicy is one enabled/disabled unit of reward logic for one card
// type. All Conditions must match (AND) for the policy to be a candidate;
// among matching candidates the highest Priority wins, with ties broken by
// catalog order.
type RewardPolicy struct {
	ID          PolicyID
	CardTypeID  CardTypeID
	Name        string
	Description string
	Enabled     bool
	Priority    int
	Conditions  []RuleCondition
	Reward      RewardConfig

	// Audit only; the engine never reads these.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// RULE CONDITION - Closed tagged union of predicate kinds
// =============================================================================

// ConditionKind discriminates the RuleCondition union.
type ConditionKind string

const (
	CondMCC             ConditionKind = "mcc"
	CondMerchant        ConditionKind = "merchant"
	CondTransactionType ConditionKind = "transaction_type"
	CondCurrency        ConditionKind = "currency"
	CondAmount          ConditionKind = "amount"
	CondCategory        ConditionKind = "category"
	CondSpendThreshold  ConditionKind = "spend_threshold"
	CondDate            ConditionKind = "date" // reserved, always matches
	CondCompound        ConditionKind = "compound"
)

// ConditionOp is the operator within a condition kind. Not every operator is
// meaningful for every kind; the evaluator fails closed on mismatches.
type ConditionOp string

const (
	OpInclude     ConditionOp = "include"
	OpExclude     ConditionOp = "exclude"
	OpEquals      ConditionOp = "equals"
	OpNotEquals   ConditionOp = "not_equals"
	OpGreaterThan ConditionOp = "greater_than"
	OpLessThan    ConditionOp = "less_than"
	OpBetween     ConditionOp = "between"
	OpAll         ConditionOp = "all" // compound AND
	OpAny         ConditionOp = "any" // compound OR
)

// RuleCondition is a single predicate over a transaction-derived input.
// The populated fields depend on Kind:
//   - mcc/merchant/category/currency/transaction_type: Values
//   - amount/spend_threshold: Min (and Max for between)
//   - compound: Sub
//
// Condition trees are authored as trees, not graphs; the evaluator guards
// recursion depth and treats anything deeper as a non-match.
type RuleCondition struct {
	Kind ConditionKind
	Op   ConditionOp

	Values []string
	Min    *decimal.Decimal
	Max    *decimal.Decimal
	Sub    []RuleCondition
}

// TransactionType values accepted by the transaction_type condition.
type TransactionType string

const (
	TxOnline      TransactionType = "online"
	TxContactless TransactionType = "contactless"
	TxInStore     TransactionType = "in_store"
)

// =============================================================================
// REWARD CONFIG - How points are computed when a policy wins
// =============================================================================

// CalculationMethod selects the point computation algorithm.
type CalculationMethod string

const (
	// MethodStandard rounds the amount, divides into blocks of BlockSize
	// currency units, and applies per-block rates.
	MethodStandard CalculationMethod = "standard"

	// MethodDirect applies per-unit rates to the raw amount. Bonus is
	// computed as total-at-full-rate minus base to avoid double-rounding
	// drift.
	MethodDirect CalculationMethod = "direct"
)

// PeriodType is the billing window over which spend and bonus usage are
// aggregated.
type PeriodType string

const (
	PeriodCalendarMonth  PeriodType = "calendar_month"
	PeriodStatementMonth PeriodType = "statement_month"
	PeriodRolling30Days  PeriodType = "rolling_30_days"
)

// RewardConfig is the reward computation for a policy.
type RewardConfig struct {
	Method CalculationMethod

	// Rate per 1 unit of currency (direct) or per BlockSize units (standard).
	BaseMultiplier  decimal.Decimal
	BonusMultiplier decimal.Decimal

	PointsRounding RoundingStrategy
	AmountRounding RoundingStrategy

	// Currency units per point block. Only meaningful for MethodStandard.
	BlockSize int64

	// When present and a tier matches, the tier's multiplier replaces
	// BonusMultiplier for that calculation.
	BonusTiers []BonusTier

	// Ceiling on bonus points earned per billing period. nil = uncapped.
	MonthlyCap *int64

	// Bonus is suppressed entirely until period-to-date spend (excluding
	// the current transaction) reaches this threshold. nil = no gate.
	MonthlyMinSpend *decimal.Decimal
	SpendPeriod     PeriodType

	// Display label for earned points, e.g. "Miles".
	PointsCurrency string
}

// BonusTier is a conditional override of the policy's bonus rate.
type BonusTier struct {
	Name       string
	Priority   int
	Multiplier decimal.Decimal
	Condition  RuleCondition
}

// =============================================================================
// CALCULATION INPUT - Transaction projection consumed by the engine
// =============================================================================

// CalculationInput is the transaction projection the engine evaluates.
// UsedBonusPoints and MonthlySpend are period-to-date figures resolved by
// the caller (usage tracker); nil means "not supplied", which gates
// minimum-spend rules closed and treats bonus usage as zero.
type CalculationInput struct {
	Amount   decimal.Decimal
	Currency string

	MCC             string
	MerchantName    string
	Category        string
	TransactionType TransactionType
	Date            time.Time

	// Issuer label of the card, used to derive the points currency for the
	// zero-rule default result.
	Issuer string

	// Day of month the card's statement cycle starts on.
	StatementDay int

	// Period-to-date bonus points already consumed against the cap.
	UsedBonusPoints *decimal.Decimal

	// Period-to-date spend, excluding this transaction.
	MonthlySpend *decimal.Decimal
}

// =============================================================================
// CALCULATION RESULT
// =============================================================================

// Resolution names which tier of the fallback chain produced the result,
// so callers and tests can distinguish "answer computed" from "best-effort
// default used".
type Resolution string

const (
	// ResolutionResolved: policies were available and evaluated normally.
	ResolutionResolved Resolution = "resolved"

	// ResolutionFellBackToDefault: the store had no policies (or lookup
	// failed) and catalog defaults were used instead.
	ResolutionFellBackToDefault Resolution = "fell_back_to_default"

	// ResolutionUnavailable: neither store nor catalog could supply
	// policies; the last-resort 1-point-per-unit default was returned.
	ResolutionUnavailable Resolution = "unavailable"
)

// CalculationResult is the outcome of one evaluation.
// TotalPoints == BasePoints + BonusPoints always holds exactly.
type CalculationResult struct {
	TotalPoints    decimal.Decimal
	BasePoints     decimal.Decimal
	BonusPoints    decimal.Decimal // post-cap
	PointsCurrency string

	// Remaining bonus headroom in the period after this transaction.
	// nil when the applied policy has no monthly cap.
	RemainingMonthlyBonusPoints *decimal.Decimal

	MinSpendMet bool

	AppliedPolicy *RewardPolicy
	AppliedTier   *BonusTier

	// Human-readable rationale, in generation order. Not guaranteed stable
	// across versions.
	Messages []string

	Source Resolution
}
