/*
condition.go - Condition matching semantics

PURPOSE:
  Decides whether a single rule condition (or a compound AND/OR group)
  matches a transaction-derived input. Matching is pure, has no side
  effects, and is TOTAL: it returns a boolean for every condition variant
  and never panics on missing optional fields.

FAIL-CLOSED INVARIANTS:
  - A condition whose required input data is missing evaluates to FALSE,
    except currency/transaction_type not_equals, which are satisfiable
    without the data ("not EUR" holds when no currency is known).
  - A malformed condition (unknown kind/op, missing bounds) evaluates to
    FALSE. It never errors mid-calculation.
  - A compound with zero sub-conditions evaluates to TRUE (vacuous pass).

SHORT-CIRCUITING:
  compound/all stops on the first false; compound/any stops on the first
  true. Recursion depth is bounded so a back-referencing tree (authoring
  bug) degrades to a non-match instead of recursing forever.

SEE ALSO:
  - types.go: RuleCondition union definition
  - engine.go: Uses Matches for policy and tier filtering
*/
package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxConditionDepth bounds compound recursion. Authored trees are shallow;
// anything deeper is treated as malformed and fails closed.
const maxConditionDepth = 32

// Matches reports whether the condition holds for the input.
func Matches(c RuleCondition, input CalculationInput) bool {
	return matchesAtDepth(c, input, 0)
}

func matchesAtDepth(c RuleCondition, input CalculationInput, depth int) bool {
	if depth > maxConditionDepth {
		return false
	}

	switch c.Kind {
	case CondMCC:
		return matchMCC(c, input)
	case CondMerchant:
		return matchMerchant(c, input)
	case CondTransactionType:
		return matchTransactionType(c, input)
	case CondCurrency:
		return matchCurrency(c, input)
	case CondAmount:
		return matchBounds(c, input.Amount)
	case CondCategory:
		return matchCategory(c, input)
	case CondSpendThreshold:
		if input.MonthlySpend == nil {
			return false
		}
		return matchBounds(c, *input.MonthlySpend)
	case CondDate:
		// Reserved variant: accepted but not yet enforced.
		return true
	case CondCompound:
		return matchCompound(c, input, depth)
	default:
		return false
	}
}

func matchCompound(c RuleCondition, input CalculationInput, depth int) bool {
	switch c.Op {
	case OpAll:
		for _, sub := range c.Sub {
			if !matchesAtDepth(sub, input, depth+1) {
				return false
			}
		}
		return true // vacuous pass on zero sub-conditions
	case OpAny:
		for _, sub := range c.Sub {
			if matchesAtDepth(sub, input, depth+1) {
				return true
			}
		}
		return len(c.Sub) == 0 // vacuous pass on zero sub-conditions
	default:
		return false
	}
}

// =============================================================================
// KIND-SPECIFIC MATCHERS
// =============================================================================

func matchMCC(c RuleCondition, input CalculationInput) bool {
	if input.MCC == "" {
		return false
	}
	switch c.Op {
	case OpInclude:
		return containsFold(c.Values, input.MCC)
	case OpExclude:
		return !containsFold(c.Values, input.MCC)
	default:
		return false
	}
}

func matchMerchant(c RuleCondition, input CalculationInput) bool {
	if input.MerchantName == "" {
		return false
	}
	name := strings.ToLower(input.MerchantName)
	switch c.Op {
	case OpInclude:
		// Substring match: "GRAB" matches "GRAB*TRANSPORT SG".
		for _, v := range c.Values {
			if v != "" && strings.Contains(name, strings.ToLower(v)) {
				return true
			}
		}
		return false
	case OpExclude:
		for _, v := range c.Values {
			if v != "" && strings.Contains(name, strings.ToLower(v)) {
				return false
			}
		}
		return true
	case OpEquals:
		return containsFold(c.Values, input.MerchantName)
	default:
		return false
	}
}

func matchTransactionType(c RuleCondition, input CalculationInput) bool {
	switch c.Op {
	case OpEquals:
		if input.TransactionType == "" {
			return false
		}
		return containsFold(c.Values, string(input.TransactionType))
	case OpNotEquals:
		// Satisfiable without data: an unknown type is "not online".
		if input.TransactionType == "" {
			return true
		}
		return !containsFold(c.Values, string(input.TransactionType))
	default:
		return false
	}
}

func matchCurrency(c RuleCondition, input CalculationInput) bool {
	switch c.Op {
	case OpInclude, OpEquals:
		if input.Currency == "" {
			return false
		}
		return containsFold(c.Values, input.Currency)
	case OpExclude:
		// Exclusions need data to clear: an unknown currency fails closed.
		if input.Currency == "" {
			return false
		}
		return !containsFold(c.Values, input.Currency)
	case OpNotEquals:
		// Satisfiable without data: an unknown currency is "not USD".
		if input.Currency == "" {
			return true
		}
		return !containsFold(c.Values, input.Currency)
	default:
		return false
	}
}

func matchCategory(c RuleCondition, input CalculationInput) bool {
	if input.Category == "" {
		return false
	}
	switch c.Op {
	case OpInclude, OpEquals:
		return containsFold(c.Values, input.Category)
	case OpExclude:
		return !containsFold(c.Values, input.Category)
	default:
		return false
	}
}

// matchBounds handles the numeric operators shared by amount and
// spend_threshold conditions. Missing bounds are malformed and fail closed.
func matchBounds(c RuleCondition, value decimal.Decimal) bool {
	switch c.Op {
	case OpGreaterThan:
		return c.Min != nil && value.Cmp(*c.Min) > 0
	case OpLessThan:
		return c.Min != nil && value.Cmp(*c.Min) < 0
	case OpBetween:
		return c.Min != nil && c.Max != nil &&
			value.Cmp(*c.Min) >= 0 && value.Cmp(*c.Max) <= 0
	case OpEquals:
		return c.Min != nil && value.Cmp(*c.Min) == 0
	default:
		return false
	}
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
