/*
rounding.go - Pure numeric rounding strategies

PURPOSE:
  Rounding is applied at two independent points in a calculation:
  1. To the CURRENCY AMOUNT before per-block division (AmountRounding)
  2. To the POINT VALUE after rate multiplication (PointsRounding)

  These are two separate applications, not one. A policy may floor the
  amount to a block of 5 and then floor the resulting points again.

STRATEGIES:
  floor          largest integer <= value
  ceiling        smallest integer >= value
  nearest        half away from zero
  floor_block_5  floor(value / 5) * 5
  none           identity

SEE ALSO:
  - engine.go: Where the two applications happen
*/
package engine

import "github.com/shopspring/decimal"

// RoundingStrategy names a pure numeric rounding function.
type RoundingStrategy string

const (
	RoundFloor       RoundingStrategy = "floor"
	RoundCeiling     RoundingStrategy = "ceiling"
	RoundNearest     RoundingStrategy = "nearest"
	RoundFloorBlock5 RoundingStrategy = "floor_block_5"
	RoundNone        RoundingStrategy = "none"
)

var five = decimal.NewFromInt(5)

// Round applies the strategy to value. Unknown strategies are treated as
// RoundNone; validation rejects them at policy load time, so this is only
// reachable for hand-constructed configs.
func Round(strategy RoundingStrategy, value decimal.Decimal) decimal.Decimal {
	switch strategy {
	case RoundFloor:
		return value.Floor()
	case RoundCeiling:
		return value.Ceil()
	case RoundNearest:
		return value.Round(0)
	case RoundFloorBlock5:
		return value.Div(five).Floor().Mul(five)
	case RoundNone:
		return value
	default:
		return value
	}
}

// KnownRoundingStrategy reports whether s names a supported strategy.
// The empty string is accepted and normalized to RoundNone by validation.
func KnownRoundingStrategy(s RoundingStrategy) bool {
	switch s {
	case RoundFloor, RoundCeiling, RoundNearest, RoundFloorBlock5, RoundNone, "":
		return true
	default:
		return false
	}
}
