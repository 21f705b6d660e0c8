/*
override.go - Code-level extension for unrepresentable edge cases

PURPOSE:
  Almost every card's behavior is expressed as policy data. For the rare
  edge case that genuinely cannot be represented (a launch promotion with
  bespoke arithmetic, say), an override function can be registered against
  a card-type id. The override runs after normal evaluation and may adjust
  the result. This replaces per-card calculator subclasses: one algorithm,
  data first, named code hooks last.
*/
package engine

// OverrideFunc adjusts a computed result for one card type. It receives the
// input and the result of normal evaluation and returns the result to use.
// Overrides must preserve TotalPoints == BasePoints + BonusPoints.
type OverrideFunc func(input CalculationInput, result CalculationResult) CalculationResult

// RegisterOverride installs fn for the given card type, replacing any
// previous registration. Not safe to call concurrently with Evaluate;
// register at construction time.
func (e *Engine) RegisterOverride(cardType CardTypeID, fn OverrideFunc) {
	e.overrides[cardType] = fn
}

// applyOverride runs the registered hook for the input's resolved card
// type, if any. The card type is taken from the applied policy so the
// default result (no policy) is never overridden by mistake.
func (e *Engine) applyOverride(input CalculationInput, result CalculationResult) CalculationResult {
	if len(e.overrides) == 0 || result.AppliedPolicy == nil {
		return result
	}
	fn, ok := e.overrides[result.AppliedPolicy.CardTypeID]
	if !ok {
		return result
	}
	return fn(input, result)
}
