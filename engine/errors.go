/*
errors.go - Centralized error types for the reward engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Collaborator packages (repository, usage, store) wrap these with
  additional context.

ERROR CATEGORIES:
  1. Policy lookup errors - store unreachable or record missing
  2. Usage lookup errors  - ledger aggregation failures
  3. Invariant violations - policy-authoring errors caught at load time

The evaluate path itself never surfaces errors: lookup failures degrade
to catalog defaults (policies) or zero (usage), and malformed conditions
fail closed. These errors exist for the administrative write path and the
composition root's fallback decisions.
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPolicyNotFound is returned when a referenced policy doesn't exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyLookupFailed is returned when the policy store is unreachable
	// or a record is malformed. The engine degrades to catalog defaults
	// rather than failing the calculation.
	ErrPolicyLookupFailed = errors.New("policy lookup failed")

	// ErrUsageLookupFailed is returned when the transaction ledger cannot be
	// aggregated. Callers deliberately treat missing usage as zero for both
	// spend and bonus-used, which maximizes bonus eligibility; the error is
	// surfaced so the degradation is not silent.
	ErrUsageLookupFailed = errors.New("usage lookup failed")

	// ErrInvalidPolicy is returned when a policy violates an authoring
	// invariant (negative block size, negative cap). Rejected at load time,
	// never mid-calculation.
	ErrInvalidPolicy = errors.New("invalid policy configuration")

	// ErrCardTypeUnknown is returned when an issuer+product pair cannot be
	// resolved to a known card type.
	ErrCardTypeUnknown = errors.New("unknown card type")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PolicyValidationError reports which policy field violated which invariant.
type PolicyValidationError struct {
	PolicyID PolicyID
	Field    string
	Reason   string
}

func (e *PolicyValidationError) Error() string {
	return fmt.Sprintf("policy %s: %s %s", e.PolicyID, e.Field, e.Reason)
}

func (e *PolicyValidationError) Unwrap() error { return ErrInvalidPolicy }

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) || errors.Is(err, ErrCardTypeUnknown)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPolicy) || errors.Is(err, ErrCardTypeUnknown)
}
