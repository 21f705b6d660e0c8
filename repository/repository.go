/*
Package repository supplies enabled reward policies for a card type,
backed by a store, with an in-process TTL cache.

PURPOSE:
  The read path between the rule engine and policy persistence. The
  repository answers "which policies apply to this card type" quickly and
  consistently:

  - Cash-equivalent card types short-circuit to an empty set with no
    store round-trip (no card, no policies).
  - Reads are cached per card-type id with a bounded TTL.
  - Cache misses query the backing store filtered to enabled=true.
  - An empty result is returned as-is; the composition root decides
    whether to fall back to catalog defaults. The repository never
    invents policies.

WRITE PATH:
  Insert/Update/Delete validate against the engine's load-time invariants,
  delegate to the store, and invalidate the affected card type's cache
  entry, so a subsequent read observes the write.

CONCURRENCY:
  The cache is shared mutable state guarded by an RWMutex. Entries are
  replaced whole, never partially, so concurrent readers always see a
  consistent snapshot.

SEE ALSO:
  - store/memory, store/sqlite: PolicyStore implementations
  - engine/service.go: The fallback chain around this read path
*/
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cardfolio/reward-engine/engine"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// PolicyStore is the persistence contract the repository requires.
type PolicyStore interface {
	// PoliciesByCardType returns policies for the card type, in catalog
	// (insertion) order. enabledOnly filters at the store level.
	PoliciesByCardType(ctx context.Context, cardType engine.CardTypeID, enabledOnly bool) ([]engine.RewardPolicy, error)

	GetPolicy(ctx context.Context, id engine.PolicyID) (engine.RewardPolicy, error)
	InsertPolicy(ctx context.Context, p engine.RewardPolicy) error
	UpdatePolicy(ctx context.Context, p engine.RewardPolicy) error
	DeletePolicy(ctx context.Context, id engine.PolicyID) error
	ListPolicies(ctx context.Context) ([]engine.RewardPolicy, error)
}

// =============================================================================
// CACHED REPOSITORY
// =============================================================================

// DefaultTTL bounds how stale a cached policy set may be.
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	policies []engine.RewardPolicy
	loadedAt time.Time
}

// Repository is a cached, validated view over a PolicyStore.
type Repository struct {
	store PolicyStore
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[engine.CardTypeID]cacheEntry
}

// Compile-time check against the engine's read contract.
var _ engine.PolicySource = (*Repository)(nil)

// New creates a repository over the store with the default TTL.
func New(store PolicyStore) *Repository {
	return NewWithTTL(store, DefaultTTL)
}

// NewWithTTL creates a repository with an explicit cache TTL.
func NewWithTTL(store PolicyStore, ttl time.Duration) *Repository {
	return &Repository{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[engine.CardTypeID]cacheEntry),
	}
}

// Policies returns the enabled policies for the card type. Cash-equivalent
// card types return an empty set immediately with no store round-trip.
func (r *Repository) Policies(ctx context.Context, cardType engine.CardTypeID) ([]engine.RewardPolicy, error) {
	if cardType.IsCashEquivalent() {
		return nil, nil
	}

	if cached, ok := r.fresh(cardType); ok {
		return cached, nil
	}

	policies, err := r.store.PoliciesByCardType(ctx, cardType, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrPolicyLookupFailed, err)
	}

	r.mu.Lock()
	r.cache[cardType] = cacheEntry{policies: policies, loadedAt: r.now()}
	r.mu.Unlock()

	return clonePolicies(policies), nil
}

func (r *Repository) fresh(cardType engine.CardTypeID) ([]engine.RewardPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[cardType]
	if !ok || r.now().Sub(entry.loadedAt) > r.ttl {
		return nil, false
	}
	return clonePolicies(entry.policies), true
}

// Invalidate drops the cached entry for one card type.
func (r *Repository) Invalidate(cardType engine.CardTypeID) {
	r.mu.Lock()
	delete(r.cache, cardType)
	r.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (r *Repository) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[engine.CardTypeID]cacheEntry)
	r.mu.Unlock()
}

// clonePolicies shields the cache from caller mutation. Conditions and
// bonus tiers carry nested slices, so the copy descends into them.
func clonePolicies(policies []engine.RewardPolicy) []engine.RewardPolicy {
	out := make([]engine.RewardPolicy, len(policies))
	for i, p := range policies {
		p.Conditions = cloneConditions(p.Conditions)
		p.Reward.BonusTiers = cloneTiers(p.Reward.BonusTiers)
		out[i] = p
	}
	return out
}

func cloneConditions(conditions []engine.RuleCondition) []engine.RuleCondition {
	if conditions == nil {
		return nil
	}
	out := make([]engine.RuleCondition, len(conditions))
	for i, c := range conditions {
		c.Values = append([]string(nil), c.Values...)
		c.Sub = cloneConditions(c.Sub)
		out[i] = c
	}
	return out
}

func cloneTiers(tiers []engine.BonusTier) []engine.BonusTier {
	if tiers == nil {
		return nil
	}
	out := make([]engine.BonusTier, len(tiers))
	for i, tier := range tiers {
		tier.Condition.Values = append([]string(nil), tier.Condition.Values...)
		tier.Condition.Sub = cloneConditions(tier.Condition.Sub)
		out[i] = tier
	}
	return out
}

// =============================================================================
// WRITE PATH - validate, persist, invalidate
// =============================================================================

// Insert validates and persists a new policy, then invalidates its card
// type's cache entry.
func (r *Repository) Insert(ctx context.Context, p engine.RewardPolicy) error {
	if err := engine.ValidatePolicy(p); err != nil {
		return err
	}
	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := r.store.InsertPolicy(ctx, p); err != nil {
		return fmt.Errorf("insert policy %s: %w", p.ID, err)
	}
	r.Invalidate(p.CardTypeID)
	return nil
}

// Update validates and replaces an existing policy.
func (r *Repository) Update(ctx context.Context, p engine.RewardPolicy) error {
	if err := engine.ValidatePolicy(p); err != nil {
		return err
	}
	p.UpdatedAt = r.now().UTC()
	if err := r.store.UpdatePolicy(ctx, p); err != nil {
		return fmt.Errorf("update policy %s: %w", p.ID, err)
	}
	r.Invalidate(p.CardTypeID)
	return nil
}

// Delete removes a policy and invalidates its card type's cache entry.
func (r *Repository) Delete(ctx context.Context, id engine.PolicyID) error {
	existing, err := r.store.GetPolicy(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.DeletePolicy(ctx, id); err != nil {
		return fmt.Errorf("delete policy %s: %w", id, err)
	}
	r.Invalidate(existing.CardTypeID)
	return nil
}

// Get returns one policy by id, uncached (admin surface, not hot path).
func (r *Repository) Get(ctx context.Context, id engine.PolicyID) (engine.RewardPolicy, error) {
	return r.store.GetPolicy(ctx, id)
}

// List returns every stored policy, uncached.
func (r *Repository) List(ctx context.Context) ([]engine.RewardPolicy, error) {
	return r.store.ListPolicies(ctx)
}
