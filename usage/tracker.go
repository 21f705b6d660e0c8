/*
tracker.go - Cached spend and bonus-usage aggregation

PURPOSE:
  Computes spend-to-date and bonus-points-consumed-to-date for a card in
  a billing period. The rule engine uses these figures to gate
  minimum-spend rules and to enforce monthly bonus caps.

  Both queries are pure read-aggregations over the transaction ledger
  (an external collaborator). Results are cached with a short TTL and
  invalidated whenever a transaction affecting the card is added, edited,
  or deleted - the single invalidation point is keyed by card id, so a
  write happens-before any read expected to reflect it.

CONCURRENCY:
  The cache is guarded by an RWMutex; entries are replaced whole, never
  partially, so concurrent readers see a consistent snapshot.

SEE ALSO:
  - period.go: Billing window computation
  - store/sqlite, store/memory: Ledger implementations
*/
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/engine"
)

// =============================================================================
// LEDGER CONTRACT
// =============================================================================

// Ledger is the transaction read API the tracker aggregates over.
// Implementations aggregate the half-open range [from, to).
type Ledger interface {
	// SpendBetween returns the summed transaction amounts for the card.
	SpendBetween(ctx context.Context, cardID string, from, to time.Time) (decimal.Decimal, error)

	// BonusPointsBetween returns the summed bonus points granted to the
	// card's transactions.
	BonusPointsBetween(ctx context.Context, cardID string, from, to time.Time) (decimal.Decimal, error)
}

// =============================================================================
// TRACKER
// =============================================================================

// DefaultTTL bounds how stale a cached aggregate may be. Usage figures
// change on every recorded transaction, so the window is short.
const DefaultTTL = 30 * time.Second

type aggregateKey struct {
	cardID string
	metric string
	start  time.Time
	end    time.Time
}

type aggregateEntry struct {
	value    decimal.Decimal
	loadedAt time.Time
}

// Tracker caches period aggregates over a Ledger.
type Tracker struct {
	ledger Ledger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[aggregateKey]aggregateEntry
}

// Compile-time check against the engine's usage contract.
var _ engine.UsageSource = (*Tracker)(nil)

// NewTracker creates a tracker with the default TTL.
func NewTracker(ledger Ledger) *Tracker {
	return NewTrackerWithTTL(ledger, DefaultTTL)
}

// NewTrackerWithTTL creates a tracker with an explicit cache TTL.
func NewTrackerWithTTL(ledger Ledger, ttl time.Duration) *Tracker {
	return &Tracker{
		ledger: ledger,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[aggregateKey]aggregateEntry),
	}
}

// MonthlySpend returns spend-to-date for the card in the period of the
// given type containing asOf.
func (t *Tracker) MonthlySpend(ctx context.Context, cardID string, periodType engine.PeriodType, asOf time.Time, statementDay int) (decimal.Decimal, error) {
	period := PeriodFor(periodType, asOf, statementDay)
	key := aggregateKey{cardID: cardID, metric: "spend", start: period.Start, end: period.End}

	if v, ok := t.cached(key); ok {
		return v, nil
	}

	spend, err := t.ledger.SpendBetween(ctx, cardID, period.Start, period.End)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: spend for card %s: %v", engine.ErrUsageLookupFailed, cardID, err)
	}

	t.put(key, spend)
	return spend, nil
}

// UsedBonusPoints returns bonus points consumed by the card in the given
// calendar month.
func (t *Tracker) UsedBonusPoints(ctx context.Context, cardID string, year int, month time.Month) (decimal.Decimal, error) {
	period := CalendarMonth(year, month)
	key := aggregateKey{cardID: cardID, metric: "bonus", start: period.Start, end: period.End}

	if v, ok := t.cached(key); ok {
		return v, nil
	}

	used, err := t.ledger.BonusPointsBetween(ctx, cardID, period.Start, period.End)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bonus usage for card %s: %v", engine.ErrUsageLookupFailed, cardID, err)
	}

	t.put(key, used)
	return used, nil
}

// Invalidate drops every cached aggregate for the card. Call after any
// transaction affecting the card is added, edited, or deleted.
func (t *Tracker) Invalidate(cardID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.cache {
		if key.cardID == cardID {
			delete(t.cache, key)
		}
	}
}

func (t *Tracker) cached(key aggregateKey) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.cache[key]
	if !ok || t.now().Sub(entry.loadedAt) > t.ttl {
		return decimal.Zero, false
	}
	return entry.value, true
}

func (t *Tracker) put(key aggregateKey, value decimal.Decimal) {
	t.mu.Lock()
	t.cache[key] = aggregateEntry{value: value, loadedAt: t.now()}
	t.mu.Unlock()
}
