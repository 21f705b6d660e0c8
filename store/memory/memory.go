// Package memory provides in-memory store implementations for testing
// and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/engine"
	"github.com/cardfolio/reward-engine/repository"
	"github.com/cardfolio/reward-engine/usage"
)

// =============================================================================
// MEMORY STORE - Policies and transactions behind one RWMutex
// =============================================================================

// Store holds policies and card transactions in memory. Safe for
// concurrent use.
type Store struct {
	mu sync.RWMutex

	policies    map[engine.PolicyID]engine.RewardPolicy
	policyOrder []engine.PolicyID // catalog (insertion) order

	transactions map[string]usage.Transaction
}

// Compile-time checks against the contracts this store backs.
var (
	_ repository.PolicyStore = (*Store)(nil)
	_ usage.TransactionStore = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		policies:     make(map[engine.PolicyID]engine.RewardPolicy),
		transactions: make(map[string]usage.Transaction),
	}
}

// =============================================================================
// POLICY STORE
// =============================================================================

// PoliciesByCardType returns the card type's policies in insertion order.
func (s *Store) PoliciesByCardType(_ context.Context, cardType engine.CardTypeID, enabledOnly bool) ([]engine.RewardPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.RewardPolicy
	for _, id := range s.policyOrder {
		p, ok := s.policies[id]
		if !ok || p.CardTypeID != cardType {
			continue
		}
		if enabledOnly && !p.Enabled {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) GetPolicy(_ context.Context, id engine.PolicyID) (engine.RewardPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return engine.RewardPolicy{}, engine.ErrPolicyNotFound
	}
	return p, nil
}

func (s *Store) InsertPolicy(_ context.Context, p engine.RewardPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; !exists {
		s.policyOrder = append(s.policyOrder, p.ID)
	}
	s.policies[p.ID] = p
	return nil
}

func (s *Store) UpdatePolicy(_ context.Context, p engine.RewardPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; !exists {
		return engine.ErrPolicyNotFound
	}
	s.policies[p.ID] = p
	return nil
}

func (s *Store) DeletePolicy(_ context.Context, id engine.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[id]; !exists {
		return engine.ErrPolicyNotFound
	}
	delete(s.policies, id)
	for i, pid := range s.policyOrder {
		if pid == id {
			s.policyOrder = append(s.policyOrder[:i], s.policyOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListPolicies(_ context.Context) ([]engine.RewardPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.RewardPolicy, 0, len(s.policyOrder))
	for _, id := range s.policyOrder {
		if p, ok := s.policies[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTION LEDGER
// =============================================================================

// SpendBetween sums transaction amounts for the card in [from, to).
func (s *Store) SpendBetween(_ context.Context, cardID string, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.transactions {
		if tx.CardID == cardID && inRange(tx.OccurredAt, from, to) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// BonusPointsBetween sums granted bonus points for the card in [from, to).
func (s *Store) BonusPointsBetween(_ context.Context, cardID string, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.transactions {
		if tx.CardID == cardID && inRange(tx.OccurredAt, from, to) {
			total = total.Add(tx.BonusPoints)
		}
	}
	return total, nil
}

func (s *Store) AddTransaction(_ context.Context, tx usage.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx usage.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; !ok {
		return usage.ErrTransactionNotFound
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return "", usage.ErrTransactionNotFound
	}
	delete(s.transactions, id)
	return tx.CardID, nil
}

func (s *Store) TransactionsByCard(_ context.Context, cardID string, from, to time.Time) ([]usage.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []usage.Transaction
	for _, tx := range s.transactions {
		if tx.CardID == cardID && inRange(tx.OccurredAt, from, to) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
