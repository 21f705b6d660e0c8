/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements policy and transaction persistence using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  repository.PolicyStore: Reward policy rows, conditions/reward as JSON
  usage.TransactionStore: Card transaction ledger and period aggregates

KEY TABLES:
  reward_policies:   Policy definitions, catalog order = insertion order
  card_transactions: Recorded card transactions with granted bonus points

DECIMAL COLUMNS:
  Monetary amounts and point values are stored as TEXT and re-parsed with
  decimal.NewFromString. Period aggregation sums in Go, never in SQL, so
  the exactness guarantees of the engine survive the round-trip.

INDEXES:
  idx_transactions_card_occurred: Period aggregation (hot path)
  idx_policies_card_type:         Policy reads by card type

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo := repository.New(store)
  tracker := usage.NewTracker(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - repository/repository.go: The cached read path over PolicyStore
  - usage/tracker.go: The cached aggregates over the transaction ledger
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/engine"
	"github.com/cardfolio/reward-engine/factory"
	"github.com/cardfolio/reward-engine/repository"
	"github.com/cardfolio/reward-engine/usage"
)

// Store implements policy and transaction persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time checks against the contracts this store backs.
var (
	_ repository.PolicyStore = (*Store)(nil)
	_ usage.TransactionStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Reward Policies (conditions and reward config as JSON)
	CREATE TABLE IF NOT EXISTS reward_policies (
		id TEXT PRIMARY KEY,
		card_type_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		priority INTEGER NOT NULL DEFAULT 0,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		conditions_json TEXT NOT NULL DEFAULT '',
		reward_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_card_type
		ON reward_policies(card_type_id);
	CREATE INDEX IF NOT EXISTS idx_policies_card_type_enabled
		ON reward_policies(card_type_id, enabled);

	-- Card Transactions (the usage ledger)
	CREATE TABLE IF NOT EXISTS card_transactions (
		id TEXT PRIMARY KEY,
		card_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		mcc TEXT,
		merchant_name TEXT,
		category TEXT,
		transaction_type TEXT,
		bonus_points TEXT NOT NULL DEFAULT '0',
		occurred_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Composite index for period-based aggregation (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_card_occurred
		ON card_transactions(card_id, occurred_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// POLICY STORE (repository.PolicyStore interface)
// =============================================================================

const policyColumns = `id, card_type_id, name, description, priority, enabled,
	       conditions_json, reward_json, created_at, updated_at`

// PoliciesByCardType returns the card type's policies in catalog
// (insertion) order.
func (s *Store) PoliciesByCardType(ctx context.Context, cardType engine.CardTypeID, enabledOnly bool) ([]engine.RewardPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + policyColumns + `
		FROM reward_policies
		WHERE card_type_id = ?
		ORDER BY rowid ASC
	`
	if enabledOnly {
		query = `
			SELECT ` + policyColumns + `
			FROM reward_policies
			WHERE card_type_id = ? AND enabled = TRUE
			ORDER BY rowid ASC
		`
	}

	return s.queryPolicies(ctx, query, string(cardType))
}

// GetPolicy retrieves a policy by ID.
func (s *Store) GetPolicy(ctx context.Context, id engine.PolicyID) (engine.RewardPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies, err := s.queryPolicies(ctx,
		`SELECT `+policyColumns+` FROM reward_policies WHERE id = ?`, string(id))
	if err != nil {
		return engine.RewardPolicy{}, err
	}
	if len(policies) == 0 {
		return engine.RewardPolicy{}, engine.ErrPolicyNotFound
	}
	return policies[0], nil
}

// InsertPolicy adds a policy row. Insertion order becomes catalog order.
func (s *Store) InsertPolicy(ctx context.Context, p engine.RewardPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conditionsJSON, rewardJSON, err := s.encodePolicy(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reward_policies
		(id, card_type_id, name, description, priority, enabled,
		 conditions_json, reward_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		string(p.ID), string(p.CardTypeID), p.Name, p.Description,
		p.Priority, p.Enabled, conditionsJSON, rewardJSON,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert policy %s: %w", p.ID, err)
	}
	return nil
}

// UpdatePolicy replaces an existing policy row in place, preserving its
// catalog position.
func (s *Store) UpdatePolicy(ctx context.Context, p engine.RewardPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conditionsJSON, rewardJSON, err := s.encodePolicy(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE reward_policies
		SET card_type_id = ?, name = ?, description = ?, priority = ?,
		    enabled = ?, conditions_json = ?, reward_json = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		string(p.CardTypeID), p.Name, p.Description, p.Priority,
		p.Enabled, conditionsJSON, rewardJSON, formatTime(p.UpdatedAt),
		string(p.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update policy %s: %w", p.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return engine.ErrPolicyNotFound
	}
	return nil
}

// DeletePolicy removes a policy row.
func (s *Store) DeletePolicy(ctx context.Context, id engine.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM reward_policies WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete policy %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return engine.ErrPolicyNotFound
	}
	return nil
}

// ListPolicies returns every stored policy in catalog order.
func (s *Store) ListPolicies(ctx context.Context) ([]engine.RewardPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPolicies(ctx,
		`SELECT `+policyColumns+` FROM reward_policies ORDER BY rowid ASC`)
}

func (s *Store) encodePolicy(p engine.RewardPolicy) (conditionsJSON, rewardJSON string, err error) {
	conditionsJSON, err = factory.MarshalConditions(p.Conditions)
	if err != nil {
		return "", "", err
	}
	rewardJSON, err = factory.MarshalReward(p.Reward)
	if err != nil {
		return "", "", err
	}
	return conditionsJSON, rewardJSON, nil
}

func (s *Store) queryPolicies(ctx context.Context, query string, args ...any) ([]engine.RewardPolicy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []engine.RewardPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(rows *sql.Rows) (engine.RewardPolicy, error) {
	var (
		p              engine.RewardPolicy
		id, cardType   string
		description    sql.NullString
		conditionsJSON string
		rewardJSON     string
		createdAt      string
		updatedAt      string
	)

	err := rows.Scan(
		&id, &cardType, &p.Name, &description, &p.Priority, &p.Enabled,
		&conditionsJSON, &rewardJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan policy: %w", err)
	}

	p.ID = engine.PolicyID(id)
	p.CardTypeID = engine.CardTypeID(cardType)
	p.Description = description.String

	p.Conditions, err = factory.UnmarshalConditions(conditionsJSON)
	if err != nil {
		return p, fmt.Errorf("policy %s: %w", p.ID, err)
	}
	p.Reward, err = factory.UnmarshalReward(rewardJSON)
	if err != nil {
		return p, fmt.Errorf("policy %s: %w", p.ID, err)
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

// =============================================================================
// TRANSACTION LEDGER (usage.TransactionStore interface)
// =============================================================================

// SpendBetween sums transaction amounts for the card in [from, to).
// The sum runs in Go over decimal values, never in SQL.
func (s *Store) SpendBetween(ctx context.Context, cardID string, from, to time.Time) (decimal.Decimal, error) {
	return s.sumColumn(ctx, "amount", cardID, from, to)
}

// BonusPointsBetween sums granted bonus points for the card in [from, to).
func (s *Store) BonusPointsBetween(ctx context.Context, cardID string, from, to time.Time) (decimal.Decimal, error) {
	return s.sumColumn(ctx, "bonus_points", cardID, from, to)
}

func (s *Store) sumColumn(ctx context.Context, column, cardID string, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + column + `
		FROM card_transactions
		WHERE card_id = ? AND occurred_at >= ? AND occurred_at < ?
	`

	rows, err := s.db.QueryContext(ctx, query, cardID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate %s: %w", column, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt %s value %q: %w", column, raw, err)
		}
		total = total.Add(value)
	}
	return total, rows.Err()
}

// AddTransaction records a card transaction.
func (s *Store) AddTransaction(ctx context.Context, tx usage.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO card_transactions
		(id, card_id, amount, currency, mcc, merchant_name, category,
		 transaction_type, bonus_points, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID, tx.CardID, tx.Amount.String(), tx.Currency,
		tx.MCC, tx.MerchantName, tx.Category, string(tx.TransactionType),
		tx.BonusPoints.String(),
		tx.OccurredAt.UTC().Format(time.RFC3339),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add transaction %s: %w", tx.ID, err)
	}
	return nil
}

// UpdateTransaction replaces an existing transaction.
func (s *Store) UpdateTransaction(ctx context.Context, tx usage.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE card_transactions
		SET card_id = ?, amount = ?, currency = ?, mcc = ?, merchant_name = ?,
		    category = ?, transaction_type = ?, bonus_points = ?, occurred_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		tx.CardID, tx.Amount.String(), tx.Currency, tx.MCC, tx.MerchantName,
		tx.Category, string(tx.TransactionType), tx.BonusPoints.String(),
		tx.OccurredAt.UTC().Format(time.RFC3339),
		tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", tx.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return usage.ErrTransactionNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction and reports which card it
// belonged to, so the caller can invalidate that card's usage cache.
func (s *Store) DeleteTransaction(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cardID string
	err := s.db.QueryRowContext(ctx,
		"SELECT card_id FROM card_transactions WHERE id = ?", id).Scan(&cardID)
	if err == sql.ErrNoRows {
		return "", usage.ErrTransactionNotFound
	}
	if err != nil {
		return "", err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM card_transactions WHERE id = ?", id); err != nil {
		return "", fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return cardID, nil
}

// TransactionsByCard returns the card's transactions in [from, to),
// oldest first.
func (s *Store) TransactionsByCard(ctx context.Context, cardID string, from, to time.Time) ([]usage.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, card_id, amount, currency, mcc, merchant_name, category,
		       transaction_type, bonus_points, occurred_at, created_at
		FROM card_transactions
		WHERE card_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, cardID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []usage.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (usage.Transaction, error) {
	var (
		tx               usage.Transaction
		amount           string
		mcc              sql.NullString
		merchantName     sql.NullString
		category         sql.NullString
		transactionType  sql.NullString
		bonusPoints      string
		occurredAt       string
		createdAt        string
	)

	err := rows.Scan(
		&tx.ID, &tx.CardID, &amount, &tx.Currency, &mcc, &merchantName,
		&category, &transactionType, &bonusPoints, &occurredAt, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return tx, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	tx.BonusPoints, err = decimal.NewFromString(bonusPoints)
	if err != nil {
		return tx, fmt.Errorf("corrupt bonus_points %q: %w", bonusPoints, err)
	}

	tx.MCC = mcc.String
	tx.MerchantName = merchantName.String
	tx.Category = category.String
	tx.TransactionType = engine.TransactionType(transactionType.String)
	tx.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return tx, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"reward_policies", "card_transactions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}
