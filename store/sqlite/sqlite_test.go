package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardfolio/reward-engine/engine"
	"github.com/cardfolio/reward-engine/store/sqlite"
	"github.com/cardfolio/reward-engine/usage"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func samplePolicy(id engine.PolicyID, priority int) engine.RewardPolicy {
	minSpend := dec("500")
	capValue := int64(2000)
	return engine.RewardPolicy{
		ID:          id,
		CardTypeID:  "meridian-aurora",
		Name:        "Online bonus",
		Description: "bonus miles on online spend",
		Priority:    priority,
		Enabled:     true,
		Conditions: []engine.RuleCondition{{
			Kind: engine.CondTransactionType, Op: engine.OpEquals, Values: []string{"online"},
		}},
		Reward: engine.RewardConfig{
			Method:          engine.MethodStandard,
			BaseMultiplier:  dec("1"),
			BonusMultiplier: dec("9"),
			AmountRounding:  engine.RoundFloorBlock5,
			PointsRounding:  engine.RoundFloor,
			BlockSize:       5,
			MonthlyCap:      &capValue,
			MonthlyMinSpend: &minSpend,
			SpendPeriod:     engine.PeriodStatementMonth,
			PointsCurrency:  "Miles",
		},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	// GIVEN: a policy with conditions, tiers absent, cap and min-spend set
	// WHEN: inserted and read back
	// THEN: the JSON columns reproduce the full configuration

	store := newStore(t)
	ctx := context.Background()

	original := samplePolicy("pol-1", 10)
	require.NoError(t, store.InsertPolicy(ctx, original))

	got, err := store.GetPolicy(ctx, "pol-1")
	require.NoError(t, err)

	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.CardTypeID, got.CardTypeID)
	assert.Equal(t, original.Priority, got.Priority)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, engine.CondTransactionType, got.Conditions[0].Kind)
	assert.Equal(t, engine.MethodStandard, got.Reward.Method)
	assert.Equal(t, int64(5), got.Reward.BlockSize)
	require.NotNil(t, got.Reward.MonthlyCap)
	assert.Equal(t, int64(2000), *got.Reward.MonthlyCap)
	require.NotNil(t, got.Reward.MonthlyMinSpend)
	assert.True(t, got.Reward.MonthlyMinSpend.Equal(dec("500")))
	assert.True(t, got.Reward.BaseMultiplier.Equal(dec("1")))
}

func TestPoliciesByCardType_CatalogOrderAndEnabledFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := samplePolicy("pol-a", 10)
	second := samplePolicy("pol-b", 10)
	disabled := samplePolicy("pol-c", 99)
	disabled.Enabled = false

	require.NoError(t, store.InsertPolicy(ctx, first))
	require.NoError(t, store.InsertPolicy(ctx, second))
	require.NoError(t, store.InsertPolicy(ctx, disabled))

	enabled, err := store.PoliciesByCardType(ctx, "meridian-aurora", true)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, engine.PolicyID("pol-a"), enabled[0].ID, "insertion order is catalog order")
	assert.Equal(t, engine.PolicyID("pol-b"), enabled[1].ID)

	all, err := store.PoliciesByCardType(ctx, "meridian-aurora", false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdatePolicy_PreservesCatalogPosition(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertPolicy(ctx, samplePolicy("pol-a", 10)))
	require.NoError(t, store.InsertPolicy(ctx, samplePolicy("pol-b", 10)))

	edited := samplePolicy("pol-a", 10)
	edited.Name = "renamed"
	require.NoError(t, store.UpdatePolicy(ctx, edited))

	policies, err := store.PoliciesByCardType(ctx, "meridian-aurora", true)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, engine.PolicyID("pol-a"), policies[0].ID, "update keeps the row's position")
	assert.Equal(t, "renamed", policies[0].Name)
}

func TestPolicyNotFound(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetPolicy(ctx, "ghost")
	assert.ErrorIs(t, err, engine.ErrPolicyNotFound)

	assert.ErrorIs(t, store.UpdatePolicy(ctx, samplePolicy("ghost", 1)), engine.ErrPolicyNotFound)
	assert.ErrorIs(t, store.DeletePolicy(ctx, "ghost"), engine.ErrPolicyNotFound)
}

func TestLedgerAggregation_HalfOpenWindow(t *testing.T) {
	// The aggregation window is [from, to): a transaction exactly at 'to'
	// belongs to the next period.

	store := newStore(t)
	ctx := context.Background()

	add := func(id string, amount, bonus string, at time.Time) {
		require.NoError(t, store.AddTransaction(ctx, usage.Transaction{
			ID: id, CardID: "card-1",
			Amount:      dec(amount),
			Currency:    "SGD",
			BonusPoints: dec(bonus),
			OccurredAt:  at,
		}))
	}

	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	add("tx-1", "100.25", "50", from)                    // inclusive start
	add("tx-2", "200", "30", to.Add(-time.Second))       // inside
	add("tx-3", "999", "999", to)                        // excluded end
	add("tx-4", "999", "999", from.Add(-time.Second))    // before window

	spend, err := store.SpendBetween(ctx, "card-1", from, to)
	require.NoError(t, err)
	assert.True(t, spend.Equal(dec("300.25")), "got %s", spend)

	bonus, err := store.BonusPointsBetween(ctx, "card-1", from, to)
	require.NoError(t, err)
	assert.True(t, bonus.Equal(dec("80")), "got %s", bonus)
}

func TestTransactionLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	at := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	tx := usage.Transaction{
		ID: "tx-1", CardID: "card-1",
		Amount: dec("100"), Currency: "SGD",
		MCC: "5811", MerchantName: "Harbor Cafe", Category: "dining",
		TransactionType: engine.TxContactless,
		BonusPoints:     dec("45"),
		OccurredAt:      at,
	}
	require.NoError(t, store.AddTransaction(ctx, tx))

	tx.Amount = dec("150")
	require.NoError(t, store.UpdateTransaction(ctx, tx))

	listed, err := store.TransactionsByCard(ctx, "card-1", at.AddDate(0, 0, -1), at.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Amount.Equal(dec("150")))
	assert.Equal(t, "Harbor Cafe", listed[0].MerchantName)
	assert.Equal(t, engine.TxContactless, listed[0].TransactionType)

	cardID, err := store.DeleteTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "card-1", cardID)

	_, err = store.DeleteTransaction(ctx, "tx-1")
	assert.ErrorIs(t, err, usage.ErrTransactionNotFound)

	assert.ErrorIs(t, store.UpdateTransaction(ctx, tx), usage.ErrTransactionNotFound)
}
