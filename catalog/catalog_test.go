package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/catalog"
	"github.com/cardfolio/reward-engine/engine"
)

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtrT(s string) *decimal.Decimal {
	d := mustDec(s)
	return &d
}

func TestResolve_KnownProduct(t *testing.T) {
	r := catalog.NewRegistry()

	id, err := r.Resolve("Meridian Bank", "Aurora Miles")
	require.NoError(t, err)
	assert.Equal(t, engine.CardTypeID("meridian-aurora"), id)
}

func TestResolve_NormalizesPunctuationAndCase(t *testing.T) {
	r := catalog.NewRegistry()

	id, err := r.Resolve("MERIDIAN bank", "aurora-miles")
	require.NoError(t, err)
	assert.Equal(t, engine.CardTypeID("meridian-aurora"), id)
}

func TestResolve_Cash(t *testing.T) {
	r := catalog.NewRegistry()

	id, err := r.Resolve("", "Cash")
	require.NoError(t, err)
	assert.Equal(t, engine.CardTypeCash, id)
	assert.True(t, id.IsCashEquivalent())
}

func TestResolve_UnknownProduct_SlugWithError(t *testing.T) {
	r := catalog.NewRegistry()

	id, err := r.Resolve("Niche Bank", "Obscure Card")
	assert.ErrorIs(t, err, engine.ErrCardTypeUnknown)
	assert.Equal(t, engine.CardTypeID("niche-bank-obscure-card"), id)
}

func TestDefaultPolicies_ValidAndEnabled(t *testing.T) {
	// Every built-in default must pass load-time validation; the catalog is
	// the fallback of last resort before the 1-point default.
	r := catalog.NewRegistry()

	for _, product := range r.Products() {
		policies := r.DefaultPolicies(product.CardTypeID)
		require.NotEmpty(t, policies, "catalog product %s has no defaults", product.CardTypeID)
		for _, p := range policies {
			assert.NoError(t, engine.ValidatePolicy(p), "policy %s", p.ID)
			assert.Equal(t, product.CardTypeID, p.CardTypeID)
			assert.True(t, p.Enabled)
		}
	}
}

func TestDefaultPolicies_CashHasNone(t *testing.T) {
	r := catalog.NewRegistry()
	assert.Nil(t, r.DefaultPolicies(engine.CardTypeCash))
}

func TestDefaultPolicies_ReturnsCopy(t *testing.T) {
	r := catalog.NewRegistry()

	first := r.DefaultPolicies("meridian-aurora")
	require.NotEmpty(t, first)
	first[0].Enabled = false

	second := r.DefaultPolicies("meridian-aurora")
	assert.True(t, second[0].Enabled, "mutating a returned slice must not affect the catalog")
}

func TestDefaults_EvaluateEndToEnd(t *testing.T) {
	// The Aurora defaults should produce the block-based online earn.
	r := catalog.NewRegistry()
	policies := r.DefaultPolicies("meridian-aurora")

	in := engine.CalculationInput{
		Amount:          mustDec("97"),
		Currency:        "SGD",
		TransactionType: engine.TxOnline,
		UsedBonusPoints: decPtrT("0"),
	}

	result := engine.New().Evaluate(in, policies)

	require.NotNil(t, result.AppliedPolicy)
	assert.Equal(t, engine.PolicyID("meridian-aurora-online"), result.AppliedPolicy.ID)
	assert.True(t, result.BasePoints.Equal(mustDec("19")))
	assert.True(t, result.BonusPoints.Equal(mustDec("171")))
	assert.Equal(t, "Miles", result.PointsCurrency)
}
