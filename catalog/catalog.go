/*
Package catalog maps issuer+product identities to stable card-type ids and
holds the built-in default reward policies.

PURPOSE:
  The catalog is a bootstrap/seed mechanism, not the system of record.
  When the policy store has nothing for a card type, the composition root
  falls back to these hand-curated defaults so a freshly-installed system
  still computes sensible rewards for well-known card products.

RESOLUTION:
  resolve(issuer, product) normalizes both strings (case, punctuation,
  whitespace) and looks them up in a small alias table. Unknown pairs get
  a deterministic slug id so stored policies can still be attached to them
  later; "cash" stays the reserved cash-equivalent id.

DEFAULT POLICIES:
  A handful of well-known products, each expressed purely as policy data:
  block-based miles cards, direct-rate cashback cards, capped bonus
  categories, minimum-spend gates. No code per card.

SEE ALSO:
  - engine/service.go: CardResolver contract and fallback order
  - repository/: The store-backed primary policy source
*/
package catalog

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/engine"
)

// Registry resolves card identities and serves built-in default policies.
// Immutable after construction; safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	aliases  map[string]engine.CardTypeID
	defaults map[engine.CardTypeID][]engine.RewardPolicy
	cards    []CardProduct
}

// CardProduct describes one catalog entry for listing surfaces.
type CardProduct struct {
	CardTypeID     engine.CardTypeID
	Issuer         string
	ProductName    string
	PointsCurrency string
}

// Compile-time check that Registry satisfies the engine contract.
var _ engine.CardResolver = (*Registry)(nil)

// NewRegistry builds the registry with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{
		aliases:  make(map[string]engine.CardTypeID),
		defaults: make(map[engine.CardTypeID][]engine.RewardPolicy),
	}
	for _, seed := range builtinCatalog() {
		r.register(seed.product, seed.policies)
	}
	return r
}

// Resolve maps issuer+product to a stable card-type id. Cash-equivalent
// identities resolve to engine.CardTypeCash. Unknown products resolve to a
// deterministic slug with ErrCardTypeUnknown, so the caller can decide
// whether a best-effort id is acceptable.
func (r *Registry) Resolve(issuer, productName string) (engine.CardTypeID, error) {
	if isCashIdentity(issuer, productName) {
		return engine.CardTypeCash, nil
	}

	key := normalize(issuer) + "/" + normalize(productName)
	r.mu.RLock()
	id, ok := r.aliases[key]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	return slugID(issuer, productName), engine.ErrCardTypeUnknown
}

// DefaultPolicies returns the built-in policies for the card type, or nil
// when the catalog has none. Callers must not mutate the returned slice's
// policies; copies are cheap if they need to.
func (r *Registry) DefaultPolicies(cardType engine.CardTypeID) []engine.RewardPolicy {
	if cardType.IsCashEquivalent() {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	policies := r.defaults[cardType]
	out := make([]engine.RewardPolicy, len(policies))
	copy(out, policies)
	return out
}

// Products lists the built-in catalog entries.
func (r *Registry) Products() []CardProduct {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CardProduct, len(r.cards))
	copy(out, r.cards)
	return out
}

func (r *Registry) register(product CardProduct, policies []engine.RewardPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalize(product.Issuer) + "/" + normalize(product.ProductName)
	r.aliases[key] = product.CardTypeID
	r.defaults[product.CardTypeID] = policies
	r.cards = append(r.cards, product)
}

// =============================================================================
// IDENTITY NORMALIZATION
// =============================================================================

func normalize(s string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(s) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func isCashIdentity(issuer, product string) bool {
	p := normalize(product)
	return p == "cash" || (p == "" && normalize(issuer) == "cash")
}

func slugID(issuer, product string) engine.CardTypeID {
	slug := func(s string) string {
		fields := strings.Fields(strings.ToLower(s))
		return strings.Join(fields, "-")
	}
	i, p := slug(issuer), slug(product)
	switch {
	case i == "":
		return engine.CardTypeID(p)
	case p == "":
		return engine.CardTypeID(i)
	default:
		return engine.CardTypeID(i + "-" + p)
	}
}

// =============================================================================
// BUILT-IN CATALOG
// =============================================================================

type catalogSeed struct {
	product  CardProduct
	policies []engine.RewardPolicy
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("catalog: bad decimal literal " + s)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := mustDec(s)
	return &d
}

func int64Ptr(n int64) *int64 { return &n }

// catalogEpoch stamps the built-in policies' audit fields so they are
// distinguishable from store-authored ones.
var catalogEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func builtinCatalog() []catalogSeed {
	return []catalogSeed{
		{
			// Block-based miles card: 1 mile per $5 block, 9 bonus miles per
			// block online, capped per statement month.
			product: CardProduct{
				CardTypeID: "meridian-aurora", Issuer: "Meridian Bank",
				ProductName: "Aurora Miles", PointsCurrency: "Miles",
			},
			policies: []engine.RewardPolicy{
				{
					ID: "meridian-aurora-online", CardTypeID: "meridian-aurora",
					Name:        "Aurora Online Bonus",
					Description: "9 bonus miles per $5 block on online spend",
					Enabled:     true, Priority: 10,
					Conditions: []engine.RuleCondition{{
						Kind: engine.CondTransactionType, Op: engine.OpEquals, Values: []string{"online"},
					}},
					Reward: engine.RewardConfig{
						Method:          engine.MethodStandard,
						BaseMultiplier:  mustDec("1"),
						BonusMultiplier: mustDec("9"),
						AmountRounding:  engine.RoundFloorBlock5,
						PointsRounding:  engine.RoundFloor,
						BlockSize:       5,
						MonthlyCap:      int64Ptr(2000),
						SpendPeriod:     engine.PeriodStatementMonth,
						PointsCurrency:  "Miles",
					},
					CreatedAt: catalogEpoch, UpdatedAt: catalogEpoch,
				},
				{
					ID: "meridian-aurora-base", CardTypeID: "meridian-aurora",
					Name:        "Aurora Base Earn",
					Description: "1 mile per $5 block on all spend",
					Enabled:     true, Priority: 1,
					Reward: engine.RewardConfig{
						Method:         engine.MethodStandard,
						BaseMultiplier: mustDec("1"),
						AmountRounding: engine.RoundFloorBlock5,
						PointsRounding: engine.RoundFloor,
						BlockSize:      5,
						PointsCurrency: "Miles",
					},
					CreatedAt: catalogEpoch, UpdatedAt: catalogEpoch,
				},
			},
		},
		{
			// Direct-rate card with tiered bonus categories behind a
			// minimum-spend gate.
			product: CardProduct{
				CardTypeID: "harbor-revolve", Issuer: "Harbor Trust",
				ProductName: "Revolve Rewards", PointsCurrency: "Harbor Points",
			},
			policies: []engine.RewardPolicy{
				{
					ID: "harbor-revolve-earn", CardTypeID: "harbor-revolve",
					Name:        "Revolve Earn",
					Description: "1 point per dollar, up to 9 bonus points in boosted categories",
					Enabled:     true, Priority: 5,
					Reward: engine.RewardConfig{
						Method:          engine.MethodDirect,
						BaseMultiplier:  mustDec("1"),
						BonusMultiplier: mustDec("3"),
						PointsRounding:  engine.RoundFloor,
						MonthlyCap:      int64Ptr(10000),
						MonthlyMinSpend: decPtr("500"),
						SpendPeriod:     engine.PeriodCalendarMonth,
						PointsCurrency:  "Harbor Points",
						BonusTiers: []engine.BonusTier{
							{
								Name: "Dining", Priority: 10, Multiplier: mustDec("9"),
								Condition: engine.RuleCondition{
									Kind: engine.CondMCC, Op: engine.OpInclude,
									Values: []string{"5811", "5812", "5813", "5814"},
								},
							},
							{
								Name: "Contactless", Priority: 5, Multiplier: mustDec("5"),
								Condition: engine.RuleCondition{
									Kind: engine.CondTransactionType, Op: engine.OpEquals,
									Values: []string{"contactless"},
								},
							},
						},
					},
					CreatedAt: catalogEpoch, UpdatedAt: catalogEpoch,
				},
			},
		},
		{
			// Category cashback card: flat rate, boosted groceries, foreign
			// currency excluded from the boost.
			product: CardProduct{
				CardTypeID: "civic-everyday", Issuer: "Civic Bank",
				ProductName: "Everyday Cash", PointsCurrency: "Cash Points",
			},
			policies: []engine.RewardPolicy{
				{
					ID: "civic-everyday-groceries", CardTypeID: "civic-everyday",
					Name:        "Everyday Groceries Boost",
					Description: "Extra points on local grocery spend",
					Enabled:     true, Priority: 10,
					Conditions: []engine.RuleCondition{
						{Kind: engine.CondCategory, Op: engine.OpInclude, Values: []string{"groceries"}},
						{Kind: engine.CondCurrency, Op: engine.OpEquals, Values: []string{"SGD"}},
					},
					Reward: engine.RewardConfig{
						Method:          engine.MethodDirect,
						BaseMultiplier:  mustDec("0.3"),
						BonusMultiplier: mustDec("2.7"),
						PointsRounding:  engine.RoundFloor,
						MonthlyCap:      int64Ptr(600),
						SpendPeriod:     engine.PeriodCalendarMonth,
						PointsCurrency:  "Cash Points",
					},
					CreatedAt: catalogEpoch, UpdatedAt: catalogEpoch,
				},
				{
					ID: "civic-everyday-base", CardTypeID: "civic-everyday",
					Name:        "Everyday Base Earn",
					Enabled:     true, Priority: 1,
					Reward: engine.RewardConfig{
						Method:         engine.MethodDirect,
						BaseMultiplier: mustDec("0.3"),
						PointsRounding: engine.RoundFloor,
						PointsCurrency: "Cash Points",
					},
					CreatedAt: catalogEpoch, UpdatedAt: catalogEpoch,
				},
			},
		},
	}
}
