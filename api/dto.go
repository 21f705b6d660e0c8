/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

POINT VALUES:
  Point and money fields are serialized as decimal strings ("190", not
  190.0) so clients never see float artifacts. Parse with a decimal
  library, not float64.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON, the policy wire format
*/
package api

import (
	"time"

	"github.com/cardfolio/reward-engine/engine"
	"github.com/cardfolio/reward-engine/usage"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CardDTO identifies the paying card in evaluate/simulate requests.
type CardDTO struct {
	ID           string `json:"id"`
	Issuer       string `json:"issuer"`
	ProductName  string `json:"product_name"`
	StatementDay int    `json:"statement_day,omitempty"`
}

// EvaluateRequest is the request to compute points for a transaction.
type EvaluateRequest struct {
	Card            CardDTO `json:"card"`
	Amount          string  `json:"amount"`
	Currency        string  `json:"currency"`
	MCC             string  `json:"mcc,omitempty"`
	MerchantName    string  `json:"merchant_name,omitempty"`
	Category        string  `json:"category,omitempty"`
	TransactionType string  `json:"transaction_type,omitempty"`
	Date            string  `json:"date,omitempty"` // RFC 3339; default now

	// Optional explicit record flag: when true the transaction and its
	// granted bonus are persisted to the ledger.
	Record bool `json:"record,omitempty"`
}

// SimulateRequest is the request for a what-if calculation. Nothing is
// persisted.
type SimulateRequest struct {
	Card         CardDTO `json:"card"`
	Amount       string  `json:"amount"`
	Currency     string  `json:"currency"`
	MCC          string  `json:"mcc,omitempty"`
	MerchantName string  `json:"merchant_name,omitempty"`
	Category     string  `json:"category,omitempty"`
	Online       bool    `json:"online,omitempty"`
	Contactless  bool    `json:"contactless,omitempty"`
}

// ResultDTO is the evaluation outcome returned to clients.
type ResultDTO struct {
	TotalPoints    string `json:"total_points"`
	BasePoints     string `json:"base_points"`
	BonusPoints    string `json:"bonus_points"`
	PointsCurrency string `json:"points_currency"`

	RemainingMonthlyBonusPoints *string `json:"remaining_monthly_bonus_points,omitempty"`
	MinSpendMet                 bool    `json:"min_spend_met"`

	AppliedPolicyID string `json:"applied_policy_id,omitempty"`
	AppliedTier     string `json:"applied_tier,omitempty"`

	Messages []string `json:"messages"`
	Source   string   `json:"source"`

	// Set when the request asked to record the transaction.
	TransactionID string `json:"transaction_id,omitempty"`
}

// CardProductDTO describes one built-in card product.
type CardProductDTO struct {
	CardTypeID     string `json:"card_type_id"`
	Issuer         string `json:"issuer"`
	ProductName    string `json:"product_name"`
	PointsCurrency string `json:"points_currency"`
}

// TransactionDTO represents a recorded card transaction.
type TransactionDTO struct {
	ID              string `json:"id"`
	CardID          string `json:"card_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	MCC             string `json:"mcc,omitempty"`
	MerchantName    string `json:"merchant_name,omitempty"`
	Category        string `json:"category,omitempty"`
	TransactionType string `json:"transaction_type,omitempty"`
	BonusPoints     string `json:"bonus_points"`
	OccurredAt      string `json:"occurred_at"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// CreateTransactionRequest is the request to record a transaction directly.
type CreateTransactionRequest struct {
	ID              string `json:"id,omitempty"` // generated when empty
	CardID          string `json:"card_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	MCC             string `json:"mcc,omitempty"`
	MerchantName    string `json:"merchant_name,omitempty"`
	Category        string `json:"category,omitempty"`
	TransactionType string `json:"transaction_type,omitempty"`
	BonusPoints     string `json:"bonus_points,omitempty"`
	OccurredAt      string `json:"occurred_at"` // RFC 3339
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toResultDTO(result engine.CalculationResult) ResultDTO {
	dto := ResultDTO{
		TotalPoints:    result.TotalPoints.String(),
		BasePoints:     result.BasePoints.String(),
		BonusPoints:    result.BonusPoints.String(),
		PointsCurrency: result.PointsCurrency,
		MinSpendMet:    result.MinSpendMet,
		Messages:       result.Messages,
		Source:         string(result.Source),
	}
	if dto.Messages == nil {
		dto.Messages = []string{}
	}
	if result.RemainingMonthlyBonusPoints != nil {
		remaining := result.RemainingMonthlyBonusPoints.String()
		dto.RemainingMonthlyBonusPoints = &remaining
	}
	if result.AppliedPolicy != nil {
		dto.AppliedPolicyID = string(result.AppliedPolicy.ID)
	}
	if result.AppliedTier != nil {
		dto.AppliedTier = result.AppliedTier.Name
	}
	return dto
}

func toTransactionDTO(tx usage.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:              tx.ID,
		CardID:          tx.CardID,
		Amount:          tx.Amount.String(),
		Currency:        tx.Currency,
		MCC:             tx.MCC,
		MerchantName:    tx.MerchantName,
		Category:        tx.Category,
		TransactionType: string(tx.TransactionType),
		BonusPoints:     tx.BonusPoints.String(),
		OccurredAt:      tx.OccurredAt.Format(time.RFC3339),
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(txs []usage.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func cardFromDTO(dto CardDTO) engine.Card {
	return engine.Card{
		ID:           dto.ID,
		Issuer:       dto.Issuer,
		ProductName:  dto.ProductName,
		StatementDay: dto.StatementDay,
	}
}
