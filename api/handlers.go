/*
handlers.go - HTTP API handlers for the reward engine

PURPOSE:
  Exposes the reward rule engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Evaluation:
    POST   /api/evaluate               Compute points for a transaction
    POST   /api/simulate               What-if calculation, nothing persisted

  Policies:
    GET    /api/policies               List all policies
    POST   /api/policies               Create policy from JSON
    GET    /api/policies/{id}          Get policy
    PUT    /api/policies/{id}          Replace policy
    DELETE /api/policies/{id}          Delete policy

  Cards:
    GET    /api/cards                  List built-in card products
    GET    /api/cards/{id}/transactions Transaction history for a card

  Transactions:
    POST   /api/transactions           Record a transaction
    PUT    /api/transactions/{id}      Edit a transaction
    DELETE /api/transactions/{id}      Delete a transaction

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Calc:         The evaluation composition root
  - Repo:         Cached policy repository (read + write path)
  - Tracker:      Cached usage aggregates, invalidated on ledger writes
  - Transactions: The transaction ledger

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (calculator, repository, ledger)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

LEDGER WRITES:
  Every transaction write invalidates the card's usage cache, so a
  subsequent evaluation observes the new spend and bonus figures.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/catalog"
	"github.com/cardfolio/reward-engine/engine"
	"github.com/cardfolio/reward-engine/factory"
	"github.com/cardfolio/reward-engine/repository"
	"github.com/cardfolio/reward-engine/usage"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Calc          *engine.Calculator
	Repo          *repository.Repository
	Tracker       *usage.Tracker
	Transactions  usage.TransactionStore
	Catalog       *catalog.Registry
	PolicyFactory *factory.PolicyFactory
}

// NewHandler creates a handler from its collaborators.
func NewHandler(calc *engine.Calculator, repo *repository.Repository, tracker *usage.Tracker, transactions usage.TransactionStore, cat *catalog.Registry) *Handler {
	return &Handler{
		Calc:          calc,
		Repo:          repo,
		Tracker:       tracker,
		Transactions:  transactions,
		Catalog:       cat,
		PolicyFactory: factory.NewPolicyFactory(),
	}
}

// =============================================================================
// EVALUATION HANDLERS
// =============================================================================

// Evaluate computes points for a real transaction.
// POST /api/evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		date, err = time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use RFC 3339)", err)
			return
		}
	}

	input := engine.CalculationInput{
		Amount:          amount,
		Currency:        req.Currency,
		MCC:             req.MCC,
		MerchantName:    req.MerchantName,
		Category:        req.Category,
		TransactionType: engine.TransactionType(req.TransactionType),
		Date:            date,
	}

	result := h.Calc.Evaluate(r.Context(), cardFromDTO(req.Card), input)
	dto := toResultDTO(result)

	if req.Record && req.Card.ID != "" {
		tx := usage.Transaction{
			ID:              newTransactionID(),
			CardID:          req.Card.ID,
			Amount:          amount,
			Currency:        req.Currency,
			MCC:             req.MCC,
			MerchantName:    req.MerchantName,
			Category:        req.Category,
			TransactionType: engine.TransactionType(req.TransactionType),
			BonusPoints:     result.BonusPoints,
			OccurredAt:      date,
		}
		if err := h.Transactions.AddTransaction(r.Context(), tx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to record transaction", err)
			return
		}
		h.Tracker.Invalidate(req.Card.ID)
		dto.TransactionID = tx.ID
	}

	writeJSON(w, http.StatusOK, dto)
}

// Simulate runs a what-if calculation. Nothing is persisted.
// POST /api/simulate
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	result := h.Calc.Simulate(r.Context(), engine.SimulationRequest{
		Card:         cardFromDTO(req.Card),
		Amount:       amount,
		Currency:     req.Currency,
		MCC:          req.MCC,
		MerchantName: req.MerchantName,
		Category:     req.Category,
		Online:       req.Online,
		Contactless:  req.Contactless,
	})

	writeJSON(w, http.StatusOK, toResultDTO(result))
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all stored policies.
// GET /api/policies
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Repo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	dtos := make([]factory.PolicyJSON, len(policies))
	for i, p := range policies {
		dtos[i] = h.PolicyFactory.ToJSON(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns a single policy.
// GET /api/policies/{id}
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id := engine.PolicyID(chi.URLParam(r, "id"))

	policy, err := h.Repo.Get(r.Context(), id)
	if engine.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Policy not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get policy", err)
		return
	}

	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(policy))
}

// CreatePolicy creates a policy from its JSON definition.
// POST /api/policies
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var pj factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := h.PolicyFactory.FromJSON(pj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}

	if err := h.Repo.Insert(r.Context(), policy); err != nil {
		if engine.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid policy", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create policy", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.PolicyFactory.ToJSON(policy))
}

// UpdatePolicy replaces a policy. The URL id wins over any id in the body.
// PUT /api/policies/{id}
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var pj factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	pj.ID = id

	policy, err := h.PolicyFactory.FromJSON(pj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}

	if err := h.Repo.Update(r.Context(), policy); err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Policy not found", nil)
			return
		}
		if engine.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid policy", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update policy", err)
		return
	}

	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(policy))
}

// DeletePolicy removes a policy.
// DELETE /api/policies/{id}
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id := engine.PolicyID(chi.URLParam(r, "id"))

	if err := h.Repo.Delete(r.Context(), id); err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Policy not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete policy", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CARD HANDLERS
// =============================================================================

// ListCards returns the built-in card products.
// GET /api/cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	products := h.Catalog.Products()

	dtos := make([]CardProductDTO, len(products))
	for i, p := range products {
		dtos[i] = CardProductDTO{
			CardTypeID:     string(p.CardTypeID),
			Issuer:         p.Issuer,
			ProductName:    p.ProductName,
			PointsCurrency: p.PointsCurrency,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListCardTransactions returns a card's transaction history. Optional
// from/to query params (RFC 3339) bound the window; default last 90 days.
// GET /api/cards/{id}/transactions
func (h *Handler) ListCardTransactions(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -90)
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' (use RFC 3339)", err)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' (use RFC 3339)", err)
			return
		}
	}

	txs, err := h.Transactions.TransactionsByCard(r.Context(), cardID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records a transaction directly on the ledger.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := transactionFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	if err := h.Transactions.AddTransaction(r.Context(), tx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record transaction", err)
		return
	}
	h.Tracker.Invalidate(tx.CardID)

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// UpdateTransaction edits a recorded transaction.
// PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = id

	tx, err := transactionFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	if err := h.Transactions.UpdateTransaction(r.Context(), tx); err != nil {
		if errors.Is(err, usage.ErrTransactionNotFound) {
			writeError(w, http.StatusNotFound, "Transaction not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update transaction", err)
		return
	}
	h.Tracker.Invalidate(tx.CardID)

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// DeleteTransaction removes a transaction and invalidates the affected
// card's usage cache.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cardID, err := h.Transactions.DeleteTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, usage.ErrTransactionNotFound) {
			writeError(w, http.StatusNotFound, "Transaction not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete transaction", err)
		return
	}
	h.Tracker.Invalidate(cardID)

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func transactionFromRequest(req CreateTransactionRequest) (usage.Transaction, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return usage.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}

	bonus := decimal.Zero
	if req.BonusPoints != "" {
		if bonus, err = decimal.NewFromString(req.BonusPoints); err != nil {
			return usage.Transaction{}, fmt.Errorf("invalid bonus_points: %w", err)
		}
	}

	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		return usage.Transaction{}, fmt.Errorf("invalid occurred_at (use RFC 3339): %w", err)
	}

	if req.CardID == "" {
		return usage.Transaction{}, fmt.Errorf("card_id is required")
	}

	id := req.ID
	if id == "" {
		id = newTransactionID()
	}

	return usage.Transaction{
		ID:              id,
		CardID:          req.CardID,
		Amount:          amount,
		Currency:        req.Currency,
		MCC:             req.MCC,
		MerchantName:    req.MerchantName,
		Category:        req.Category,
		TransactionType: engine.TransactionType(req.TransactionType),
		BonusPoints:     bonus,
		OccurredAt:      occurredAt,
	}, nil
}

func newTransactionID() string {
	return fmt.Sprintf("txn-%d", time.Now().UTC().UnixNano())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
