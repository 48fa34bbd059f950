package handlers

import (
	"net/http"
	"time"

	"finance-tracker/internal/aggregate"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// TransactionResponse is the wire form of a transaction.
type TransactionResponse struct {
	ID          string          `json:"id"`
	Kind        models.Kind     `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Date        string          `json:"date"`
	Timestamp   string          `json:"timestamp"`
}

// transactionResponse renders tx in the zone monthly figures are computed in,
// so the date always names the month the transaction is counted in.
func (h *Handlers) transactionResponse(tx *models.Transaction) TransactionResponse {
	loc := h.now().Location()
	created := tx.CreatedAt.In(loc)
	return TransactionResponse{
		ID:          tx.ID,
		Kind:        tx.Kind,
		Amount:      tx.Amount,
		Description: tx.Description,
		CreatedAt:   created,
		UpdatedAt:   tx.UpdatedAt.In(loc),
		Date:        created.Format(time.DateOnly),
		Timestamp:   created.Format(time.RFC3339),
	}
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// Balance returns the signed sum of the user's transactions.
func (h *Handlers) Balance(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	txs, err := h.ledger.List(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: aggregate.Balance(txs)})
}

// MonthlyData returns income, expenses and change for the current month.
func (h *Handlers) MonthlyData(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	txs, err := h.ledger.List(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.MonthlyFigures(txs, h.now(), h.window))
}

// ListTransactions returns the user's transactions, newest first.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	txs, err := h.ledger.List(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		items = append(items, h.transactionResponse(&txs[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

// createTransactionRequest accepts "type" as an alias for "kind".
type createTransactionRequest struct {
	Kind        models.Kind      `json:"kind"`
	Type        models.Kind      `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
}

// CreateTransaction records a new transaction for the user.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = req.Type
	}
	if req.Amount == nil {
		h.writeError(w, r, ledger.ErrInvalidAmount)
		return
	}

	user := GetUserFromContext(r)
	tx, err := h.ledger.Create(r.Context(), user.ID, kind, *req.Amount, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.transactionResponse(tx))
}

type updateTransactionRequest struct {
	Kind        *models.Kind     `json:"kind"`
	Type        *models.Kind     `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
}

// UpdateTransaction applies a partial update to one of the user's transactions.
func (h *Handlers) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch := models.TransactionPatch{
		Kind:        req.Kind,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if patch.Kind == nil {
		patch.Kind = req.Type
	}

	user := GetUserFromContext(r)
	tx, err := h.ledger.Update(r.Context(), user.ID, r.PathValue("id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.transactionResponse(tx))
}

// DeleteTransaction removes one of the user's transactions.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if err := h.ledger.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
