package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lottoloop/chain-custody/internal/models"
)

// AccountReader is the read-only account access the admin API needs.
type AccountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// LedgerReader exposes the pending ledger rows for operator inspection.
type LedgerReader interface {
	ListPending(ctx context.Context) ([]models.TransactionRecord, error)
}

type AccountHandler struct {
	accounts AccountReader
	ledger   LedgerReader
}

func NewAccountHandler(accounts AccountReader, ledger LedgerReader) *AccountHandler {
	return &AccountHandler{accounts: accounts, ledger: ledger}
}

// GetAccount returns an account with its custodial balances.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid-account-id", "account id must be a UUID")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			RespondError(w, r, http.StatusNotFound, "account-not-found", "no such account")
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "failed to load account")
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// ListPendingTransactions returns ledger rows still awaiting an on-chain outcome.
func (h *AccountHandler) ListPendingTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.ListPending(r.Context())
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "failed to list pending transactions")
		return
	}
	if records == nil {
		records = []models.TransactionRecord{}
	}
	RespondJSON(w, http.StatusOK, records)
}
