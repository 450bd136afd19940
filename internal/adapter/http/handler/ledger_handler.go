package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error)
	ReconcileAccounts(ctx context.Context, addrs []domain.Address) ([]*usecase.ReconciliationResult, error)
}

const maxReconcileAddresses = 100

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// CheckConsistency checks that custody and supply invariants hold.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.CheckConsistency(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrInconsistentLedger) && report != nil {
			writeJSON(w, http.StatusConflict, dto.ConsistencyFromUseCase(report))
			return
		}
		writeDomainError(w, r, "failed to check consistency", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromUseCase(report))
}

// Reconcile compares the stored balance of every ?address= with the net of its transfers.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query()["address"]
	if len(raw) == 0 || len(raw) > maxReconcileAddresses {
		writeError(w, http.StatusBadRequest, "invalid request", fmt.Sprintf("between 1 and %d address parameters are required", maxReconcileAddresses))
		return
	}

	addrs := make([]domain.Address, 0, len(raw))
	for _, s := range raw {
		addr, err := domain.ParseAddress(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid address", err.Error())
			return
		}
		addrs = append(addrs, addr)
	}

	results, err := h.ledgerUC.ReconcileAccounts(r.Context(), addrs)
	if err != nil {
		writeDomainError(w, r, "failed to reconcile accounts", err)
		return
	}

	resp := dto.ListReconciliationsResponse{Reconciled: true, Accounts: dto.ReconciliationsFromUseCase(results)}
	for _, a := range resp.Accounts {
		resp.Reconciled = resp.Reconciled && a.Reconciled
	}
	writeJSON(w, http.StatusOK, resp)
}
