package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/domain"
)

// CurrencyService defines the settlement currency behavior needed by AccountHandler.
type CurrencyService interface {
	Deposit(ctx context.Context, caller, to domain.Address, amount decimal.Decimal) (*domain.Transfer, error)
	Approve(ctx context.Context, owner, spender domain.Address, amount decimal.Decimal) (*domain.Allowance, error)
	BalanceOf(ctx context.Context, addr domain.Address) (*domain.Account, error)
	Allowance(ctx context.Context, owner, spender domain.Address) (*domain.Allowance, error)
	Transfers(ctx context.Context, addr domain.Address, limit, offset int) ([]*domain.Transfer, error)
}

// AccountHandler handles settlement currency HTTP requests.
type AccountHandler struct {
	currency CurrencyService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(currency CurrencyService) *AccountHandler {
	return &AccountHandler{currency: currency}
}

// Get returns the balance of an address.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	account, err := h.currency.BalanceOf(r.Context(), addr)
	if err != nil {
		writeDomainError(w, r, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Deposit credits an address with new settlement currency. Only the authority may deposit.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	to, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	var req dto.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := req.ParseAmount()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	transfer, err := h.currency.Deposit(r.Context(), caller, to, amount)
	if err != nil {
		writeDomainError(w, r, "failed to deposit", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(transfer))
}

// Transfers lists settlement currency movements of an address, newest first.
func (h *AccountHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	limit, offset := parsePage(r)
	transfers, err := h.currency.Transfers(r.Context(), addr, limit, offset)
	if err != nil {
		writeDomainError(w, r, "failed to list transfers", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListTransfersResponse{
		Transfers: dto.TransfersFromDomain(transfers),
		Limit:     limit,
		Offset:    offset,
	})
}

// Approve sets the allowance the caller grants spender.
func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	spender, err := addressParam(r, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	var req dto.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := req.ParseAmount()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	allowance, err := h.currency.Approve(r.Context(), caller, spender, amount)
	if err != nil {
		writeDomainError(w, r, "failed to approve", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AllowanceFromDomain(allowance))
}

// GetAllowance returns the allowance owner granted spender.
func (h *AccountHandler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := addressParam(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}
	spender, err := addressParam(r, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	allowance, err := h.currency.Allowance(r.Context(), owner, spender)
	if err != nil {
		writeDomainError(w, r, "failed to get allowance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AllowanceFromDomain(allowance))
}
