package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// TradeService defines the settlement operations needed by TradeHandler.
type TradeService interface {
	Buy(ctx context.Context, caller domain.Address, id uint64) (*usecase.BuyResult, error)
	Settle(ctx context.Context, caller domain.Address, id uint64, repayment decimal.Decimal) (*usecase.SettleResult, error)
	MarkDefault(ctx context.Context, caller domain.Address, id uint64) (*domain.Invoice, error)
}

// TradeHandler handles purchases and maturity HTTP requests.
type TradeHandler struct {
	trades TradeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(trades TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// Buy purchases the listed invoice for the caller.
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndInvoice(w, r)
	if !ok {
		return
	}

	result, err := h.trades.Buy(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, "failed to buy invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BuyFromUseCase(result))
}

// Settle repays an invoice on behalf of its issuer.
func (h *TradeHandler) Settle(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndInvoice(w, r)
	if !ok {
		return
	}

	var req dto.SettleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	repayment, err := req.ParseRepayment()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := h.trades.Settle(r.Context(), caller, id, repayment)
	if err != nil {
		writeDomainError(w, r, "failed to settle invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SettleFromUseCase(result))
}

// Default marks an overdue invoice as defaulted.
func (h *TradeHandler) Default(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndInvoice(w, r)
	if !ok {
		return
	}

	invoice, err := h.trades.MarkDefault(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, "failed to mark invoice defaulted", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InvoiceFromDomain(invoice))
}
