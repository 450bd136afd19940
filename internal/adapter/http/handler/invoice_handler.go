package handler

import (
	"context"
	"net/http"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// InvoiceService defines the behavior needed by InvoiceHandler.
type InvoiceService interface {
	Mint(ctx context.Context, caller domain.Address, input usecase.MintInput) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id uint64) (*domain.Invoice, error)
	Portfolio(ctx context.Context, holder domain.Address, limit, offset int) ([]*domain.Invoice, error)
	IssuedBy(ctx context.Context, issuer domain.Address, limit, offset int) ([]*domain.Invoice, error)
	TotalSupply(ctx context.Context) (uint64, error)
	InvoiceEvents(ctx context.Context, id uint64, limit, offset int) ([]*domain.OutboxEvent, error)
}

// InvoiceHandler handles invoice registry HTTP requests.
type InvoiceHandler struct {
	invoices InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoices InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Mint creates an invoice issued by the caller.
func (h *InvoiceHandler) Mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req dto.MintInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	invoice, err := h.invoices.Mint(r.Context(), caller, input)
	if err != nil {
		writeDomainError(w, r, "failed to mint invoice", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.InvoiceFromDomain(invoice))
}

// Get retrieves an invoice by id.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice id", err.Error())
		return
	}

	invoice, err := h.invoices.GetInvoice(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InvoiceFromDomain(invoice))
}

// List lists the invoices held by ?holder= or issued by ?issuer=.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	holder, issuer := r.URL.Query().Get("holder"), r.URL.Query().Get("issuer")
	if (holder == "") == (issuer == "") {
		writeError(w, http.StatusBadRequest, "invalid query", "exactly one of holder or issuer is required")
		return
	}

	limit, offset := parsePage(r)

	var (
		invoices []*domain.Invoice
		err      error
	)
	if holder != "" {
		var addr domain.Address
		if addr, err = domain.ParseAddress(holder); err == nil {
			invoices, err = h.invoices.Portfolio(r.Context(), addr, limit, offset)
		}
	} else {
		var addr domain.Address
		if addr, err = domain.ParseAddress(issuer); err == nil {
			invoices, err = h.invoices.IssuedBy(r.Context(), addr, limit, offset)
		}
	}
	if err != nil {
		writeDomainError(w, r, "failed to list invoices", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListInvoicesResponse{
		Invoices: dto.InvoicesFromDomain(invoices),
		Limit:    limit,
		Offset:   offset,
	})
}

// Supply returns the number of invoices minted so far.
func (h *InvoiceHandler) Supply(w http.ResponseWriter, r *http.Request) {
	total, err := h.invoices.TotalSupply(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to get supply", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SupplyResponse{TotalSupply: total})
}

// Events lists the lifecycle events of an invoice.
func (h *InvoiceHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice id", err.Error())
		return
	}

	limit, offset := parsePage(r)
	events, err := h.invoices.InvoiceEvents(r.Context(), id, limit, offset)
	if err != nil {
		writeDomainError(w, r, "failed to list invoice events", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventsFromDomain(events))
}
