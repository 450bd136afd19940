package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/domain"
)

// ListingService defines the behavior needed by ListingHandler.
type ListingService interface {
	List(ctx context.Context, caller domain.Address, id uint64, price decimal.Decimal, negotiable bool) (*domain.Listing, error)
	CancelListing(ctx context.Context, caller domain.Address, id uint64) (*domain.Listing, error)
	Reprice(ctx context.Context, caller domain.Address, id uint64, price decimal.Decimal) (*domain.Listing, error)
	GetListing(ctx context.Context, id uint64) (*domain.Listing, error)
	ListActiveListings(ctx context.Context, limit, offset int) ([]*domain.Listing, error)
}

// ListingHandler handles marketplace listing HTTP requests.
type ListingHandler struct {
	listings ListingService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listings ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// Create lists an invoice held by the caller.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndInvoice(w, r)
	if !ok {
		return
	}

	var req dto.ListInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	price, err := req.ParsePrice()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	listing, err := h.listings.List(r.Context(), caller, id, price, req.Negotiable)
	if err != nil {
		writeDomainError(w, r, "failed to list invoice", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ListingFromDomain(listing))
}

// Reprice changes the price of a negotiable listing.
func (h *ListingHandler) Reprice(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndInvoice(w, r)
	if !ok {
		return
	}

	var req dto.RepriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	price, err := req.ParsePrice()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	listing, err := h.listings.Reprice(r.Context(), caller, id, price)
	if err != nil {
		writeDomainError(w, r, "failed to reprice listing", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListingFromDomain(listing))
}

// Cancel withdraws an active listing.
func (h *ListingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndInvoice(w, r)
	if !ok {
		return
	}

	listing, err := h.listings.CancelListing(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, "failed to cancel listing", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListingFromDomain(listing))
}

// Get retrieves the listing of an invoice.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice id", err.Error())
		return
	}

	listing, err := h.listings.GetListing(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get listing", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListingFromDomain(listing))
}

// ListActive lists the active listings.
func (h *ListingHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)

	listings, err := h.listings.ListActiveListings(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, r, "failed to list listings", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListListingsResponse{
		Listings: dto.ListingsFromDomain(listings),
		Limit:    limit,
		Offset:   offset,
	})
}

func callerAndInvoice(w http.ResponseWriter, r *http.Request) (domain.Address, uint64, bool) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return domain.Address{}, 0, false
	}

	id, err := invoiceIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice id", err.Error())
		return domain.Address{}, 0, false
	}

	return caller, id, true
}
