package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/iho/gofactor/internal/adapter/http/dto"
	"github.com/iho/gofactor/internal/domain"
)

// ComplianceService defines the behavior needed by ComplianceHandler.
type ComplianceService interface {
	Register(ctx context.Context, caller, addr domain.Address, expiresAt *time.Time) (*domain.ComplianceEntry, error)
	Revoke(ctx context.Context, caller, addr domain.Address) (*domain.ComplianceEntry, error)
	GetEntry(ctx context.Context, addr domain.Address) (*domain.ComplianceEntry, error)
}

// ComplianceHandler handles compliance registry HTTP requests.
type ComplianceHandler struct {
	registry ComplianceService
	now      func() time.Time
}

// NewComplianceHandler creates a new ComplianceHandler.
func NewComplianceHandler(registry ComplianceService, now func() time.Time) *ComplianceHandler {
	if now == nil {
		now = time.Now
	}
	return &ComplianceHandler{registry: registry, now: now}
}

// Get returns the compliance entry of an address.
func (h *ComplianceHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	entry, err := h.registry.GetEntry(r.Context(), addr)
	if err != nil {
		writeDomainError(w, r, "failed to get compliance entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ComplianceFromDomain(entry, h.now()))
}

// Register verifies an address. The body is optional and may carry an expiry.
func (h *ComplianceHandler) Register(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	var req dto.RegisterComplianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.registry.Register(r.Context(), caller, addr, req.ExpiresAt)
	if err != nil {
		writeDomainError(w, r, "failed to register address", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ComplianceFromDomain(entry, h.now()))
}

// Revoke removes the verification of an address.
func (h *ComplianceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	entry, err := h.registry.Revoke(r.Context(), caller, addr)
	if err != nil {
		writeDomainError(w, r, "failed to revoke address", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ComplianceFromDomain(entry, h.now()))
}
