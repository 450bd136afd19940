package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/usecase"
)

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	ID          uint64          `json:"id"`
	Issuer      string          `json:"issuer"`
	Holder      string          `json:"holder"`
	FaceValue   decimal.Decimal `json:"face_value"`
	DueDate     time.Time       `json:"due_date"`
	DocumentRef string          `json:"document_ref"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InvoiceFromDomain converts domain invoice to response.
func InvoiceFromDomain(inv *domain.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:          inv.ID,
		Issuer:      inv.Issuer.Hex(),
		Holder:      inv.Holder.Hex(),
		FaceValue:   inv.FaceValue,
		DueDate:     inv.DueDate,
		DocumentRef: inv.DocumentRef,
		Status:      string(inv.Status),
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

// InvoicesFromDomain converts domain invoices to responses.
func InvoicesFromDomain(invoices []*domain.Invoice) []*InvoiceResponse {
	result := make([]*InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		result[i] = InvoiceFromDomain(inv)
	}
	return result
}

// ListInvoicesResponse represents a page of invoices.
type ListInvoicesResponse struct {
	Invoices []*InvoiceResponse `json:"invoices"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// SupplyResponse reports how many invoices were minted.
type SupplyResponse struct {
	TotalSupply uint64 `json:"total_supply"`
}

// ListingResponse represents a listing in API responses.
type ListingResponse struct {
	InvoiceID  uint64          `json:"invoice_id"`
	Seller     string          `json:"seller"`
	Price      decimal.Decimal `json:"price"`
	Negotiable bool            `json:"negotiable"`
	Active     bool            `json:"active"`
	Buyer      string          `json:"buyer,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ListingFromDomain converts domain listing to response.
func ListingFromDomain(l *domain.Listing) *ListingResponse {
	resp := &ListingResponse{
		InvoiceID:  l.InvoiceID,
		Seller:     l.Seller.Hex(),
		Price:      l.Price,
		Negotiable: l.Negotiable,
		Active:     l.Active,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
	if l.Buyer != nil {
		resp.Buyer = l.Buyer.Hex()
	}
	return resp
}

// ListingsFromDomain converts domain listings to responses.
func ListingsFromDomain(listings []*domain.Listing) []*ListingResponse {
	result := make([]*ListingResponse, len(listings))
	for i, l := range listings {
		result[i] = ListingFromDomain(l)
	}
	return result
}

// ListListingsResponse represents a page of active listings.
type ListListingsResponse struct {
	Listings []*ListingResponse `json:"listings"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// ReleaseResponse describes funds paid out of escrow.
type ReleaseResponse struct {
	EscrowID  string          `json:"escrow_id"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Payout    decimal.Decimal `json:"payout"`
	Fee       decimal.Decimal `json:"fee"`
}

// ReleaseFromDomain converts a domain release to response.
func ReleaseFromDomain(r *domain.Release) *ReleaseResponse {
	if r == nil {
		return nil
	}
	resp := &ReleaseResponse{
		Recipient: r.Recipient.Hex(),
		Payout:    r.Payout,
		Fee:       r.Fee,
	}
	if r.Escrow != nil {
		resp.EscrowID = r.Escrow.ID
		resp.Amount = r.Escrow.Amount
	}
	return resp
}

// BuyResponse represents a completed purchase.
type BuyResponse struct {
	Invoice *InvoiceResponse `json:"invoice"`
	Listing *ListingResponse `json:"listing"`
	Release *ReleaseResponse `json:"release"`
}

// BuyFromUseCase converts a purchase result to response.
func BuyFromUseCase(r *usecase.BuyResult) *BuyResponse {
	return &BuyResponse{
		Invoice: InvoiceFromDomain(r.Invoice),
		Listing: ListingFromDomain(r.Listing),
		Release: ReleaseFromDomain(r.Release),
	}
}

// SettleResponse represents a completed repayment.
type SettleResponse struct {
	Invoice   *InvoiceResponse `json:"invoice"`
	Release   *ReleaseResponse `json:"release"`
	Offered   decimal.Decimal  `json:"offered"`
	Collected decimal.Decimal  `json:"collected"`
}

// SettleFromUseCase converts a repayment result to response.
func SettleFromUseCase(r *usecase.SettleResult) *SettleResponse {
	return &SettleResponse{
		Invoice:   InvoiceFromDomain(r.Invoice),
		Release:   ReleaseFromDomain(r.Release),
		Offered:   r.Offered,
		Collected: r.Collected,
	}
}

// ComplianceResponse represents a compliance entry in API responses.
type ComplianceResponse struct {
	Address   string     `json:"address"`
	Verified  bool       `json:"verified"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedBy string     `json:"updated_by"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ComplianceFromDomain converts a compliance entry to response. Active is evaluated at now.
func ComplianceFromDomain(e *domain.ComplianceEntry, now time.Time) *ComplianceResponse {
	return &ComplianceResponse{
		Address:   e.Address.Hex(),
		Verified:  e.Verified,
		Active:    e.IsVerifiedAt(now),
		ExpiresAt: e.ExpiresAt,
		UpdatedBy: e.UpdatedBy.Hex(),
		UpdatedAt: e.UpdatedAt,
	}
}

// AccountResponse represents a settlement currency balance.
type AccountResponse struct {
	Address   string          `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		Address:   a.Address.Hex(),
		Balance:   a.Balance,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt,
	}
}

// AllowanceResponse represents an allowance.
type AllowanceResponse struct {
	Owner     string          `json:"owner"`
	Spender   string          `json:"spender"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AllowanceFromDomain converts domain allowance to response.
func AllowanceFromDomain(a *domain.Allowance) *AllowanceResponse {
	return &AllowanceResponse{
		Owner:     a.Owner.Hex(),
		Spender:   a.Spender.Hex(),
		Amount:    a.Amount,
		UpdatedAt: a.UpdatedAt,
	}
}

// TransferResponse represents a settlement currency movement.
type TransferResponse struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      string          `json:"kind"`
	InvoiceID *uint64         `json:"invoice_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// TransferFromDomain converts domain transfer to response.
func TransferFromDomain(t *domain.Transfer) *TransferResponse {
	return &TransferResponse{
		ID:        t.ID,
		From:      t.From.Hex(),
		To:        t.To.Hex(),
		Amount:    t.Amount,
		Kind:      string(t.Kind),
		InvoiceID: t.InvoiceID,
		CreatedAt: t.CreatedAt,
	}
}

// TransfersFromDomain converts domain transfers to responses.
func TransfersFromDomain(transfers []*domain.Transfer) []*TransferResponse {
	result := make([]*TransferResponse, len(transfers))
	for i, t := range transfers {
		result[i] = TransferFromDomain(t)
	}
	return result
}

// ListTransfersResponse represents a page of transfers.
type ListTransfersResponse struct {
	Transfers []*TransferResponse `json:"transfers"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

// EventResponse represents an outbox event.
type EventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Published bool           `json:"published"`
}

// EventsFromDomain converts outbox events to responses.
func EventsFromDomain(events []*domain.OutboxEvent) []*EventResponse {
	result := make([]*EventResponse, len(events))
	for i, e := range events {
		result[i] = &EventResponse{
			ID:        e.ID,
			Type:      e.EventType,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
			Published: e.Published,
		}
	}
	return result
}

// ConsistencyResponse reports the ledger invariants.
type ConsistencyResponse struct {
	Status           string          `json:"status"`
	Consistent       bool            `json:"consistent"`
	VaultBalance     decimal.Decimal `json:"vault_balance"`
	PendingEscrow    decimal.Decimal `json:"pending_escrow"`
	TotalBalances    decimal.Decimal `json:"total_balances"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	VaultConsistent  bool            `json:"vault_consistent"`
	SupplyConsistent bool            `json:"supply_consistent"`
	CheckedAt        time.Time       `json:"checked_at"`
}

// ConsistencyFromUseCase converts a consistency report to response.
func ConsistencyFromUseCase(r *usecase.ConsistencyReport) *ConsistencyResponse {
	status := "consistent"
	if !r.Consistent() {
		status = "inconsistent"
	}
	return &ConsistencyResponse{
		Status:           status,
		Consistent:       r.Consistent(),
		VaultBalance:     r.VaultBalance,
		PendingEscrow:    r.PendingEscrow,
		TotalBalances:    r.TotalBalances,
		TotalDeposits:    r.TotalDeposits,
		VaultConsistent:  r.VaultConsistent,
		SupplyConsistent: r.SupplyConsistent,
		CheckedAt:        r.CheckedAt,
	}
}

// ReconciliationResponse compares a stored balance with the net of the account's transfers.
type ReconciliationResponse struct {
	Address           string          `json:"address"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	Reconciled        bool            `json:"reconciled"`
	CheckedAt         time.Time       `json:"checked_at"`
}

// ReconciliationsFromUseCase converts reconciliation results to responses.
func ReconciliationsFromUseCase(results []*usecase.ReconciliationResult) []*ReconciliationResponse {
	out := make([]*ReconciliationResponse, len(results))
	for i, r := range results {
		out[i] = &ReconciliationResponse{
			Address:           r.Address.Hex(),
			RecordedBalance:   r.RecordedBalance,
			CalculatedBalance: r.CalculatedBalance,
			Difference:        r.Difference,
			Reconciled:        r.IsReconciled,
			CheckedAt:         r.LastChecked,
		}
	}
	return out
}

// ListReconciliationsResponse wraps per-account reconciliation results.
type ListReconciliationsResponse struct {
	Reconciled bool                      `json:"reconciled"`
	Accounts   []*ReconciliationResponse `json:"accounts"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
