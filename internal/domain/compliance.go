package domain

import "time"

// ComplianceEntry records whether an address passed KYC/KYB.
type ComplianceEntry struct {
	Address   Address
	Verified  bool
	ExpiresAt *time.Time
	UpdatedBy Address
	UpdatedAt time.Time
}

// IsVerifiedAt reports whether the entry grants access at now.
func (c *ComplianceEntry) IsVerifiedAt(now time.Time) bool {
	if c == nil || !c.Verified {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	return true
}
