package partners

import (
	"errors"
	"time"
)

// Kind classifies a partner counterparty.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindVendor   Kind = "vendor"
	KindBoth     Kind = "both"
)

// AccountType selects which running balance a change applies to.
type AccountType string

const (
	AccountReceivable AccountType = "receivable"
	AccountPayable    AccountType = "payable"
)

// Partner is a customer or vendor counterparty scoped to one tenant.
type Partner struct {
	ID        int64
	TenantID  int64
	Name      string
	Kind      Kind
	CreatedAt time.Time
}

// BalanceChange is an append-only record of one partner account movement.
// Positive amounts increase what is owed, negative amounts decrease it.
type BalanceChange struct {
	ID            int64
	TenantID      int64
	PartnerID     int64
	AccountType   AccountType
	Amount        float64
	Currency      string
	BalanceBefore float64
	BalanceAfter  float64
	ReferenceType string
	ReferenceID   string
	CreatedBy     int64
	CreatedAt     time.Time
}

// BalanceDelta reports the before/after snapshot of one applied change.
type BalanceDelta struct {
	Before float64
	After  float64
}

var (
	// ErrPartnerNotFound indicates the partner does not exist.
	ErrPartnerNotFound = errors.New("partners: partner not found")
	// ErrInvalidAmount indicates a zero movement.
	ErrInvalidAmount = errors.New("partners: amount must be non zero")
)
