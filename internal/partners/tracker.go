package partners

import (
	"context"
	"errors"
	"time"

	"github.com/storekeep/storekeep/internal/shared"
)

// TxRepository exposes partner operations available within a transaction.
type TxRepository interface {
	GetPartner(ctx context.Context, partnerID int64) (Partner, error)
	// GetBalanceForUpdate locks the aggregate row for (partner, account type,
	// currency) and returns the current balance, zero when no row exists yet.
	GetBalanceForUpdate(ctx context.Context, partnerID int64, accountType AccountType, currency string) (float64, error)
	UpsertBalance(ctx context.Context, tenantID, partnerID int64, accountType AccountType, currency string, balance float64) error
	InsertBalanceChange(ctx context.Context, change BalanceChange) error
}

// ApplyInput describes one signed balance movement.
type ApplyInput struct {
	TenantID      int64
	PartnerID     int64
	AccountType   AccountType
	Amount        float64
	Currency      string
	ReferenceType string
	ReferenceID   string
	ActorID       int64
}

// BalanceTracker maintains the per-partner running balances. Each applied
// change appends an immutable record with a before/after snapshot and updates
// the aggregate row in the same transaction, so the aggregate and the change
// log cannot diverge. Negative balances are legal; only arithmetic
// consistency is enforced here.
type BalanceTracker struct {
	now func() time.Time
}

// NewBalanceTracker constructs the tracker.
func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (t *BalanceTracker) WithNow(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Apply reads the current balance under a row lock, appends the change record
// and writes the updated aggregate, all inside the caller's transaction.
func (t *BalanceTracker) Apply(ctx context.Context, tx TxRepository, in ApplyInput) (BalanceDelta, error) {
	if in.PartnerID == 0 {
		return BalanceDelta{}, ErrPartnerNotFound
	}
	if in.Amount == 0 {
		return BalanceDelta{}, ErrInvalidAmount
	}
	if in.AccountType != AccountReceivable && in.AccountType != AccountPayable {
		return BalanceDelta{}, errors.New("partners: unknown account type")
	}
	if in.Currency == "" {
		return BalanceDelta{}, errors.New("partners: currency required")
	}
	partner, err := tx.GetPartner(ctx, in.PartnerID)
	if err != nil {
		return BalanceDelta{}, err
	}
	if partner.TenantID != in.TenantID {
		return BalanceDelta{}, shared.ErrTenantMismatch
	}
	before, err := tx.GetBalanceForUpdate(ctx, in.PartnerID, in.AccountType, in.Currency)
	if err != nil {
		return BalanceDelta{}, err
	}
	after := before + in.Amount
	change := BalanceChange{
		TenantID:      in.TenantID,
		PartnerID:     in.PartnerID,
		AccountType:   in.AccountType,
		Amount:        in.Amount,
		Currency:      in.Currency,
		BalanceBefore: before,
		BalanceAfter:  after,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		CreatedBy:     in.ActorID,
		CreatedAt:     t.now().UTC(),
	}
	if err := tx.InsertBalanceChange(ctx, change); err != nil {
		return BalanceDelta{}, err
	}
	if err := tx.UpsertBalance(ctx, in.TenantID, in.PartnerID, in.AccountType, in.Currency, after); err != nil {
		return BalanceDelta{}, err
	}
	return BalanceDelta{Before: before, After: after}, nil
}
