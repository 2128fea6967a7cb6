package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/storekeep/storekeep/internal/shared"
)

// TxRepository exposes inventory operations available within a transaction.
type TxRepository interface {
	GetItem(ctx context.Context, itemID int64) (Item, error)
	// GetQuantityForUpdate locks the item row and returns its current
	// quantity, so concurrent movements on the same item serialize.
	GetQuantityForUpdate(ctx context.Context, itemID int64) (float64, error)
	UpdateQuantity(ctx context.Context, itemID int64, quantity float64) error
	InsertQuantityChange(ctx context.Context, change QuantityChange) error
}

// ApplyInput describes one signed stock movement.
type ApplyInput struct {
	TenantID      int64
	ItemID        int64
	Type          MovementType
	Quantity      float64
	UnitPrice     float64
	Currency      string
	ReferenceType string
	ReferenceID   string
	ActorID       int64
}

// QuantityTracker maintains the per-item running quantity. Each movement
// appends an immutable change record with a before/after snapshot and updates
// the item aggregate in the same transaction. Outbound movements that would
// drive the quantity negative abort the whole enclosing business event.
type QuantityTracker struct {
	now func() time.Time
}

// NewQuantityTracker constructs the tracker.
func NewQuantityTracker() *QuantityTracker {
	return &QuantityTracker{now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (t *QuantityTracker) WithNow(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Apply reads the current quantity under a row lock, enforces the outbound
// floor and appends the change record plus the aggregate update, all inside
// the caller's transaction.
func (t *QuantityTracker) Apply(ctx context.Context, tx TxRepository, in ApplyInput) (QuantityDelta, error) {
	switch in.Type {
	case MovementInbound:
		if in.Quantity <= 0 {
			return QuantityDelta{}, ErrInvalidQuantity
		}
	case MovementOutbound:
		if in.Quantity >= 0 {
			return QuantityDelta{}, ErrInvalidQuantity
		}
	default:
		return QuantityDelta{}, errors.New("inventory: unknown movement type")
	}
	item, err := tx.GetItem(ctx, in.ItemID)
	if err != nil {
		return QuantityDelta{}, err
	}
	if item.TenantID != in.TenantID {
		return QuantityDelta{}, shared.ErrTenantMismatch
	}
	before, err := tx.GetQuantityForUpdate(ctx, in.ItemID)
	if err != nil {
		return QuantityDelta{}, err
	}
	after := before + in.Quantity
	if in.Type == MovementOutbound && after < 0 {
		return QuantityDelta{}, &InsufficientStockError{ItemID: in.ItemID, Available: before}
	}
	change := QuantityChange{
		TenantID:       in.TenantID,
		ItemID:         in.ItemID,
		Type:           in.Type,
		QuantityChange: in.Quantity,
		QuantityBefore: before,
		QuantityAfter:  after,
		UnitPrice:      in.UnitPrice,
		Currency:       in.Currency,
		ReferenceType:  in.ReferenceType,
		ReferenceID:    in.ReferenceID,
		CreatedBy:      in.ActorID,
		CreatedAt:      t.now().UTC(),
	}
	if err := tx.InsertQuantityChange(ctx, change); err != nil {
		return QuantityDelta{}, err
	}
	if err := tx.UpdateQuantity(ctx, in.ItemID, after); err != nil {
		return QuantityDelta{}, err
	}
	return QuantityDelta{Before: before, After: after}, nil
}

// CheckAvailability verifies the item holds at least the required quantity.
// Used as a pre-check pass over all items of an issued invoice before any
// mutation, so a shortfall on a later item never leaves earlier items
// partially deducted.
func (t *QuantityTracker) CheckAvailability(ctx context.Context, tx TxRepository, tenantID, itemID int64, required float64) error {
	item, err := tx.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.TenantID != tenantID {
		return shared.ErrTenantMismatch
	}
	available, err := tx.GetQuantityForUpdate(ctx, itemID)
	if err != nil {
		return err
	}
	if available < required {
		return &InsufficientStockError{ItemID: itemID, Available: available}
	}
	return nil
}
