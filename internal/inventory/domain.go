package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementInbound represents stock received into the store.
	MovementInbound MovementType = "inbound"
	// MovementOutbound represents stock leaving the store.
	MovementOutbound MovementType = "outbound"
)

// Item is one inventory item scoped to a tenant. Quantity is the maintained
// aggregate; the change log is the source of truth it must agree with.
type Item struct {
	ID        int64
	TenantID  int64
	Name      string
	Unit      string
	Quantity  float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuantityChange is an append-only record of one stock movement with a
// before/after snapshot.
type QuantityChange struct {
	ID             int64
	TenantID       int64
	ItemID         int64
	Type           MovementType
	QuantityChange float64
	QuantityBefore float64
	QuantityAfter  float64
	UnitPrice      float64
	Currency       string
	ReferenceType  string
	ReferenceID    string
	CreatedBy      int64
	CreatedAt      time.Time
}

// QuantityDelta reports the before/after snapshot of one applied movement.
type QuantityDelta struct {
	Before float64
	After  float64
}

// InsufficientStockError is returned when an outbound movement would drive
// the item quantity negative. It carries the short item and what is left.
type InsufficientStockError struct {
	ItemID    int64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for item %d: available %g", e.ItemID, e.Available)
}

var (
	// ErrItemNotFound indicates the item does not exist.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrInvalidQuantity indicates a zero or wrongly signed movement.
	ErrInvalidQuantity = errors.New("inventory: invalid quantity for movement")
)
