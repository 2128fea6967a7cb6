package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/shared"
)

type memoryTx struct {
	items   map[int64]Item
	changes []QuantityChange
}

func newMemoryTx() *memoryTx {
	return &memoryTx{items: make(map[int64]Item)}
}

func (m *memoryTx) GetItem(ctx context.Context, itemID int64) (Item, error) {
	item, ok := m.items[itemID]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (m *memoryTx) GetQuantityForUpdate(ctx context.Context, itemID int64) (float64, error) {
	item, ok := m.items[itemID]
	if !ok {
		return 0, ErrItemNotFound
	}
	return item.Quantity, nil
}

func (m *memoryTx) UpdateQuantity(ctx context.Context, itemID int64, quantity float64) error {
	item, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	item.Quantity = quantity
	m.items[itemID] = item
	return nil
}

func (m *memoryTx) InsertQuantityChange(ctx context.Context, change QuantityChange) error {
	m.changes = append(m.changes, change)
	return nil
}

type memoryRepo struct {
	tx *memoryTx
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r.tx)
}

func TestApplyInboundOutbound(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Name: "Cement", Unit: "bag"}
	tracker := NewQuantityTracker()
	ctx := context.Background()

	delta, err := tracker.Apply(ctx, tx, ApplyInput{TenantID: 10, ItemID: 1, Type: MovementInbound, Quantity: 10, UnitPrice: 100, Currency: "TRY", ReferenceType: "invoice_in", ReferenceID: "a"})
	require.NoError(t, err)
	require.InDelta(t, 0, delta.Before, 0.001)
	require.InDelta(t, 10, delta.After, 0.001)

	delta, err = tracker.Apply(ctx, tx, ApplyInput{TenantID: 10, ItemID: 1, Type: MovementOutbound, Quantity: -4, ReferenceType: "invoice_out", ReferenceID: "b"})
	require.NoError(t, err)
	require.InDelta(t, 10, delta.Before, 0.001)
	require.InDelta(t, 6, delta.After, 0.001)

	require.Len(t, tx.changes, 2)
	for _, c := range tx.changes {
		require.InDelta(t, c.QuantityBefore+c.QuantityChange, c.QuantityAfter, 0.001)
	}
	require.InDelta(t, 6, tx.items[1].Quantity, 0.001)
}

func TestApplyRejectsInsufficientStock(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Quantity: 3}
	tracker := NewQuantityTracker()

	_, err := tracker.Apply(context.Background(), tx, ApplyInput{TenantID: 10, ItemID: 1, Type: MovementOutbound, Quantity: -5, ReferenceType: "invoice_out", ReferenceID: "x"})
	short, ok := ShortItem(err)
	require.True(t, ok)
	require.Equal(t, int64(1), short.ItemID)
	require.InDelta(t, 3, short.Available, 0.001)
	require.Empty(t, tx.changes)
	require.InDelta(t, 3, tx.items[1].Quantity, 0.001)
}

func TestApplyAllowsDrainToZero(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Quantity: 5}
	tracker := NewQuantityTracker()

	delta, err := tracker.Apply(context.Background(), tx, ApplyInput{TenantID: 10, ItemID: 1, Type: MovementOutbound, Quantity: -5, ReferenceType: "invoice_out", ReferenceID: "x"})
	require.NoError(t, err)
	require.InDelta(t, 0, delta.After, 0.001)
}

func TestApplyRejectsWrongSign(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Quantity: 5}
	tracker := NewQuantityTracker()
	ctx := context.Background()

	_, err := tracker.Apply(ctx, tx, ApplyInput{TenantID: 10, ItemID: 1, Type: MovementInbound, Quantity: -1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = tracker.Apply(ctx, tx, ApplyInput{TenantID: 10, ItemID: 1, Type: MovementOutbound, Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestApplyRejectsForeignTenant(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 99, Quantity: 5}
	tracker := NewQuantityTracker()

	_, err := tracker.Apply(context.Background(), tx, ApplyInput{TenantID: 10, ItemID: 1, Type: MovementInbound, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrTenantMismatch)
}

func TestCheckAvailability(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Quantity: 3}
	tracker := NewQuantityTracker()
	ctx := context.Background()

	require.NoError(t, tracker.CheckAvailability(ctx, tx, 10, 1, 3))

	err := tracker.CheckAvailability(ctx, tx, 10, 1, 4)
	short, ok := ShortItem(err)
	require.True(t, ok)
	require.InDelta(t, 3, short.Available, 0.001)
}
