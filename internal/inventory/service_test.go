package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/shared"
)

type auditRecorder struct {
	logs []shared.AuditLog
	fail bool
}

func (a *auditRecorder) Record(ctx context.Context, log shared.AuditLog) error {
	if a.fail {
		return errors.New("audit store down")
	}
	a.logs = append(a.logs, log)
	return nil
}

func TestDeductAndReturnMaterial(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Name: "Rebar", Quantity: 20}
	audit := &auditRecorder{}
	svc := NewService(&memoryRepo{tx: tx}, NewQuantityTracker(), audit)
	ctx := context.Background()

	delta, err := svc.DeductMaterial(ctx, MaterialInput{ItemID: 1, Quantity: 8, TenantID: 10, ActorID: 3, ReferenceID: "boq-77"})
	require.NoError(t, err)
	require.InDelta(t, 20, delta.Before, 0.001)
	require.InDelta(t, 12, delta.After, 0.001)
	require.Equal(t, "material_issue", tx.changes[0].ReferenceType)

	delta, err = svc.ReturnMaterial(ctx, MaterialInput{ItemID: 1, Quantity: 2, TenantID: 10, ActorID: 3, ReferenceID: "boq-77"})
	require.NoError(t, err)
	require.InDelta(t, 14, delta.After, 0.001)
	require.Equal(t, "material_return", tx.changes[1].ReferenceType)

	require.Len(t, audit.logs, 2)
	require.Equal(t, "inventory.material_deduct", audit.logs[0].Action)
}

func TestDeductMaterialShortfall(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Quantity: 3}
	svc := NewService(&memoryRepo{tx: tx}, NewQuantityTracker(), nil)

	_, err := svc.DeductMaterial(context.Background(), MaterialInput{ItemID: 1, Quantity: 5, TenantID: 10})
	short, ok := ShortItem(err)
	require.True(t, ok)
	require.InDelta(t, 3, short.Available, 0.001)
	require.Empty(t, tx.changes)
}

func TestMaterialAuditFailureDoesNotPropagate(t *testing.T) {
	tx := newMemoryTx()
	tx.items[1] = Item{ID: 1, TenantID: 10, Quantity: 10}
	svc := NewService(&memoryRepo{tx: tx}, NewQuantityTracker(), &auditRecorder{fail: true})

	_, err := svc.DeductMaterial(context.Background(), MaterialInput{ItemID: 1, Quantity: 1, TenantID: 10})
	require.NoError(t, err)
	require.Len(t, tx.changes, 1)
}

func TestMaterialRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(&memoryRepo{tx: newMemoryTx()}, NewQuantityTracker(), nil)
	_, err := svc.DeductMaterial(context.Background(), MaterialInput{ItemID: 1, Quantity: 0, TenantID: 10})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.ReturnMaterial(context.Background(), MaterialInput{ItemID: 1, Quantity: -2, TenantID: 10})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
