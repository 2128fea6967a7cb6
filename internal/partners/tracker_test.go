package partners

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/shared"
)

type memoryTx struct {
	partners map[int64]Partner
	balances map[string]float64
	changes  []BalanceChange
}

func newMemoryTx() *memoryTx {
	return &memoryTx{partners: make(map[int64]Partner), balances: make(map[string]float64)}
}

func balanceKey(partnerID int64, accountType AccountType, currency string) string {
	return fmt.Sprintf("%d:%s:%s", partnerID, accountType, currency)
}

func (m *memoryTx) GetPartner(ctx context.Context, partnerID int64) (Partner, error) {
	p, ok := m.partners[partnerID]
	if !ok {
		return Partner{}, ErrPartnerNotFound
	}
	return p, nil
}

func (m *memoryTx) GetBalanceForUpdate(ctx context.Context, partnerID int64, accountType AccountType, currency string) (float64, error) {
	return m.balances[balanceKey(partnerID, accountType, currency)], nil
}

func (m *memoryTx) UpsertBalance(ctx context.Context, tenantID, partnerID int64, accountType AccountType, currency string, balance float64) error {
	m.balances[balanceKey(partnerID, accountType, currency)] = balance
	return nil
}

func (m *memoryTx) InsertBalanceChange(ctx context.Context, change BalanceChange) error {
	m.changes = append(m.changes, change)
	return nil
}

func TestApplyChainsBeforeAfter(t *testing.T) {
	tx := newMemoryTx()
	tx.partners[1] = Partner{ID: 1, TenantID: 10, Name: "Vendor X", Kind: KindVendor}
	tracker := NewBalanceTracker()
	ctx := context.Background()

	in := ApplyInput{TenantID: 10, PartnerID: 1, AccountType: AccountPayable, Amount: 1000, Currency: "TRY", ReferenceType: "invoice_in", ReferenceID: "ref-1", ActorID: 3}
	delta, err := tracker.Apply(ctx, tx, in)
	require.NoError(t, err)
	require.InDelta(t, 0, delta.Before, 0.001)
	require.InDelta(t, 1000, delta.After, 0.001)

	in.Amount = -400
	in.ReferenceType = "payment"
	delta, err = tracker.Apply(ctx, tx, in)
	require.NoError(t, err)
	require.InDelta(t, 1000, delta.Before, 0.001)
	require.InDelta(t, 600, delta.After, 0.001)

	require.Len(t, tx.changes, 2)
	require.InDelta(t, tx.changes[0].BalanceAfter, tx.changes[1].BalanceBefore, 0.001)
	for _, c := range tx.changes {
		require.InDelta(t, c.BalanceBefore+c.Amount, c.BalanceAfter, 0.001)
	}
}

func TestApplyAllowsNegativeBalance(t *testing.T) {
	tx := newMemoryTx()
	tx.partners[1] = Partner{ID: 1, TenantID: 10, Kind: KindCustomer}
	tracker := NewBalanceTracker()

	delta, err := tracker.Apply(context.Background(), tx, ApplyInput{
		TenantID: 10, PartnerID: 1, AccountType: AccountReceivable, Amount: -250, Currency: "USD", ReferenceType: "payment", ReferenceID: "ref-2",
	})
	require.NoError(t, err)
	require.InDelta(t, -250, delta.After, 0.001)
}

func TestApplySeparatesCurrencies(t *testing.T) {
	tx := newMemoryTx()
	tx.partners[1] = Partner{ID: 1, TenantID: 10, Kind: KindBoth}
	tracker := NewBalanceTracker()
	ctx := context.Background()

	_, err := tracker.Apply(ctx, tx, ApplyInput{TenantID: 10, PartnerID: 1, AccountType: AccountReceivable, Amount: 100, Currency: "TRY", ReferenceType: "invoice_out", ReferenceID: "a"})
	require.NoError(t, err)
	delta, err := tracker.Apply(ctx, tx, ApplyInput{TenantID: 10, PartnerID: 1, AccountType: AccountReceivable, Amount: 70, Currency: "USD", ReferenceType: "invoice_out", ReferenceID: "b"})
	require.NoError(t, err)
	require.InDelta(t, 0, delta.Before, 0.001)
	require.InDelta(t, 70, delta.After, 0.001)
	require.InDelta(t, 100, tx.balances[balanceKey(1, AccountReceivable, "TRY")], 0.001)
}

func TestApplyRejectsUnknownPartner(t *testing.T) {
	tracker := NewBalanceTracker()
	_, err := tracker.Apply(context.Background(), newMemoryTx(), ApplyInput{
		TenantID: 10, PartnerID: 99, AccountType: AccountPayable, Amount: 10, Currency: "TRY", ReferenceType: "invoice_in", ReferenceID: "x",
	})
	require.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestApplyRejectsForeignTenant(t *testing.T) {
	tx := newMemoryTx()
	tx.partners[1] = Partner{ID: 1, TenantID: 99, Kind: KindVendor}
	tracker := NewBalanceTracker()

	_, err := tracker.Apply(context.Background(), tx, ApplyInput{
		TenantID: 10, PartnerID: 1, AccountType: AccountPayable, Amount: 10, Currency: "TRY", ReferenceType: "invoice_in", ReferenceID: "x",
	})
	require.ErrorIs(t, err, shared.ErrTenantMismatch)
	require.Empty(t, tx.changes)
}

func TestApplyRejectsZeroAmount(t *testing.T) {
	tx := newMemoryTx()
	tx.partners[1] = Partner{ID: 1, TenantID: 10}
	tracker := NewBalanceTracker()

	_, err := tracker.Apply(context.Background(), tx, ApplyInput{
		TenantID: 10, PartnerID: 1, AccountType: AccountPayable, Amount: 0, Currency: "TRY", ReferenceType: "invoice_in", ReferenceID: "x",
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}
