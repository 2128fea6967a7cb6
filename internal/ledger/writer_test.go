package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryTx struct {
	counters    map[string]int64
	entries     []Entry
	lines       map[int64][]Line
	nextID      int64
	counterErr  error
	insertCalls int
}

func newMemoryTx() *memoryTx {
	return &memoryTx{counters: make(map[string]int64), lines: make(map[int64][]Line)}
}

func (m *memoryTx) IncrementEntryCounter(ctx context.Context, tenantID int64, fiscalYear int) (int64, error) {
	if m.counterErr != nil {
		return 0, m.counterErr
	}
	key := fmt.Sprintf("%d:%d", tenantID, fiscalYear)
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryTx) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	m.insertCalls++
	m.nextID++
	entry.ID = m.nextID
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []Line) error {
	m.lines[entryID] = append(m.lines[entryID], lines...)
	return nil
}

func ptr(v int64) *int64 { return &v }

func balancedInput(amount float64) WriteInput {
	return WriteInput{
		TenantID:      1,
		EntryDate:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Description:   "invoice",
		ReferenceType: RefInvoiceIn,
		ReferenceID:   uuid.New(),
		Currency:      "TRY",
		CreatedBy:     7,
		Lines: []LineInput{
			{AccountType: AccountInventory, Debit: amount},
			{AccountType: AccountPayable, AccountID: ptr(42), Credit: amount},
		},
	}
}

func TestWriteBalancedEntry(t *testing.T) {
	tx := newMemoryTx()
	writer := NewWriter(NewSequenceAllocator(nil, false))
	ctx := context.Background()

	entry, err := writer.Write(ctx, tx, balancedInput(1000))
	require.NoError(t, err)
	require.Equal(t, "JE-2025-00001", entry.EntryNumber)
	require.InDelta(t, 1000, entry.TotalAmount, 0.001)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, "TRY", entry.Lines[0].Currency)
	require.Len(t, tx.lines[entry.ID], 2)

	next, err := writer.Write(ctx, tx, balancedInput(250))
	require.NoError(t, err)
	require.Equal(t, "JE-2025-00002", next.EntryNumber)
}

func TestWriteRejectsUnbalanced(t *testing.T) {
	tx := newMemoryTx()
	writer := NewWriter(NewSequenceAllocator(nil, false))

	in := balancedInput(1000)
	in.Lines[1].Credit = 900
	_, err := writer.Write(context.Background(), tx, in)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Zero(t, tx.insertCalls)
}

func TestWriteToleratesRoundingDrift(t *testing.T) {
	tx := newMemoryTx()
	writer := NewWriter(NewSequenceAllocator(nil, false))

	in := balancedInput(100.00)
	in.Lines[1].Credit = 100.009
	_, err := writer.Write(context.Background(), tx, in)
	require.NoError(t, err)
}

func TestWriteRejectsBothSides(t *testing.T) {
	tx := newMemoryTx()
	writer := NewWriter(NewSequenceAllocator(nil, false))

	in := balancedInput(100)
	in.Lines[0].Credit = 50
	_, err := writer.Write(context.Background(), tx, in)
	require.Error(t, err)
	require.Contains(t, err.Error(), "both debit and credit")
}

func TestWriteRejectsEmptyLines(t *testing.T) {
	tx := newMemoryTx()
	writer := NewWriter(NewSequenceAllocator(nil, false))

	in := balancedInput(100)
	in.Lines = nil
	_, err := writer.Write(context.Background(), tx, in)
	require.ErrorIs(t, err, ErrNoLines)
}

func TestWriteRejectsPartnerLineWithoutAccount(t *testing.T) {
	tx := newMemoryTx()
	writer := NewWriter(NewSequenceAllocator(nil, false))

	in := balancedInput(100)
	in.Lines[1].AccountID = nil
	_, err := writer.Write(context.Background(), tx, in)
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires account id")
}

func TestSequenceIsPerTenantAndYear(t *testing.T) {
	tx := newMemoryTx()
	alloc := NewSequenceAllocator(nil, false)
	ctx := context.Background()

	n1, err := alloc.Next(ctx, tx, 1, 2025)
	require.NoError(t, err)
	n2, err := alloc.Next(ctx, tx, 1, 2025)
	require.NoError(t, err)
	other, err := alloc.Next(ctx, tx, 2, 2025)
	require.NoError(t, err)
	prevYear, err := alloc.Next(ctx, tx, 1, 2024)
	require.NoError(t, err)

	require.Equal(t, "JE-2025-00001", n1)
	require.Equal(t, "JE-2025-00002", n2)
	require.Equal(t, "JE-2025-00001", other)
	require.Equal(t, "JE-2024-00001", prevYear)
}

func TestSequenceFallback(t *testing.T) {
	tx := newMemoryTx()
	tx.counterErr = errors.New("counter unavailable")
	ctx := context.Background()

	strict := NewSequenceAllocator(nil, false)
	_, err := strict.Next(ctx, tx, 1, 2025)
	require.Error(t, err)

	degraded := NewSequenceAllocator(nil, true)
	at := time.Date(2025, 6, 1, 12, 0, 0, 500, time.UTC)
	degraded.WithNow(func() time.Time { return at })
	fallbacks := 0
	degraded.WithFallbackHook(func() { fallbacks++ })
	number, err := degraded.Next(ctx, tx, 1, 2025)
	require.NoError(t, err)
	require.Equal(t, FallbackEntryNumber(2025, at), number)
	require.Contains(t, number, "JE-2025-F")
	require.Equal(t, 1, fallbacks)
}
