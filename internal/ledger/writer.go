package ledger

import (
	"context"
	"time"
)

// TxRepository exposes ledger operations available within a transaction.
type TxRepository interface {
	CounterPort
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []Line) error
}

// Writer validates that a proposed set of lines is balanced and persists the
// entry header plus its lines as one unit. Balance and inventory propagation
// is the caller's responsibility.
type Writer struct {
	alloc *SequenceAllocator
	now   func() time.Time
}

// NewWriter constructs the writer.
func NewWriter(alloc *SequenceAllocator) *Writer {
	return &Writer{alloc: alloc, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (w *Writer) WithNow(now func() time.Time) {
	if now != nil {
		w.now = now
	}
}

// Write persists one entry header and all its lines inside the caller's
// transaction. The entry number is reserved in the same transaction, so the
// number and the insert commit or roll back together.
func (w *Writer) Write(ctx context.Context, tx TxRepository, in WriteInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	fiscalYear := in.EntryDate.Year()
	number, err := w.alloc.Next(ctx, tx, in.TenantID, fiscalYear)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		TenantID:      in.TenantID,
		EntryNumber:   number,
		EntryDate:     in.EntryDate,
		Description:   in.Description,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Currency:      in.Currency,
		TotalAmount:   in.TotalDebit(),
		CreatedBy:     in.CreatedBy,
		CreatedAt:     w.now().UTC(),
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	lines := make([]Line, 0, len(in.Lines))
	for _, line := range in.Lines {
		lines = append(lines, Line{
			EntryID:     inserted.ID,
			AccountType: line.AccountType,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Currency:    in.Currency,
			Description: line.Description,
		})
	}
	if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
		return Entry{}, err
	}
	inserted.Lines = lines
	return inserted, nil
}
