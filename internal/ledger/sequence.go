package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CounterPort is the slice of TxRepository the allocator needs.
type CounterPort interface {
	IncrementEntryCounter(ctx context.Context, tenantID int64, fiscalYear int) (int64, error)
}

// SequenceAllocator issues entry numbers unique per tenant and fiscal year.
// Allocation is an atomic upsert-increment on the counter row, so two
// concurrent postings for the same tenant+year serialize on the row and never
// observe the same value.
type SequenceAllocator struct {
	logger        *slog.Logger
	allowFallback bool
	now           func() time.Time
	onFallback    func()
}

// NewSequenceAllocator constructs the allocator. When allowFallback is set,
// a failed counter increment degrades to a timestamp-suffixed number instead
// of aborting entry creation.
func NewSequenceAllocator(logger *slog.Logger, allowFallback bool) *SequenceAllocator {
	return &SequenceAllocator{logger: logger, allowFallback: allowFallback, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (a *SequenceAllocator) WithNow(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// WithFallbackHook registers a callback fired whenever a degraded number is
// issued, e.g. to bump a metric.
func (a *SequenceAllocator) WithFallbackHook(fn func()) {
	a.onFallback = fn
}

// Next reserves the next entry number for (tenant, fiscal year) inside the
// caller's transaction. The returned number is only visible to other
// transactions once the enclosing transaction commits.
func (a *SequenceAllocator) Next(ctx context.Context, tx CounterPort, tenantID int64, fiscalYear int) (string, error) {
	n, err := tx.IncrementEntryCounter(ctx, tenantID, fiscalYear)
	if err != nil {
		if !a.allowFallback {
			return "", fmt.Errorf("ledger: allocate entry number: %w", err)
		}
		// Degraded mode: a unique but non-sequential number. The integrity
		// job reports these so the gap never goes unnoticed.
		number := FallbackEntryNumber(fiscalYear, a.now())
		if a.onFallback != nil {
			a.onFallback()
		}
		if a.logger != nil {
			a.logger.Warn("entry number fallback used",
				slog.Int64("tenant_id", tenantID),
				slog.Int("fiscal_year", fiscalYear),
				slog.String("number", number),
				slog.Any("error", err))
		}
		return number, nil
	}
	return FormatEntryNumber(fiscalYear, n), nil
}

// FormatEntryNumber renders the canonical JE-<year>-<5 digit sequence> form.
func FormatEntryNumber(fiscalYear int, n int64) string {
	return fmt.Sprintf("JE-%d-%05d", fiscalYear, n)
}

// FallbackEntryNumber renders the degraded, timestamp-suffixed form.
func FallbackEntryNumber(fiscalYear int, at time.Time) string {
	return fmt.Sprintf("JE-%d-F%d", fiscalYear, at.UnixNano())
}
