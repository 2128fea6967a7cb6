package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/storekeep/storekeep/internal/shared"
)

// IntegrityReport summarizes one consistency sweep over the ledger and the
// maintained aggregates.
type IntegrityReport struct {
	UnbalancedEntries int
	PartnerDrift      int
	ItemDrift         int
	DuplicateNumbers  int
	FallbackNumbers   int
}

// Total returns the number of findings across all checks.
func (r IntegrityReport) Total() int {
	return r.UnbalancedEntries + r.PartnerDrift + r.ItemDrift + r.DuplicateNumbers + r.FallbackNumbers
}

// IntegrityJob recomputes the invariants the write path maintains and reports
// any drift: entries whose lines no longer balance, aggregates that disagree
// with their change logs, duplicated or degraded entry numbers. The job only
// reports; repairing is a manual operation.
type IntegrityJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewIntegrityJob constructs the sweep.
func NewIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *IntegrityJob {
	return &IntegrityJob{pool: pool, logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	report, err := j.Run(ctx)
	if err != nil {
		return err
	}
	if report.Total() > 0 {
		j.logger.Warn("ledger integrity findings",
			slog.Int("unbalanced_entries", report.UnbalancedEntries),
			slog.Int("partner_drift", report.PartnerDrift),
			slog.Int("item_drift", report.ItemDrift),
			slog.Int("duplicate_numbers", report.DuplicateNumbers),
			slog.Int("fallback_numbers", report.FallbackNumbers))
	} else {
		j.logger.Info("ledger integrity clean")
	}
	return nil
}

// Run executes all checks concurrently and returns the findings.
func (j *IntegrityJob) Run(ctx context.Context) (IntegrityReport, error) {
	var report IntegrityReport
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := j.count(ctx, `
SELECT COUNT(*) FROM (
  SELECT l.entry_id
  FROM ledger_lines l
  GROUP BY l.entry_id
  HAVING ABS(COALESCE(SUM(l.debit_amount),0) - COALESCE(SUM(l.credit_amount),0)) > 0.01
) unbalanced`)
		report.UnbalancedEntries = n
		return err
	})
	g.Go(func() error {
		n, err := j.count(ctx, `
SELECT COUNT(*) FROM partner_balances b
LEFT JOIN LATERAL (
  SELECT COALESCE(SUM(c.amount),0) AS total
  FROM partner_balance_changes c
  WHERE c.partner_id=b.partner_id AND c.account_type=b.account_type AND c.currency=b.currency
) agg ON TRUE
WHERE ABS(b.balance - agg.total) > 0.01`)
		report.PartnerDrift = n
		return err
	})
	g.Go(func() error {
		n, err := j.count(ctx, `
SELECT COUNT(*) FROM inventory_items i
LEFT JOIN LATERAL (
  SELECT COALESCE(SUM(c.quantity_change),0) AS total
  FROM inventory_quantity_changes c
  WHERE c.item_id=i.id
) agg ON TRUE
WHERE ABS(i.quantity - agg.total) > 0.001`)
		report.ItemDrift = n
		return err
	})
	g.Go(func() error {
		n, err := j.count(ctx, `
SELECT COUNT(*) FROM (
  SELECT tenant_id, entry_number
  FROM ledger_entries
  GROUP BY tenant_id, entry_number
  HAVING COUNT(*) > 1
) dup`)
		report.DuplicateNumbers = n
		return err
	})
	g.Go(func() error {
		n, err := j.count(ctx, `
SELECT COUNT(*) FROM ledger_entries WHERE entry_number !~ '^JE-\d{4}-\d{5}$'`)
		report.FallbackNumbers = n
		return err
	})
	if err := g.Wait(); err != nil {
		return IntegrityReport{}, err
	}
	return report, nil
}

func (j *IntegrityJob) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := j.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// IdempotencyCleanupJob prunes expired idempotency keys.
type IdempotencyCleanupJob struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the cleanup job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if err := j.store.Cleanup(ctx, retention); err != nil {
		return err
	}
	j.logger.Info("idempotency keys pruned", slog.Duration("retention", retention))
	return nil
}
