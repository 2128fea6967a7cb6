package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekeep/storekeep/internal/shared"
)

// Repository encapsulates DB operations for ledger entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(ctx, NewTxRepository(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetEntry loads one entry with its lines, scoped by tenant.
func (r *Repository) GetEntry(ctx context.Context, tenantID, entryID int64) (Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, entry_number, entry_date, description, reference_type, reference_id, currency, total_amount, created_by, created_at
FROM ledger_entries WHERE id=$1 AND tenant_id=$2`, entryID, tenantID).
		Scan(&e.ID, &e.TenantID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.Currency, &e.TotalAmount, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, entry_id, account_type, account_id, debit_amount, credit_amount, currency, description
FROM ledger_lines WHERE entry_id=$1 ORDER BY id ASC`, e.ID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountType, &line.AccountID, &line.Debit, &line.Credit, &line.Currency, &line.Description); err != nil {
			return Entry{}, err
		}
		e.Lines = append(e.Lines, line)
	}
	return e, rows.Err()
}

// ListEntries returns entries for a tenant, newest first.
func (r *Repository) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, shared.Pagination, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	args := []any{filter.TenantID}
	where := `tenant_id=$1`
	if filter.FiscalYear != 0 {
		args = append(args, filter.FiscalYear)
		where += fmt.Sprintf(` AND EXTRACT(YEAR FROM entry_date)=$%d`, len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE `+where, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, err
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT id, tenant_id, entry_number, entry_date, description, reference_type, reference_id, currency, total_amount, created_by, created_at
FROM ledger_entries WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.Currency, &e.TotalAmount, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, shared.Pagination{}, err
		}
		entries = append(entries, e)
	}
	return entries, shared.NewPagination(page, perPage, total), rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a pgx transaction with ledger operations. Exported so
// the posting repository can compose it with the other domains' tx wrappers.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// IncrementEntryCounter reserves the next sequence value for (tenant, year).
// The upsert increments under the row lock, so concurrent postings for the
// same tenant+year serialize here instead of racing a count query.
func (r *txRepository) IncrementEntryCounter(ctx context.Context, tenantID int64, fiscalYear int) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `INSERT INTO entry_counters (tenant_id, fiscal_year, last_number)
VALUES ($1, $2, 1)
ON CONFLICT (tenant_id, fiscal_year) DO UPDATE SET last_number = entry_counters.last_number + 1
RETURNING last_number`, tenantID, fiscalYear).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (tenant_id, entry_number, entry_date, description, reference_type, reference_id, currency, total_amount, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		entry.TenantID, entry.EntryNumber, entry.EntryDate, entry.Description, entry.ReferenceType, entry.ReferenceID, entry.Currency, toNumeric(entry.TotalAmount), nullInt(entry.CreatedBy))
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_lines (entry_id, account_type, account_id, debit_amount, credit_amount, currency, description)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, entryID, line.AccountType, nullIntPtr(line.AccountID), toNumeric(line.Debit), toNumeric(line.Credit), line.Currency, line.Description); err != nil {
			return err
		}
	}
	return nil
}

// Helpers
func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullIntPtr(val *int64) any {
	if val == nil {
		return nil
	}
	if *val == 0 {
		return nil
	}
	return *val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
