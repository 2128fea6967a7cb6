package partners

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists partner data in PostgreSQL.
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

// CreatePartner inserts a partner row.
func (r *Repository) CreatePartner(ctx context.Context, p Partner) (Partner, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO partners (tenant_id, name, kind) VALUES ($1,$2,$3) RETURNING id, created_at`,
		p.TenantID, p.Name, p.Kind).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Partner{}, err
	}
	return p, nil
}

// CurrentBalance reads the maintained aggregate for (partner, account type,
// currency). Zero when no movement has been recorded yet.
func (r *Repository) CurrentBalance(ctx context.Context, tenantID, partnerID int64, accountType AccountType, currency string) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM partner_balances WHERE tenant_id=$1 AND partner_id=$2 AND account_type=$3 AND currency=$4`,
		tenantID, partnerID, accountType, currency).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// ListChanges returns the append-only change log for a partner account,
// oldest first.
func (r *Repository) ListChanges(ctx context.Context, tenantID, partnerID int64, accountType AccountType, currency string) ([]BalanceChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, partner_id, account_type, amount, currency, balance_before, balance_after, reference_type, reference_id, created_by, created_at
FROM partner_balance_changes WHERE tenant_id=$1 AND partner_id=$2 AND account_type=$3 AND currency=$4 ORDER BY id ASC`,
		tenantID, partnerID, accountType, currency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var changes []BalanceChange
	for rows.Next() {
		var c BalanceChange
		if err := rows.Scan(&c.ID, &c.TenantID, &c.PartnerID, &c.AccountType, &c.Amount, &c.Currency, &c.BalanceBefore, &c.BalanceAfter, &c.ReferenceType, &c.ReferenceID, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a pgx transaction with partner operations. Exported
// so the posting repository can compose it with the other domains' wrappers.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetPartner(ctx context.Context, partnerID int64) (Partner, error) {
	var p Partner
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, name, kind, created_at FROM partners WHERE id=$1`, partnerID).
		Scan(&p.ID, &p.TenantID, &p.Name, &p.Kind, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Partner{}, ErrPartnerNotFound
		}
		return Partner{}, err
	}
	return p, nil
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, partnerID int64, accountType AccountType, currency string) (float64, error) {
	var balance float64
	err := r.tx.QueryRow(ctx, `SELECT balance FROM partner_balances WHERE partner_id=$1 AND account_type=$2 AND currency=$3 FOR UPDATE`,
		partnerID, accountType, currency).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, tenantID, partnerID int64, accountType AccountType, currency string, balance float64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO partner_balances (tenant_id, partner_id, account_type, currency, balance, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (partner_id, account_type, currency) DO UPDATE SET balance=EXCLUDED.balance, updated_at=NOW()`,
		tenantID, partnerID, accountType, currency, balance)
	return err
}

func (r *txRepository) InsertBalanceChange(ctx context.Context, change BalanceChange) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO partner_balance_changes (tenant_id, partner_id, account_type, amount, currency, balance_before, balance_after, reference_type, reference_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		change.TenantID, change.PartnerID, change.AccountType, change.Amount, change.Currency, change.BalanceBefore, change.BalanceAfter, change.ReferenceType, change.ReferenceID, nullInt(change.CreatedBy), change.CreatedAt)
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
