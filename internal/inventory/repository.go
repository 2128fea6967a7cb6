package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
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

// CreateItem inserts an item row.
func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO inventory_items (tenant_id, name, unit, quantity) VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		item.TenantID, item.Name, item.Unit, item.Quantity).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// ListChanges returns the append-only movement log for an item, oldest first.
func (r *Repository) ListChanges(ctx context.Context, tenantID, itemID int64) ([]QuantityChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, item_id, transaction_type, quantity_change, quantity_before, quantity_after, unit_price, currency, reference_type, reference_id, created_by, created_at
FROM inventory_quantity_changes WHERE tenant_id=$1 AND item_id=$2 ORDER BY id ASC`, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var changes []QuantityChange
	for rows.Next() {
		var c QuantityChange
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ItemID, &c.Type, &c.QuantityChange, &c.QuantityBefore, &c.QuantityAfter, &c.UnitPrice, &c.Currency, &c.ReferenceType, &c.ReferenceID, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a pgx transaction with inventory operations. Exported
// so the posting repository can compose it with the other domains' wrappers.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetItem(ctx context.Context, itemID int64) (Item, error) {
	var item Item
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, name, unit, quantity, created_at, updated_at FROM inventory_items WHERE id=$1`, itemID).
		Scan(&item.ID, &item.TenantID, &item.Name, &item.Unit, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func (r *txRepository) GetQuantityForUpdate(ctx context.Context, itemID int64) (float64, error) {
	var qty float64
	err := r.tx.QueryRow(ctx, `SELECT quantity FROM inventory_items WHERE id=$1 FOR UPDATE`, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrItemNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (r *txRepository) UpdateQuantity(ctx context.Context, itemID int64, quantity float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE inventory_items SET quantity=$2, updated_at=NOW() WHERE id=$1`, itemID, quantity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) InsertQuantityChange(ctx context.Context, change QuantityChange) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_quantity_changes (tenant_id, item_id, transaction_type, quantity_change, quantity_before, quantity_after, unit_price, currency, reference_type, reference_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		change.TenantID, change.ItemID, change.Type, change.QuantityChange, change.QuantityBefore, change.QuantityAfter, change.UnitPrice, change.Currency, change.ReferenceType, change.ReferenceID, nullInt(change.CreatedBy), change.CreatedAt)
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
