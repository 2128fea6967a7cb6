package posting

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekeep/storekeep/internal/inventory"
	"github.com/storekeep/storekeep/internal/ledger"
	"github.com/storekeep/storekeep/internal/partners"
)

// TxRepository is the composite transactional surface a business event needs:
// ledger writes, partner balance movements and inventory movements, all
// against the same database transaction so the event commits or rolls back
// as one unit.
type TxRepository interface {
	ledger.TxRepository
	partners.TxRepository
	inventory.TxRepository
}

// Repository opens the shared transaction for event translation.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx runs fn inside one repeatable-read transaction spanning all three
// domains.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	wrapper := &txRepository{
		TxRepository:          ledger.NewTxRepository(tx),
		PartnersTxRepository:  partners.NewTxRepository(tx),
		InventoryTxRepository: inventory.NewTxRepository(tx),
	}
	if err := fn(ctx, wrapper); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// txRepository composes the per-domain tx wrappers over one pgx.Tx.
type txRepository struct {
	ledger.TxRepository
	PartnersTxRepository  partners.TxRepository
	InventoryTxRepository inventory.TxRepository
}

func (r *txRepository) GetPartner(ctx context.Context, partnerID int64) (partners.Partner, error) {
	return r.PartnersTxRepository.GetPartner(ctx, partnerID)
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, partnerID int64, accountType partners.AccountType, currency string) (float64, error) {
	return r.PartnersTxRepository.GetBalanceForUpdate(ctx, partnerID, accountType, currency)
}

func (r *txRepository) UpsertBalance(ctx context.Context, tenantID, partnerID int64, accountType partners.AccountType, currency string, balance float64) error {
	return r.PartnersTxRepository.UpsertBalance(ctx, tenantID, partnerID, accountType, currency, balance)
}

func (r *txRepository) InsertBalanceChange(ctx context.Context, change partners.BalanceChange) error {
	return r.PartnersTxRepository.InsertBalanceChange(ctx, change)
}

func (r *txRepository) GetItem(ctx context.Context, itemID int64) (inventory.Item, error) {
	return r.InventoryTxRepository.GetItem(ctx, itemID)
}

func (r *txRepository) GetQuantityForUpdate(ctx context.Context, itemID int64) (float64, error) {
	return r.InventoryTxRepository.GetQuantityForUpdate(ctx, itemID)
}

func (r *txRepository) UpdateQuantity(ctx context.Context, itemID int64, quantity float64) error {
	return r.InventoryTxRepository.UpdateQuantity(ctx, itemID, quantity)
}

func (r *txRepository) InsertQuantityChange(ctx context.Context, change inventory.QuantityChange) error {
	return r.InventoryTxRepository.InsertQuantityChange(ctx, change)
}
