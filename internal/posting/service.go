package posting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storekeep/storekeep/internal/inventory"
	"github.com/storekeep/storekeep/internal/ledger"
	"github.com/storekeep/storekeep/internal/partners"
	"github.com/storekeep/storekeep/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts translated events per kind and outcome.
type MetricsPort interface {
	ObserveEvent(kind string, err error)
}

// CachePort invalidates read caches after a posting commits.
type CachePort interface {
	Bump(ctx context.Context) error
}

// IdempotencyPort guards against reposting the same business event.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "posting"

// Service is the business event translator. Given a domain event it produces
// the balanced ledger lines and drives the partner and inventory trackers,
// all inside one transaction: the entry header, its lines, the balance
// change(s) and the quantity change(s) commit or roll back together.
type Service struct {
	repo     Repository
	writer   *ledger.Writer
	balances *partners.BalanceTracker
	stock    *inventory.QuantityTracker
	audit    AuditPort
	metrics  MetricsPort
	idem     IdempotencyPort
	cache    CachePort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the translator.
func NewService(repo Repository, writer *ledger.Writer, balances *partners.BalanceTracker, stock *inventory.QuantityTracker, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		writer:   writer,
		balances: balances,
		stock:    stock,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches an event counter.
func (s *Service) WithMetrics(metrics MetricsPort) {
	s.metrics = metrics
}

// WithIdempotency attaches the duplicate event guard. Event IDs are claimed
// before the transaction and released again when it fails, so a retried
// request can go through.
func (s *Service) WithIdempotency(idem IdempotencyPort) {
	s.idem = idem
}

// WithCache attaches a read cache to invalidate after successful postings.
func (s *Service) WithCache(cache CachePort) {
	s.cache = cache
}

func (s *Service) bumpCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) claimEvent(ctx context.Context, key string) (func(), error) {
	if s.idem == nil {
		return func() {}, nil
	}
	if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
		return nil, err
	}
	return func() {
		if err := s.idem.Delete(ctx, key); err != nil && s.logger != nil {
			s.logger.Warn("release idempotency key failed", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordInvoiceReceived posts a purchase invoice: debit inventory, credit
// payable (or cash when no vendor), vendor payable up, stock in per item.
func (s *Service) RecordInvoiceReceived(ctx context.Context, actor shared.Actor, evt InvoiceReceivedEvent) (ledger.Entry, error) {
	entry, err := s.recordInvoiceReceived(ctx, actor, evt)
	s.observe("invoice_received", err)
	return entry, err
}

func (s *Service) recordInvoiceReceived(ctx context.Context, actor shared.Actor, evt InvoiceReceivedEvent) (ledger.Entry, error) {
	if err := validateInvoice(evt.Amount, evt.InvoiceID, evt.Items); err != nil {
		return ledger.Entry{}, err
	}
	release, err := s.claimEvent(ctx, evt.InvoiceID.String())
	if err != nil {
		return ledger.Entry{}, err
	}
	var entry ledger.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if evt.VendorID != nil {
			if err := s.resolvePartner(ctx, tx, actor.TenantID, *evt.VendorID); err != nil {
				return err
			}
		}
		if err := s.resolveItems(ctx, tx, actor.TenantID, evt.Items); err != nil {
			return err
		}
		var err error
		entry, err = s.writer.Write(ctx, tx, ledger.WriteInput{
			TenantID:      actor.TenantID,
			EntryDate:     s.entryDate(evt.Date),
			Description:   evt.Description,
			ReferenceType: ledger.RefInvoiceIn,
			ReferenceID:   evt.InvoiceID,
			Currency:      evt.Currency,
			CreatedBy:     actor.UserID,
			Lines:         evt.Lines(),
		})
		if err != nil {
			return err
		}
		if evt.VendorID != nil {
			if _, err := s.balances.Apply(ctx, tx, partners.ApplyInput{
				TenantID:      actor.TenantID,
				PartnerID:     *evt.VendorID,
				AccountType:   partners.AccountPayable,
				Amount:        evt.Amount,
				Currency:      evt.Currency,
				ReferenceType: string(ledger.RefInvoiceIn),
				ReferenceID:   evt.InvoiceID.String(),
				ActorID:       actor.UserID,
			}); err != nil {
				return err
			}
		}
		for _, item := range evt.Items {
			if _, err := s.stock.Apply(ctx, tx, inventory.ApplyInput{
				TenantID:      actor.TenantID,
				ItemID:        item.ItemID,
				Type:          inventory.MovementInbound,
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				Currency:      evt.Currency,
				ReferenceType: string(ledger.RefInvoiceIn),
				ReferenceID:   evt.InvoiceID.String(),
				ActorID:       actor.UserID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		release()
		return ledger.Entry{}, err
	}
	s.bumpCaches(ctx)
	s.recordAudit(ctx, actor, "posting.invoice_received", entry, map[string]any{
		"invoice_id": evt.InvoiceID.String(),
		"vendor_id":  evt.VendorID,
		"items":      len(evt.Items),
	})
	return entry, nil
}

// RecordInvoiceIssued posts a sales invoice: debit receivable (or cash when
// no customer), credit inventory, customer receivable up, stock out per item.
// Stock sufficiency is validated for every item before any mutation, so a
// shortfall on a later item never leaves earlier items partially deducted.
func (s *Service) RecordInvoiceIssued(ctx context.Context, actor shared.Actor, evt InvoiceIssuedEvent) (ledger.Entry, error) {
	entry, err := s.recordInvoiceIssued(ctx, actor, evt)
	s.observe("invoice_issued", err)
	return entry, err
}

func (s *Service) recordInvoiceIssued(ctx context.Context, actor shared.Actor, evt InvoiceIssuedEvent) (ledger.Entry, error) {
	if err := validateInvoice(evt.Amount, evt.InvoiceID, evt.Items); err != nil {
		return ledger.Entry{}, err
	}
	release, err := s.claimEvent(ctx, evt.InvoiceID.String())
	if err != nil {
		return ledger.Entry{}, err
	}
	var entry ledger.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if evt.CustomerID != nil {
			if err := s.resolvePartner(ctx, tx, actor.TenantID, *evt.CustomerID); err != nil {
				return err
			}
		}
		// Pre-check pass: lock and verify every item before touching
		// anything. The transaction is the backstop, the pass makes the
		// failure cheap and reports the first short item.
		for _, item := range evt.Items {
			if err := s.stock.CheckAvailability(ctx, tx, actor.TenantID, item.ItemID, item.Quantity); err != nil {
				return err
			}
		}
		var err error
		entry, err = s.writer.Write(ctx, tx, ledger.WriteInput{
			TenantID:      actor.TenantID,
			EntryDate:     s.entryDate(evt.Date),
			Description:   evt.Description,
			ReferenceType: ledger.RefInvoiceOut,
			ReferenceID:   evt.InvoiceID,
			Currency:      evt.Currency,
			CreatedBy:     actor.UserID,
			Lines:         evt.Lines(),
		})
		if err != nil {
			return err
		}
		if evt.CustomerID != nil {
			if _, err := s.balances.Apply(ctx, tx, partners.ApplyInput{
				TenantID:      actor.TenantID,
				PartnerID:     *evt.CustomerID,
				AccountType:   partners.AccountReceivable,
				Amount:        evt.Amount,
				Currency:      evt.Currency,
				ReferenceType: string(ledger.RefInvoiceOut),
				ReferenceID:   evt.InvoiceID.String(),
				ActorID:       actor.UserID,
			}); err != nil {
				return err
			}
		}
		for _, item := range evt.Items {
			if _, err := s.stock.Apply(ctx, tx, inventory.ApplyInput{
				TenantID:      actor.TenantID,
				ItemID:        item.ItemID,
				Type:          inventory.MovementOutbound,
				Quantity:      -item.Quantity,
				UnitPrice:     item.UnitPrice,
				Currency:      evt.Currency,
				ReferenceType: string(ledger.RefInvoiceOut),
				ReferenceID:   evt.InvoiceID.String(),
				ActorID:       actor.UserID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		release()
		return ledger.Entry{}, err
	}
	s.bumpCaches(ctx)
	s.recordAudit(ctx, actor, "posting.invoice_issued", entry, map[string]any{
		"invoice_id":  evt.InvoiceID.String(),
		"customer_id": evt.CustomerID,
		"items":       len(evt.Items),
	})
	return entry, nil
}

// RecordCustomerPayment posts money received from a customer: debit cash,
// credit receivable, customer receivable down.
func (s *Service) RecordCustomerPayment(ctx context.Context, actor shared.Actor, evt CustomerPaymentEvent) (ledger.Entry, error) {
	entry, err := s.recordPayment(ctx, actor, paymentParams{
		PaymentID:   evt.PaymentID,
		PartnerID:   evt.CustomerID,
		AccountType: partners.AccountReceivable,
		Amount:      evt.Amount,
		Currency:    evt.Currency,
		Date:        evt.Date,
		Description: evt.Description,
		Lines:       evt.Lines(),
	})
	s.observe("customer_payment", err)
	if err != nil {
		return ledger.Entry{}, err
	}
	s.recordAudit(ctx, actor, "posting.customer_payment", entry, map[string]any{
		"payment_id":  evt.PaymentID.String(),
		"customer_id": evt.CustomerID,
	})
	return entry, nil
}

// RecordVendorPayment posts money paid to a vendor: debit payable, credit
// cash, vendor payable down.
func (s *Service) RecordVendorPayment(ctx context.Context, actor shared.Actor, evt VendorPaymentEvent) (ledger.Entry, error) {
	entry, err := s.recordPayment(ctx, actor, paymentParams{
		PaymentID:   evt.PaymentID,
		PartnerID:   evt.VendorID,
		AccountType: partners.AccountPayable,
		Amount:      evt.Amount,
		Currency:    evt.Currency,
		Date:        evt.Date,
		Description: evt.Description,
		Lines:       evt.Lines(),
	})
	s.observe("vendor_payment", err)
	if err != nil {
		return ledger.Entry{}, err
	}
	s.recordAudit(ctx, actor, "posting.vendor_payment", entry, map[string]any{
		"payment_id": evt.PaymentID.String(),
		"vendor_id":  evt.VendorID,
	})
	return entry, nil
}

type paymentParams struct {
	PaymentID   uuid.UUID
	PartnerID   int64
	AccountType partners.AccountType
	Amount      float64
	Currency    string
	Date        time.Time
	Description string
	Lines       []ledger.LineInput
}

func (s *Service) recordPayment(ctx context.Context, actor shared.Actor, params paymentParams) (ledger.Entry, error) {
	if params.Amount <= 0 {
		return ledger.Entry{}, ErrInvalidAmount
	}
	if params.PaymentID == uuid.Nil {
		return ledger.Entry{}, fmt.Errorf("posting: payment id required")
	}
	if params.PartnerID == 0 {
		return ledger.Entry{}, partners.ErrPartnerNotFound
	}
	release, err := s.claimEvent(ctx, params.PaymentID.String())
	if err != nil {
		return ledger.Entry{}, err
	}
	var entry ledger.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.resolvePartner(ctx, tx, actor.TenantID, params.PartnerID); err != nil {
			return err
		}
		var err error
		entry, err = s.writer.Write(ctx, tx, ledger.WriteInput{
			TenantID:      actor.TenantID,
			EntryDate:     s.entryDate(params.Date),
			Description:   params.Description,
			ReferenceType: ledger.RefPayment,
			ReferenceID:   params.PaymentID,
			Currency:      params.Currency,
			CreatedBy:     actor.UserID,
			Lines:         params.Lines,
		})
		if err != nil {
			return err
		}
		// Payments reduce what is owed on the tracked side.
		_, err = s.balances.Apply(ctx, tx, partners.ApplyInput{
			TenantID:      actor.TenantID,
			PartnerID:     params.PartnerID,
			AccountType:   params.AccountType,
			Amount:        -params.Amount,
			Currency:      params.Currency,
			ReferenceType: string(ledger.RefPayment),
			ReferenceID:   params.PaymentID.String(),
			ActorID:       actor.UserID,
		})
		return err
	})
	if err != nil {
		release()
		return ledger.Entry{}, err
	}
	s.bumpCaches(ctx)
	return entry, nil
}

func (s *Service) resolvePartner(ctx context.Context, tx TxRepository, tenantID, partnerID int64) error {
	partner, err := tx.GetPartner(ctx, partnerID)
	if err != nil {
		return err
	}
	if partner.TenantID != tenantID {
		return shared.ErrTenantMismatch
	}
	return nil
}

func (s *Service) resolveItems(ctx context.Context, tx TxRepository, tenantID int64, items []LineItem) error {
	for _, item := range items {
		it, err := tx.GetItem(ctx, item.ItemID)
		if err != nil {
			return err
		}
		if it.TenantID != tenantID {
			return shared.ErrTenantMismatch
		}
	}
	return nil
}

func (s *Service) entryDate(date time.Time) time.Time {
	if date.IsZero() {
		return s.now().UTC()
	}
	return date
}

func (s *Service) observe(kind string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveEvent(kind, err)
	}
}

// recordAudit writes the audit trail best effort: a failed audit write is
// logged and swallowed, never rolling back the financial write.
func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entry ledger.Entry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	meta["entry_number"] = entry.EntryNumber
	meta["amount"] = entry.TotalAmount
	meta["currency"] = entry.Currency
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "ledger_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validateInvoice(amount float64, invoiceID uuid.UUID, items []LineItem) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if invoiceID == uuid.Nil {
		return fmt.Errorf("posting: invoice id required")
	}
	return validateItems(items)
}
