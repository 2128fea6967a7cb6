package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/storekeep/storekeep/internal/shared"
)

// Reference types stamped on BOQ movements.
const (
	refMaterialIssue  = "material_issue"
	refMaterialReturn = "material_return"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes the BOQ-style material movements: inventory-only
// operations that do not produce a ledger entry.
type Service struct {
	repo    RepositoryPort
	tracker *QuantityTracker
	audit   AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, tracker *QuantityTracker, audit AuditPort) *Service {
	return &Service{repo: repo, tracker: tracker, audit: audit}
}

// MaterialInput describes a project material movement.
type MaterialInput struct {
	ItemID      int64
	Quantity    float64
	TenantID    int64
	ActorID     int64
	ReferenceID string
	Note        string
}

// DeductMaterial issues material against a project BOQ line. Fails with
// InsufficientStockError when the deduction would drive stock negative.
func (s *Service) DeductMaterial(ctx context.Context, in MaterialInput) (QuantityDelta, error) {
	if in.Quantity <= 0 {
		return QuantityDelta{}, ErrInvalidQuantity
	}
	var delta QuantityDelta
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		delta, err = s.tracker.Apply(ctx, tx, ApplyInput{
			TenantID:      in.TenantID,
			ItemID:        in.ItemID,
			Type:          MovementOutbound,
			Quantity:      -in.Quantity,
			ReferenceType: refMaterialIssue,
			ReferenceID:   in.ReferenceID,
			ActorID:       in.ActorID,
		})
		return err
	})
	if err != nil {
		return QuantityDelta{}, err
	}
	s.recordAudit(ctx, in, "inventory.material_deduct", delta)
	return delta, nil
}

// ReturnMaterial returns previously issued material to stock.
func (s *Service) ReturnMaterial(ctx context.Context, in MaterialInput) (QuantityDelta, error) {
	if in.Quantity <= 0 {
		return QuantityDelta{}, ErrInvalidQuantity
	}
	var delta QuantityDelta
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		delta, err = s.tracker.Apply(ctx, tx, ApplyInput{
			TenantID:      in.TenantID,
			ItemID:        in.ItemID,
			Type:          MovementInbound,
			Quantity:      in.Quantity,
			ReferenceType: refMaterialReturn,
			ReferenceID:   in.ReferenceID,
			ActorID:       in.ActorID,
		})
		return err
	})
	if err != nil {
		return QuantityDelta{}, err
	}
	s.recordAudit(ctx, in, "inventory.material_return", delta)
	return delta, nil
}

// ShortItem extracts the typed shortfall when err is an insufficient stock
// failure.
func ShortItem(err error) (*InsufficientStockError, bool) {
	var short *InsufficientStockError
	if errors.As(err, &short) {
		return short, true
	}
	return nil, false
}

func (s *Service) recordAudit(ctx context.Context, in MaterialInput, action string, delta QuantityDelta) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: in.TenantID,
		ActorID:  in.ActorID,
		Action:   action,
		Entity:   "inventory_item",
		EntityID: fmt.Sprintf("%d", in.ItemID),
		Meta: map[string]any{
			"quantity":        in.Quantity,
			"quantity_before": delta.Before,
			"quantity_after":  delta.After,
			"reference_id":    in.ReferenceID,
			"note":            in.Note,
		},
	})
}
