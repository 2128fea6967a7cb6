package posting

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/storekeep/storekeep/internal/inventory"
	"github.com/storekeep/storekeep/internal/ledger"
	"github.com/storekeep/storekeep/internal/partners"
	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
)

// Handler wires HTTP endpoints for business event posting.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs posting handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) handleInvoiceReceived(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return
	}
	var req invoiceReceivedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.RecordInvoiceReceived(r.Context(), actor, req.toEvent())
	if err != nil {
		h.respondError(w, "invoice received", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEntryResponse(entry))
}

func (h *Handler) handleInvoiceIssued(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return
	}
	var req invoiceIssuedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.RecordInvoiceIssued(r.Context(), actor, req.toEvent())
	if err != nil {
		h.respondError(w, "invoice issued", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEntryResponse(entry))
}

func (h *Handler) handleCustomerPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return
	}
	var req customerPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.RecordCustomerPayment(r.Context(), actor, req.toEvent())
	if err != nil {
		h.respondError(w, "customer payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEntryResponse(entry))
}

func (h *Handler) handleVendorPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return
	}
	var req vendorPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.RecordVendorPayment(r.Context(), actor, req.toEvent())
	if err != nil {
		h.respondError(w, "vendor payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEntryResponse(entry))
}

// respondError maps translator failures onto problem responses. A stock
// shortfall carries the available quantity so callers can adjust without a
// second round trip.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if short, ok := inventory.ShortItem(err); ok {
		httpx.ProblemWith(w, http.StatusConflict, "Insufficient Stock", short.Error(), map[string]any{
			"item_id":   short.ItemID,
			"available": short.Available,
		})
		return
	}
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Event", err.Error())
	case errors.Is(err, partners.ErrPartnerNotFound), errors.Is(err, inventory.ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrTenantMismatch):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ledger.ErrUnbalanced):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced Entry", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidItems),
		errors.Is(err, ledger.ErrNoLines), errors.Is(err, partners.ErrInvalidAmount),
		errors.Is(err, inventory.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("post event failed", slog.String("event", op), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
