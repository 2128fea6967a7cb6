package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
)

// Handler wires HTTP endpoints for material movements.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	repo      *Repository
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, repo *Repository) *Handler {
	return &Handler{logger: logger, service: service, repo: repo, validator: validator.New()}
}

// MountRoutes registers material movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/materials/deduct", h.handleDeduct)
	r.Post("/materials/return", h.handleReturn)
	r.Get("/materials/{id}/changes", h.handleChanges)
}

type materialRequest struct {
	ItemID      int64   `json:"item_id" validate:"required,gt=0"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	ReferenceID string  `json:"reference_id" validate:"required,max=100"`
	Note        string  `json:"note" validate:"max=500"`
}

type materialResponse struct {
	ItemID         int64   `json:"item_id"`
	QuantityBefore float64 `json:"quantity_before"`
	QuantityAfter  float64 `json:"quantity_after"`
}

func (h *Handler) handleDeduct(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.service.DeductMaterial)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.service.ReturnMaterial)
}

func (h *Handler) handleMovement(w http.ResponseWriter, r *http.Request, move func(ctx context.Context, in MaterialInput) (QuantityDelta, error)) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return
	}
	var req materialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	delta, err := move(r.Context(), MaterialInput{
		ItemID:      req.ItemID,
		Quantity:    req.Quantity,
		TenantID:    actor.TenantID,
		ActorID:     actor.UserID,
		ReferenceID: req.ReferenceID,
		Note:        req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materialResponse{ItemID: req.ItemID, QuantityBefore: delta.Before, QuantityAfter: delta.After})
}

func (h *Handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a number")
		return
	}
	changes, err := h.repo.ListChanges(r.Context(), actor.TenantID, id)
	if err != nil {
		h.logger.Error("list quantity changes failed", slog.Int64("item_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if short, ok := ShortItem(err); ok {
		httpx.ProblemWith(w, http.StatusConflict, "Insufficient Stock", short.Error(), map[string]any{
			"item_id":   short.ItemID,
			"available": short.Available,
		})
		return
	}
	switch {
	case errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrTenantMismatch):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("material movement failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
