package partners

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
)

// Handler wires HTTP endpoints for partner balance reads.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
	cache  *BalanceCache
}

// NewHandler constructs partners handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// WithCache attaches the Redis balance cache.
func (h *Handler) WithCache(cache *BalanceCache) {
	h.cache = cache
}

// MountRoutes registers partner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/partners/{id}/balance", h.handleBalance)
	r.Get("/partners/{id}/changes", h.handleChanges)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	actor, partnerID, accountType, currency, ok := h.scope(w, r)
	if !ok {
		return
	}
	balance, err := h.cache.FetchBalance(r.Context(), actor.TenantID, partnerID, accountType, currency, func(ctx context.Context) (float64, error) {
		return h.repo.CurrentBalance(ctx, actor.TenantID, partnerID, accountType, currency)
	})
	if err != nil {
		h.logger.Error("read balance failed", slog.Int64("partner_id", partnerID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"partner_id":   partnerID,
		"account_type": accountType,
		"currency":     currency,
		"balance":      balance,
	})
}

func (h *Handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	actor, partnerID, accountType, currency, ok := h.scope(w, r)
	if !ok {
		return
	}
	changes, err := h.repo.ListChanges(r.Context(), actor.TenantID, partnerID, accountType, currency)
	if err != nil {
		h.logger.Error("list balance changes failed", slog.Int64("partner_id", partnerID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, AccountType, string, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return shared.Actor{}, 0, "", "", false
	}
	partnerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a number")
		return shared.Actor{}, 0, "", "", false
	}
	accountType := AccountType(r.URL.Query().Get("account_type"))
	if accountType != AccountReceivable && accountType != AccountPayable {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account_type must be receivable or payable")
		return shared.Actor{}, 0, "", "", false
	}
	currency := r.URL.Query().Get("currency")
	if len(currency) != 3 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "currency must be a 3 letter code")
		return shared.Actor{}, 0, "", "", false
	}
	return actor, partnerID, accountType, currency, true
}
