package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
)

// Handler wires HTTP endpoints for ledger reads. Entries are written only by
// event posting; this surface is the audit window into them.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/entries", h.handleList)
	r.Get("/ledger/entries/{id}", h.handleGet)
}

type entryListResponse struct {
	Entries    []entryItem `json:"entries"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
}

type entryItem struct {
	ID            int64   `json:"id"`
	EntryNumber   string  `json:"entry_number"`
	EntryDate     string  `json:"entry_date"`
	Description   string  `json:"description,omitempty"`
	ReferenceType string  `json:"reference_type"`
	ReferenceID   string  `json:"reference_id"`
	Currency      string  `json:"currency"`
	TotalAmount   float64 `json:"total_amount"`
}

type entryDetail struct {
	entryItem
	Lines []lineItem `json:"lines"`
}

type lineItem struct {
	AccountType string  `json:"account_type"`
	AccountID   *int64  `json:"account_id,omitempty"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorMissing.Error())
		return
	}
	q := r.URL.Query()
	filter := ListFilter{TenantID: actor.TenantID}
	if yearStr := q.Get("fiscal_year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fiscal_year must be a number")
			return
		}
		filter.FiscalYear = year
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	entries, pagination, err := h.repo.ListEntries(r.Context(), filter)
	if err != nil {
		h.logger.Error("list entries failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	resp := entryListResponse{
		Entries:    make([]entryItem, 0, len(entries)),
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryItem(e))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
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
	entry, err := h.repo.GetEntry(r.Context(), actor.TenantID, id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get entry failed", slog.Int64("entry_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	detail := entryDetail{entryItem: toEntryItem(entry), Lines: make([]lineItem, 0, len(entry.Lines))}
	for _, line := range entry.Lines {
		detail.Lines = append(detail.Lines, lineItem{
			AccountType: string(line.AccountType),
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func toEntryItem(e Entry) entryItem {
	return entryItem{
		ID:            e.ID,
		EntryNumber:   e.EntryNumber,
		EntryDate:     e.EntryDate.Format("2006-01-02"),
		Description:   e.Description,
		ReferenceType: string(e.ReferenceType),
		ReferenceID:   e.ReferenceID.String(),
		Currency:      e.Currency,
		TotalAmount:   e.TotalAmount,
	}
}
