package posting

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/shared"
)

func newTestRouter(svc *Service, withActor bool) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc)
	router := chi.NewRouter()
	if withActor {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := shared.ContextWithActor(r.Context(), shared.Actor{TenantID: 10, UserID: 3})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
	}
	handler.MountRoutes(router)
	return router
}

func invoiceReceivedBody(vendorID int64, itemID int64, qty float64) string {
	return fmt.Sprintf(`{
		"invoice_id": %q,
		"vendor_id": %d,
		"amount": 100,
		"currency": "TRY",
		"items": [{"item_id": %d, "quantity": %v, "unit_price": 10}]
	}`, uuid.NewString(), vendorID, itemID, qty)
}

func TestHandlerPostInvoiceReceived(t *testing.T) {
	router := newTestRouter(newTestService(seedStore(), nil), true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/invoice-received", strings.NewReader(invoiceReceivedBody(1, 1, 10)))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Regexp(t, `^JE-\d{4}-00001$`, body.EntryNumber)
	require.Equal(t, 2, body.Lines)
	require.Equal(t, "100.00", body.AmountFormatted)
}

func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		withActor  bool
		wantStatus int
		wantTitle  string
	}{
		{
			name:       "missing actor",
			body:       invoiceReceivedBody(1, 1, 10),
			withActor:  false,
			wantStatus: http.StatusUnauthorized,
			wantTitle:  "Unauthorized",
		},
		{
			name:       "malformed json",
			body:       `{"invoice_id": `,
			withActor:  true,
			wantStatus: http.StatusBadRequest,
			wantTitle:  "Invalid Body",
		},
		{
			name:       "missing amount",
			body:       fmt.Sprintf(`{"invoice_id": %q, "currency": "TRY", "items": [{"item_id": 1, "quantity": 5}]}`, uuid.NewString()),
			withActor:  true,
			wantStatus: http.StatusBadRequest,
			wantTitle:  "Validation Failed",
		},
		{
			name:       "unknown vendor",
			body:       invoiceReceivedBody(77, 1, 10),
			withActor:  true,
			wantStatus: http.StatusNotFound,
			wantTitle:  "Not Found",
		},
		{
			name:       "foreign tenant vendor",
			body:       invoiceReceivedBody(3, 1, 10),
			withActor:  true,
			wantStatus: http.StatusForbidden,
			wantTitle:  "Forbidden",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(newTestService(seedStore(), nil), tc.withActor)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/events/invoice-received", strings.NewReader(tc.body))
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			var problem struct {
				Title  string `json:"title"`
				Status int    `json:"status"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			require.Equal(t, tc.wantTitle, problem.Title)
			require.Equal(t, tc.wantStatus, problem.Status)
		})
	}
}

func TestHandlerInsufficientStockCarriesAvailable(t *testing.T) {
	router := newTestRouter(newTestService(seedStore(), nil), true)

	// Item 2 is seeded with quantity 5.
	body := fmt.Sprintf(`{
		"invoice_id": %q,
		"customer_id": 2,
		"amount": 100,
		"currency": "TRY",
		"items": [{"item_id": 2, "quantity": 40, "unit_price": 10}]
	}`, uuid.NewString())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/invoice-issued", strings.NewReader(body))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var problem struct {
		Title string         `json:"title"`
		Extra map[string]any `json:"extra"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Insufficient Stock", problem.Title)
	require.InDelta(t, 5, problem.Extra["available"].(float64), 0.001)
	require.InDelta(t, 2, problem.Extra["item_id"].(float64), 0.001)
}

func TestHandlerDuplicateEventConflicts(t *testing.T) {
	svc := newTestService(seedStore(), nil)
	svc.WithIdempotency(newMemoryIdem())
	router := newTestRouter(svc, true)

	body := invoiceReceivedBody(1, 1, 10)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/events/invoice-received", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/events/invoice-received", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, second.Code)
	require.Contains(t, second.Body.String(), "Duplicate Event")
}
