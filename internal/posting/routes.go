package posting

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers event posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/events/invoice-received", h.handleInvoiceReceived)
	r.Post("/events/invoice-issued", h.handleInvoiceIssued)
	r.Post("/events/customer-payment", h.handleCustomerPayment)
	r.Post("/events/vendor-payment", h.handleVendorPayment)
}
