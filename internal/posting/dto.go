package posting

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/storekeep/storekeep/internal/ledger"
)

// lineItemRequest is one invoice line in a request body.
type lineItemRequest struct {
	ItemID    int64   `json:"item_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type invoiceReceivedRequest struct {
	InvoiceID   uuid.UUID         `json:"invoice_id" validate:"required"`
	VendorID    *int64            `json:"vendor_id" validate:"omitempty,gt=0"`
	Amount      float64           `json:"amount" validate:"required,gt=0"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	Date        time.Time         `json:"date"`
	Description string            `json:"description" validate:"max=500"`
	Items       []lineItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r invoiceReceivedRequest) toEvent() InvoiceReceivedEvent {
	return InvoiceReceivedEvent{
		InvoiceID:   r.InvoiceID,
		VendorID:    r.VendorID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Date:        r.Date,
		Description: r.Description,
		Items:       toLineItems(r.Items),
	}
}

type invoiceIssuedRequest struct {
	InvoiceID   uuid.UUID         `json:"invoice_id" validate:"required"`
	CustomerID  *int64            `json:"customer_id" validate:"omitempty,gt=0"`
	Amount      float64           `json:"amount" validate:"required,gt=0"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	Date        time.Time         `json:"date"`
	Description string            `json:"description" validate:"max=500"`
	Items       []lineItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r invoiceIssuedRequest) toEvent() InvoiceIssuedEvent {
	return InvoiceIssuedEvent{
		InvoiceID:   r.InvoiceID,
		CustomerID:  r.CustomerID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Date:        r.Date,
		Description: r.Description,
		Items:       toLineItems(r.Items),
	}
}

type customerPaymentRequest struct {
	PaymentID   uuid.UUID `json:"payment_id" validate:"required"`
	CustomerID  int64     `json:"customer_id" validate:"required,gt=0"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Currency    string    `json:"currency" validate:"required,len=3"`
	Date        time.Time `json:"date"`
	Description string    `json:"description" validate:"max=500"`
}

func (r customerPaymentRequest) toEvent() CustomerPaymentEvent {
	return CustomerPaymentEvent{
		PaymentID:   r.PaymentID,
		CustomerID:  r.CustomerID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Date:        r.Date,
		Description: r.Description,
	}
}

type vendorPaymentRequest struct {
	PaymentID   uuid.UUID `json:"payment_id" validate:"required"`
	VendorID    int64     `json:"vendor_id" validate:"required,gt=0"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Currency    string    `json:"currency" validate:"required,len=3"`
	Date        time.Time `json:"date"`
	Description string    `json:"description" validate:"max=500"`
}

func (r vendorPaymentRequest) toEvent() VendorPaymentEvent {
	return VendorPaymentEvent{
		PaymentID:   r.PaymentID,
		VendorID:    r.VendorID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Date:        r.Date,
		Description: r.Description,
	}
}

func toLineItems(items []lineItemRequest) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, LineItem{ItemID: item.ItemID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return out
}

// entryResponse is the posted-entry payload returned by every event endpoint.
type entryResponse struct {
	ID              int64     `json:"id"`
	EntryNumber     string    `json:"entry_number"`
	EntryDate       time.Time `json:"entry_date"`
	ReferenceType   string    `json:"reference_type"`
	ReferenceID     string    `json:"reference_id"`
	Currency        string    `json:"currency"`
	TotalAmount     float64   `json:"total_amount"`
	AmountFormatted string    `json:"amount_formatted"`
	Lines           int       `json:"lines"`
}

var amountPrinter = message.NewPrinter(language.English)

func newEntryResponse(entry ledger.Entry) entryResponse {
	return entryResponse{
		ID:              entry.ID,
		EntryNumber:     entry.EntryNumber,
		EntryDate:       entry.EntryDate,
		ReferenceType:   string(entry.ReferenceType),
		ReferenceID:     entry.ReferenceID.String(),
		Currency:        entry.Currency,
		TotalAmount:     entry.TotalAmount,
		AmountFormatted: amountPrinter.Sprintf("%.2f", entry.TotalAmount),
		Lines:           len(entry.Lines),
	}
}
