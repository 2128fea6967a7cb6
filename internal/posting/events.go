package posting

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/storekeep/storekeep/internal/ledger"
)

// LineItem is one invoice line touching an inventory item.
type LineItem struct {
	ItemID    int64
	Quantity  float64
	UnitPrice float64
}

// InvoiceReceivedEvent records a purchase invoice. A nil VendorID means the
// invoice was settled in cash on receipt.
type InvoiceReceivedEvent struct {
	InvoiceID   uuid.UUID
	VendorID    *int64
	Amount      float64
	Currency    string
	Date        time.Time
	Description string
	Items       []LineItem
}

// InvoiceIssuedEvent records a sales invoice. A nil CustomerID means a cash
// sale.
type InvoiceIssuedEvent struct {
	InvoiceID   uuid.UUID
	CustomerID  *int64
	Amount      float64
	Currency    string
	Date        time.Time
	Description string
	Items       []LineItem
}

// CustomerPaymentEvent records money received against a customer's
// receivable balance.
type CustomerPaymentEvent struct {
	PaymentID   uuid.UUID
	CustomerID  int64
	Amount      float64
	Currency    string
	Date        time.Time
	Description string
}

// VendorPaymentEvent records money paid against a vendor's payable balance.
type VendorPaymentEvent struct {
	PaymentID   uuid.UUID
	VendorID    int64
	Amount      float64
	Currency    string
	Date        time.Time
	Description string
}

var (
	// ErrInvalidAmount indicates a non-positive event amount.
	ErrInvalidAmount = errors.New("posting: amount must be positive")
	// ErrInvalidItems indicates a line item with non-positive quantity.
	ErrInvalidItems = errors.New("posting: item quantities must be positive")
)

// Each event kind builds its fixed pair of ledger lines. Keeping the mapping
// in one builder per kind makes the debit/credit table explicit instead of
// assembling records dynamically at the call sites.

// Lines for a received invoice: debit inventory, credit payable (vendor) or
// cash.
func (e InvoiceReceivedEvent) Lines() []ledger.LineInput {
	credit := ledger.LineInput{AccountType: ledger.AccountCash, Credit: e.Amount, Description: e.Description}
	if e.VendorID != nil {
		credit = ledger.LineInput{AccountType: ledger.AccountPayable, AccountID: e.VendorID, Credit: e.Amount, Description: e.Description}
	}
	return []ledger.LineInput{
		{AccountType: ledger.AccountInventory, Debit: e.Amount, Description: e.Description},
		credit,
	}
}

// Lines for an issued invoice: debit receivable (customer) or cash, credit
// inventory.
func (e InvoiceIssuedEvent) Lines() []ledger.LineInput {
	debit := ledger.LineInput{AccountType: ledger.AccountCash, Debit: e.Amount, Description: e.Description}
	if e.CustomerID != nil {
		debit = ledger.LineInput{AccountType: ledger.AccountReceivable, AccountID: e.CustomerID, Debit: e.Amount, Description: e.Description}
	}
	return []ledger.LineInput{
		debit,
		{AccountType: ledger.AccountInventory, Credit: e.Amount, Description: e.Description},
	}
}

// Lines for a customer payment: debit cash, credit receivable.
func (e CustomerPaymentEvent) Lines() []ledger.LineInput {
	customerID := e.CustomerID
	return []ledger.LineInput{
		{AccountType: ledger.AccountCash, Debit: e.Amount, Description: e.Description},
		{AccountType: ledger.AccountReceivable, AccountID: &customerID, Credit: e.Amount, Description: e.Description},
	}
}

// Lines for a vendor payment: debit payable, credit cash.
func (e VendorPaymentEvent) Lines() []ledger.LineInput {
	vendorID := e.VendorID
	return []ledger.LineInput{
		{AccountType: ledger.AccountPayable, AccountID: &vendorID, Debit: e.Amount, Description: e.Description},
		{AccountType: ledger.AccountCash, Credit: e.Amount, Description: e.Description},
	}
}

func validateItems(items []LineItem) error {
	for _, item := range items {
		if item.ItemID == 0 || item.Quantity <= 0 {
			return ErrInvalidItems
		}
		if item.UnitPrice < 0 {
			return ErrInvalidItems
		}
	}
	return nil
}
