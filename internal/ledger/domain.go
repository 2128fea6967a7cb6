package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates the account legs a line can post against.
type AccountType string

const (
	AccountInventory  AccountType = "inventory"
	AccountCash       AccountType = "cash"
	AccountReceivable AccountType = "partner_receivable"
	AccountPayable    AccountType = "partner_payable"
)

// ReferenceType links an entry back to the business event that produced it.
type ReferenceType string

const (
	RefInvoiceIn      ReferenceType = "invoice_in"
	RefInvoiceOut     ReferenceType = "invoice_out"
	RefPayment        ReferenceType = "payment"
	RefMaterialIssue  ReferenceType = "material_issue"
	RefMaterialReturn ReferenceType = "material_return"
)

// BalanceEpsilon is the tolerance for floating rounding when checking that
// total debit equals total credit.
const BalanceEpsilon = 0.01

// Entry is one balanced double-entry accounting record. Entries are created
// atomically with their lines and never mutated afterwards.
type Entry struct {
	ID            int64
	TenantID      int64
	EntryNumber   string
	EntryDate     time.Time
	Description   string
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
	Currency      string
	TotalAmount   float64
	CreatedBy     int64
	CreatedAt     time.Time
	Lines         []Line
}

// Line is one debit or credit leg of an entry. Exactly one of Debit/Credit is
// nonzero per line.
type Line struct {
	ID          int64
	EntryID     int64
	AccountType AccountType
	AccountID   *int64
	Debit       float64
	Credit      float64
	Currency    string
	Description string
}

var (
	// ErrUnbalanced indicates the proposed lines do not sum to zero net.
	ErrUnbalanced = errors.New("ledger: total debit does not equal total credit")
	// ErrNoLines indicates an entry without lines.
	ErrNoLines = errors.New("ledger: at least one line required")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("ledger: entry not found")
)
