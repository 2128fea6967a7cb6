package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// LineInput describes a ledger line for a write request.
type LineInput struct {
	AccountType AccountType
	AccountID   *int64
	Debit       float64
	Credit      float64
	Description string
}

// WriteInput groups fields required to create a ledger entry.
type WriteInput struct {
	TenantID      int64
	EntryDate     time.Time
	Description   string
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
	Currency      string
	CreatedBy     int64
	Lines         []LineInput
}

// Validate ensures write input meets the entry preconditions.
func (in WriteInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("ledger: tenant required")
	}
	if in.EntryDate.IsZero() {
		return errors.New("ledger: entry date required")
	}
	if in.Currency == "" {
		return errors.New("ledger: currency required")
	}
	if in.ReferenceType == "" {
		return errors.New("ledger: reference type required")
	}
	if in.ReferenceID == uuid.Nil {
		return errors.New("ledger: reference id required")
	}
	if len(in.Lines) == 0 {
		return ErrNoLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountType == "" {
			return fmt.Errorf("ledger: line %d missing account type", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("ledger: line %d has no amount", idx)
		}
		if (line.AccountType == AccountReceivable || line.AccountType == AccountPayable) && line.AccountID == nil {
			return fmt.Errorf("ledger: line %d partner account requires account id", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > BalanceEpsilon {
		return fmt.Errorf("%w: debit %.2f credit %.2f", ErrUnbalanced, debit, credit)
	}
	return nil
}

// TotalDebit sums the debit side, which becomes the entry's total amount.
func (in WriteInput) TotalDebit() float64 {
	var total float64
	for _, line := range in.Lines {
		total += line.Debit
	}
	return total
}

// ListFilter narrows entry listings.
type ListFilter struct {
	TenantID   int64
	FiscalYear int
	Page       int
	PerPage    int
}
