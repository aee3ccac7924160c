package core

import "github.com/shopspring/decimal"

// AccountPatch lists the account fields a caller may change. Balance is
// deliberately absent: only the ledger writes it.
type AccountPatch struct {
	Name *string      `json:"name,omitempty"`
	Type *AccountType `json:"type,omitempty"`
}

func (p AccountPatch) Apply(a Account) Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	return a
}

type CategoryPatch struct {
	Name *string          `json:"name,omitempty"`
	Type *TransactionType `json:"type,omitempty"`
	Icon *string          `json:"icon,omitempty"`
}

func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	return c
}

// TransactionPatch is a partial update. ClearDestination removes the
// destination account, which is required when a transfer becomes income or
// expense.
type TransactionPatch struct {
	AccountID            *int64           `json:"accountId,omitempty"`
	CategoryID           *int64           `json:"categoryId,omitempty"`
	Type                 *TransactionType `json:"type,omitempty"`
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	Date                 *Date            `json:"date,omitempty"`
	Note                 *string          `json:"note,omitempty"`
	DestinationAccountID *int64           `json:"destinationAccountId,omitempty"`
	ClearDestination     bool             `json:"clearDestination,omitempty"`
}

// Apply overlays the patch on t and returns the effective transaction.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Note != nil {
		t.Note = *p.Note
	}
	if p.ClearDestination {
		t.DestinationAccountID = nil
	}
	if p.DestinationAccountID != nil {
		id := *p.DestinationAccountID
		t.DestinationAccountID = &id
	}
	return t
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.AccountID == nil && p.CategoryID == nil && p.Type == nil && p.Amount == nil &&
		p.Date == nil && p.Note == nil && p.DestinationAccountID == nil && !p.ClearDestination
}
