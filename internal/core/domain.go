package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Bank       AccountType = "bank"
	Cash       AccountType = "cash"
	EWallet    AccountType = "e-wallet"
	Investment AccountType = "investment"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

type (
	AccountType string

	// TransactionType classifies both categories and transactions. A
	// transaction always carries the type of its category.
	TransactionType string

	User struct {
		ID           int64     `json:"id" db:"id"`
		Username     string    `json:"username" db:"username"`
		PasswordHash string    `json:"-" db:"password_hash"`
		CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	}

	Account struct {
		ID        int64           `json:"id" db:"id"`
		UserID    int64           `json:"userId" db:"user_id"`
		Name      string          `json:"name" db:"name"`
		Type      AccountType     `json:"type" db:"type"`
		Balance   decimal.Decimal `json:"balance" db:"balance"`
		CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	}

	Category struct {
		ID        int64           `json:"id" db:"id"`
		UserID    int64           `json:"userId" db:"user_id"`
		Name      string          `json:"name" db:"name"`
		Type      TransactionType `json:"type" db:"type"`
		Icon      string          `json:"icon,omitempty" db:"icon"`
		CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	}

	Transaction struct {
		ID                   int64           `json:"id" db:"id"`
		UserID               int64           `json:"userId" db:"user_id"`
		AccountID            int64           `json:"accountId" db:"account_id"`
		CategoryID           int64           `json:"categoryId" db:"category_id"`
		Type                 TransactionType `json:"type" db:"type"`
		Amount               decimal.Decimal `json:"amount" db:"amount"`
		Date                 Date            `json:"date" db:"occurred_on"`
		Note                 string          `json:"note,omitempty" db:"note"`
		DestinationAccountID *int64          `json:"destinationAccountId,omitempty" db:"destination_account_id"`
		CreatedAt            time.Time       `json:"createdAt" db:"created_at"`
	}

	// Leg is the signed effect of a transaction on one account balance.
	Leg struct {
		AccountID int64
		Delta     decimal.Decimal
	}
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
	maxNameLength     = 100
	maxNoteLength     = 500
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid type")
	ErrEmptyName          = errors.New("empty name")
	ErrMissingDestination = errors.New("transfer requires a destination account")
	ErrSameAccount        = errors.New("transfer source and destination are the same account")
	ErrUnexpectedDest     = errors.New("destination account is only allowed on transfers")
)

// ValidationError reports bad caller input on a single field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

// Invalid builds a ValidationError with a free-form reason.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (t AccountType) Valid() bool {
	switch t {
	case Bank, Cash, EWallet, Investment:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateCredentials checks registration input. The username must already be normalized.
func ValidateCredentials(username, password string) error {
	if len(username) < MinUsernameLength {
		return Invalid("username", "must be at least 3 characters")
	}
	if len(password) < MinPasswordLength {
		return Invalid("password", "must be at least 6 characters")
	}
	if len(password) > MaxPasswordLength {
		return Invalid("password", "must be at most 72 bytes")
	}
	return nil
}

func (a Account) Validate() error {
	if err := validateName(a.Name); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", ErrEmptyName)
	}
	if len(name) > maxNameLength {
		return Invalid("name", "too long (max 100 characters)")
	}
	return nil
}

// Validate checks the transaction on its own, without looking at referenced
// accounts or categories.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	if !t.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if err := t.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if t.AccountID <= 0 {
		return Invalid("accountId", "is required")
	}
	if t.CategoryID <= 0 {
		return Invalid("categoryId", "is required")
	}
	if len(t.Note) > maxNoteLength {
		return Invalid("note", "too long (max 500 characters)")
	}
	switch {
	case t.Type == Transfer && t.DestinationAccountID == nil:
		return invalid("destinationAccountId", ErrMissingDestination)
	case t.Type == Transfer && *t.DestinationAccountID == t.AccountID:
		return invalid("destinationAccountId", ErrSameAccount)
	case t.Type != Transfer && t.DestinationAccountID != nil:
		return invalid("destinationAccountId", ErrUnexpectedDest)
	}
	return nil
}

// Legs returns the balance effects of the transaction: one leg for income and
// expense, two for a transfer. Invalid transactions have no legs.
func (t Transaction) Legs() ([]Leg, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch t.Type {
	case Income:
		return []Leg{{AccountID: t.AccountID, Delta: t.Amount}}, nil
	case Expense:
		return []Leg{{AccountID: t.AccountID, Delta: t.Amount.Neg()}}, nil
	default:
		return []Leg{
			{AccountID: t.AccountID, Delta: t.Amount.Neg()},
			{AccountID: *t.DestinationAccountID, Delta: t.Amount},
		}, nil
	}
}

// Inverse negates every leg.
func Inverse(legs []Leg) []Leg {
	out := make([]Leg, len(legs))
	for i, l := range legs {
		out[i] = Leg{AccountID: l.AccountID, Delta: l.Delta.Neg()}
	}
	return out
}

// Touches reports whether the transaction references the account as source or destination.
func (t Transaction) Touches(accountID int64) bool {
	return t.AccountID == accountID || (t.DestinationAccountID != nil && *t.DestinationAccountID == accountID)
}
