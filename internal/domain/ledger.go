package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes ledger entry directions.
type TransactionKind string

const (
	TransactionDebit  TransactionKind = "debit"
	TransactionCredit TransactionKind = "credit"
)

// CreditTransaction is an immutable ledger entry. Debits caused by a
// generation job carry the job id so the pipeline can detect a replay.
type CreditTransaction struct {
	ID          string
	UserID      string
	JobID       *string
	Kind        TransactionKind
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// Balance is the denormalized running sum of a user's transactions.
type Balance struct {
	UserID    string
	Amount    decimal.Decimal
	UpdatedAt time.Time
}
