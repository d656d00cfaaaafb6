package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction in which an account balance naturally increases.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Valid reports whether the side is one of the known directions.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Signed returns the contribution of a debit/credit pair to a balance kept on
// this side: debits increase debit-side accounts, credits increase
// credit-side accounts.
func (s Side) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	if s == SideCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// Account models a chart of accounts node. Accounts are owned by the chart of
// accounts collaborator and are read-only here.
type Account struct {
	ID         int64
	Code       string
	NameAr     string
	NameEn     string
	ParentID   *int64
	IsPostable bool
	NormalSide Side
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName prefers the Arabic name, falling back to English and the code.
func (a Account) DisplayName() string {
	switch {
	case a.NameAr != "":
		return a.NameAr
	case a.NameEn != "":
		return a.NameEn
	default:
		return a.Code
	}
}

// CostCenter is an optional analytic tag on voucher lines.
type CostCenter struct {
	ID   int64
	Code string
	Name string
}
