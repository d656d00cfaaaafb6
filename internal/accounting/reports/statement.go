package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Statement page size bounds.
const (
	DefaultStatementPerPage = 15
	MaxStatementPerPage     = 100
)

// StatementRequest selects one account, an optional window and a page.
type StatementRequest struct {
	Range
	AccountID int64
	Page      int
	PerPage   int
}

// StatementRow is one movement with the balance after it.
type StatementRow struct {
	Date        time.Time       `json:"date"`
	VoucherID   int64           `json:"voucher_id"`
	VoucherKind string          `json:"voucher_kind"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// StatementAccount identifies the account a statement belongs to.
type StatementAccount struct {
	ID         int64         `json:"id"`
	Code       string        `json:"code"`
	Name       string        `json:"name"`
	NormalSide accounts.Side `json:"normal_side"`
}

// Statement is one page of an account's running-balance ledger. Opening,
// closing and totals always describe the whole range.
type Statement struct {
	Range
	Account        StatementAccount      `json:"account"`
	OpeningBalance decimal.Decimal       `json:"opening_balance"`
	ClosingBalance decimal.Decimal       `json:"closing_balance"`
	TotalDebit     decimal.Decimal       `json:"total_debit"`
	TotalCredit    decimal.Decimal       `json:"total_credit"`
	Rows           []StatementRow        `json:"rows"`
	Pagination     coreshared.Pagination `json:"pagination"`
}

// BuildStatement computes running balances over every in-range movement of
// acc and only then cuts out the requested page, so the last balance of page
// N is the one carried into page N+1. Postings for other accounts are skipped.
func BuildStatement(acc accounts.Account, postings []Posting, req StatementRequest) Statement {
	movements := make([]Posting, 0, len(postings))
	opening := decimal.Zero
	for _, p := range postings {
		if p.AccountID != acc.ID || req.after(p.Date) {
			continue
		}
		if req.before(p.Date) {
			opening = opening.Add(acc.NormalSide.Signed(p.Debit, p.Credit))
			continue
		}
		movements = append(movements, p)
	}
	sort.SliceStable(movements, func(i, j int) bool {
		a, b := movements[i], movements[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.VoucherID != b.VoucherID {
			return a.VoucherID < b.VoucherID
		}
		return a.Position < b.Position
	})

	rows := make([]StatementRow, len(movements))
	balance := opening
	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for i, p := range movements {
		balance = balance.Add(acc.NormalSide.Signed(p.Debit, p.Credit))
		totalDebit = totalDebit.Add(p.Debit)
		totalCredit = totalCredit.Add(p.Credit)
		desc := p.Description
		if desc == "" {
			desc = p.Reference
		}
		rows[i] = StatementRow{
			Date:        p.Date,
			VoucherID:   p.VoucherID,
			VoucherKind: p.VoucherKind,
			Reference:   p.Reference,
			Description: desc,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Balance:     balance,
		}
	}

	perPage := coreshared.ClampPerPage(req.PerPage, DefaultStatementPerPage, MaxStatementPerPage)
	meta := coreshared.NewPagination(req.Page, perPage, len(rows))
	from, to := meta.Window()
	return Statement{
		Range: req.Range,
		Account: StatementAccount{
			ID:         acc.ID,
			Code:       acc.Code,
			Name:       acc.DisplayName(),
			NormalSide: acc.NormalSide,
		},
		OpeningBalance: opening,
		ClosingBalance: balance,
		TotalDebit:     totalDebit,
		TotalCredit:    totalCredit,
		Rows:           rows[from:to],
		Pagination:     meta,
	}
}
