package reports

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Balances holds the trial balance columns of one node. Total is opening plus
// period before netting; Closing is Total netted by the normal side.
type Balances struct {
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	PeriodDebit   decimal.Decimal `json:"period_debit"`
	PeriodCredit  decimal.Decimal `json:"period_credit"`
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`
}

func (b Balances) add(o Balances) Balances {
	return Balances{
		OpeningDebit:  b.OpeningDebit.Add(o.OpeningDebit),
		OpeningCredit: b.OpeningCredit.Add(o.OpeningCredit),
		PeriodDebit:   b.PeriodDebit.Add(o.PeriodDebit),
		PeriodCredit:  b.PeriodCredit.Add(o.PeriodCredit),
		TotalDebit:    b.TotalDebit.Add(o.TotalDebit),
		TotalCredit:   b.TotalCredit.Add(o.TotalCredit),
		ClosingDebit:  b.ClosingDebit.Add(o.ClosingDebit),
		ClosingCredit: b.ClosingCredit.Add(o.ClosingCredit),
	}
}

// IsZero reports whether every column is zero.
func (b Balances) IsZero() bool {
	return b.OpeningDebit.IsZero() && b.OpeningCredit.IsZero() &&
		b.PeriodDebit.IsZero() && b.PeriodCredit.IsZero() &&
		b.TotalDebit.IsZero() && b.TotalCredit.IsZero() &&
		b.ClosingDebit.IsZero() && b.ClosingCredit.IsZero()
}

// TrialBalanceNode is one account of the rollup tree.
type TrialBalanceNode struct {
	AccountID  int64              `json:"account_id"`
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	NormalSide accounts.Side      `json:"normal_side"`
	IsPostable bool               `json:"is_postable"`
	Balances                      // leaf values or the sum of Children
	Children   []TrialBalanceNode `json:"children,omitempty"`
}

// TrialBalance is the rollup tree with grand totals across roots.
type TrialBalance struct {
	Range
	IncludeZeroBalance bool               `json:"include_zero_balance"`
	Roots              []TrialBalanceNode `json:"roots"`
	Totals             Balances           `json:"totals"`
}

// TrialBalanceRequest selects the reporting window.
type TrialBalanceRequest struct {
	Range
	IncludeZeroBalance bool
}

// leafTotals accumulates the raw postings of one account.
type leafTotals struct {
	openingNet   decimal.Decimal
	periodDebit  decimal.Decimal
	periodCredit decimal.Decimal
}

// BuildTrialBalance rolls postings up the account forest. Postings after the
// range end are ignored; postings before its start form the opening columns.
func BuildTrialBalance(cat *accounts.Catalog, postings []Posting, req TrialBalanceRequest) TrialBalance {
	totals := make(map[int64]*leafTotals)
	for _, p := range postings {
		if req.after(p.Date) {
			continue
		}
		t, ok := totals[p.AccountID]
		if !ok {
			t = &leafTotals{}
			totals[p.AccountID] = t
		}
		if req.before(p.Date) {
			t.openingNet = t.openingNet.Add(p.Debit).Sub(p.Credit)
			continue
		}
		t.periodDebit = t.periodDebit.Add(p.Debit)
		t.periodCredit = t.periodCredit.Add(p.Credit)
	}

	b := rollup{cat: cat, totals: totals, includeZero: req.IncludeZeroBalance}
	tb := TrialBalance{Range: req.Range, IncludeZeroBalance: req.IncludeZeroBalance, Roots: []TrialBalanceNode{}}
	for _, id := range cat.Roots() {
		node, keep := b.node(id)
		// Excluded subtrees are all zero, so totals are unaffected.
		tb.Totals = tb.Totals.add(node.Balances)
		if keep {
			tb.Roots = append(tb.Roots, node)
		}
	}
	return tb
}

type rollup struct {
	cat         *accounts.Catalog
	totals      map[int64]*leafTotals
	includeZero bool
}

func (b rollup) node(id int64) (TrialBalanceNode, bool) {
	acc, _ := b.cat.Get(id)
	n := TrialBalanceNode{
		AccountID:  acc.ID,
		Code:       acc.Code,
		Name:       acc.DisplayName(),
		NormalSide: acc.NormalSide,
		IsPostable: acc.IsPostable,
		Balances:   b.own(acc),
	}
	for _, childID := range b.cat.Children(id) {
		child, keep := b.node(childID)
		n.Balances = n.Balances.add(child.Balances)
		if keep {
			n.Children = append(n.Children, child)
		}
	}
	keep := b.includeZero || len(n.Children) > 0 || !n.Balances.IsZero()
	return n, keep
}

// own computes the columns of the account's direct postings. Only leaves
// post; a parent with stray postings still carries them so totals balance.
func (b rollup) own(acc accounts.Account) Balances {
	out := Balances{
		OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero,
		PeriodDebit: decimal.Zero, PeriodCredit: decimal.Zero,
		TotalDebit: decimal.Zero, TotalCredit: decimal.Zero,
		ClosingDebit: decimal.Zero, ClosingCredit: decimal.Zero,
	}
	t, ok := b.totals[acc.ID]
	if !ok {
		return out
	}
	if t.openingNet.IsPositive() {
		out.OpeningDebit = t.openingNet
	} else {
		out.OpeningCredit = t.openingNet.Neg()
	}
	out.PeriodDebit = t.periodDebit
	out.PeriodCredit = t.periodCredit
	out.TotalDebit = out.OpeningDebit.Add(out.PeriodDebit)
	out.TotalCredit = out.OpeningCredit.Add(out.PeriodCredit)

	balance := acc.NormalSide.Signed(t.openingNet.Add(t.periodDebit), t.periodCredit)
	natural, opposite := &out.ClosingDebit, &out.ClosingCredit
	if acc.NormalSide == accounts.SideCredit {
		natural, opposite = opposite, natural
	}
	if balance.IsNegative() {
		*opposite = balance.Neg()
	} else {
		*natural = balance
	}
	return out
}

// Imbalances lists the column pairs whose grand totals differ.
func (tb TrialBalance) Imbalances() []string {
	var out []string
	if !tb.Totals.OpeningDebit.Equal(tb.Totals.OpeningCredit) {
		out = append(out, "opening")
	}
	if !tb.Totals.PeriodDebit.Equal(tb.Totals.PeriodCredit) {
		out = append(out, "period")
	}
	if !tb.Totals.TotalDebit.Equal(tb.Totals.TotalCredit) {
		out = append(out, "total")
	}
	if !tb.Totals.ClosingDebit.Equal(tb.Totals.ClosingCredit) {
		out = append(out, "closing")
	}
	return out
}

// Verify enforces the double-entry identity on the grand totals.
func (tb TrialBalance) Verify() error {
	cols := tb.Imbalances()
	if len(cols) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s (closing debit %s, credit %s)", shared.ErrOutOfBalance,
		strings.Join(cols, ", "), tb.Totals.ClosingDebit, tb.Totals.ClosingCredit)
}
