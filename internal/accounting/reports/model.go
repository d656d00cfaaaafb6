package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Posting is one side of the double entry of a posted voucher. Header
// postings carry LineID 0 and an empty description.
type Posting struct {
	VoucherID   int64
	VoucherKind string
	Reference   string
	LineID      int64
	Position    int
	AccountID   int64
	Date        time.Time
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Range is an optional inclusive date window. A nil bound is open.
type Range struct {
	Start *time.Time `json:"start_date,omitempty"`
	End   *time.Time `json:"end_date,omitempty"`
}

func (r Range) before(d time.Time) bool {
	return r.Start != nil && d.Before(*r.Start)
}

func (r Range) after(d time.Time) bool {
	return r.End != nil && d.After(*r.End)
}

func (r Range) key() (string, string) {
	start, end := "-", "-"
	if r.Start != nil {
		start = r.Start.Format(time.DateOnly)
	}
	if r.End != nil {
		end = r.End.Format(time.DateOnly)
	}
	return start, end
}
