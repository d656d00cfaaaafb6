package vouchers

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const (
	maxReferenceLen   = 100
	maxNotesLen       = 1000
	maxDescriptionLen = 255
	amountScale       = 2
)

// Catalog is the subset of the account catalog the aggregate consults.
type Catalog interface {
	RequirePostable(id int64) (accounts.Account, error)
	RequireCostCenter(id int64) (accounts.CostCenter, error)
}

// newDraft builds a draft voucher from header and lines. Period checks are
// the service's concern.
func newDraft(cat Catalog, h Header, lines []LineInput, now time.Time) (Voucher, error) {
	v := Voucher{
		Kind:      h.Kind,
		Date:      periods.DateOf(h.Date),
		Reference: strings.TrimSpace(h.Reference),
		AccountID: h.AccountID,
		Notes:     strings.TrimSpace(h.Notes),
		Status:    StatusDraft,
		CreatedBy: strings.TrimSpace(h.CreatedBy),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !v.Kind.Valid() {
		return Voucher{}, fmt.Errorf("%w: unknown voucher kind %q", shared.ErrValidation, h.Kind)
	}
	if v.CreatedBy == "" {
		return Voucher{}, fmt.Errorf("%w: created_by required", shared.ErrValidation)
	}
	if err := validateHeader(cat, v); err != nil {
		return Voucher{}, err
	}
	return v.withLines(cat, linesFromInput(lines), now)
}

// withLines is the single state update for line collections: it validates the
// complete new set and returns a new aggregate whose total matches it.
func (v Voucher) withLines(cat Catalog, lines []Line, now time.Time) (Voucher, error) {
	if v.Status != StatusDraft {
		return Voucher{}, fmt.Errorf("%w: voucher %d is %s", shared.ErrInvalidState, v.ID, v.Status)
	}
	if len(lines) == 0 {
		return Voucher{}, shared.ErrNoLines
	}
	next := make([]Line, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		l.Description = strings.TrimSpace(l.Description)
		if err := validateLine(cat, i+1, l); err != nil {
			return Voucher{}, err
		}
		l.VoucherID = v.ID
		l.Position = i + 1
		next[i] = l
		total = total.Add(l.Amount)
	}
	out := v
	out.Lines = next
	out.TotalAmount = total
	out.UpdatedAt = now
	out.Attachments = append(v.Attachments[:0:0], v.Attachments...)
	return out, nil
}

// withHeader replaces the editable header fields of a draft.
func (v Voucher) withHeader(cat Catalog, in HeaderInput, now time.Time) (Voucher, error) {
	if v.Status != StatusDraft {
		return Voucher{}, fmt.Errorf("%w: voucher %d is %s", shared.ErrInvalidState, v.ID, v.Status)
	}
	out := v
	out.Date = periods.DateOf(in.Date)
	out.Reference = strings.TrimSpace(in.Reference)
	out.AccountID = in.AccountID
	out.Notes = strings.TrimSpace(in.Notes)
	out.UpdatedAt = now
	out.Lines = append(v.Lines[:0:0], v.Lines...)
	if err := validateHeader(cat, out); err != nil {
		return Voucher{}, err
	}
	return out, nil
}

// post re-checks every invariant and returns the frozen aggregate.
func (v Voucher) post(cat Catalog, actor string, now time.Time) (Voucher, error) {
	if v.Status != StatusDraft {
		return Voucher{}, fmt.Errorf("%w: voucher %d is %s", shared.ErrInvalidState, v.ID, v.Status)
	}
	if err := validateHeader(cat, v); err != nil {
		return Voucher{}, err
	}
	checked, err := v.withLines(cat, v.Lines, now)
	if err != nil {
		return Voucher{}, err
	}
	if !checked.TotalAmount.Equal(v.TotalAmount) {
		return Voucher{}, fmt.Errorf("%w: total %s does not match lines %s", shared.ErrValidation, v.TotalAmount, checked.TotalAmount)
	}
	checked.Status = StatusPosted
	postedAt := now
	checked.PostedAt = &postedAt
	if actor != "" {
		checked.PostedBy = &actor
	}
	return checked, nil
}

// Postings derives the balanced double entry of the voucher. A payment debits
// each line account and credits the header account; a receipt is the mirror.
func (v Voucher) Postings() []Posting {
	out := make([]Posting, 0, len(v.Lines)+1)
	for _, l := range v.Lines {
		p := Posting{AccountID: l.AccountID, LineID: l.ID, Position: l.Position, Debit: decimal.Zero, Credit: decimal.Zero}
		if v.Kind == KindPayment {
			p.Debit = l.Amount
		} else {
			p.Credit = l.Amount
		}
		out = append(out, p)
	}
	header := Posting{AccountID: v.AccountID, Position: 0, Debit: decimal.Zero, Credit: decimal.Zero}
	if v.Kind == KindPayment {
		header.Credit = v.TotalAmount
	} else {
		header.Debit = v.TotalAmount
	}
	return append(out, header)
}

func validateHeader(cat Catalog, v Voucher) error {
	if v.Date.IsZero() {
		return fmt.Errorf("%w: voucher date required", shared.ErrValidation)
	}
	if len(v.Reference) > maxReferenceLen {
		return fmt.Errorf("%w: reference longer than %d characters", shared.ErrValidation, maxReferenceLen)
	}
	if len(v.Notes) > maxNotesLen {
		return fmt.Errorf("%w: notes longer than %d characters", shared.ErrValidation, maxNotesLen)
	}
	if v.AccountID == 0 {
		return fmt.Errorf("%w: header account required", shared.ErrValidation)
	}
	if _, err := cat.RequirePostable(v.AccountID); err != nil {
		return fmt.Errorf("header account: %w", err)
	}
	return nil
}

func validateLine(cat Catalog, position int, l Line) error {
	if !l.Amount.IsPositive() {
		return fmt.Errorf("%w: line %d amount %s", shared.ErrNonPositiveAmount, position, l.Amount)
	}
	if !l.Amount.Round(amountScale).Equal(l.Amount) {
		return fmt.Errorf("%w: line %d amount has more than %d decimals", shared.ErrValidation, position, amountScale)
	}
	if len(l.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: line %d description too long", shared.ErrValidation, position)
	}
	if _, err := cat.RequirePostable(l.AccountID); err != nil {
		return fmt.Errorf("line %d: %w", position, err)
	}
	if l.CostCenterID != nil {
		if _, err := cat.RequireCostCenter(*l.CostCenterID); err != nil {
			return fmt.Errorf("line %d: %w", position, err)
		}
	}
	return nil
}

func linesFromInput(in []LineInput) []Line {
	out := make([]Line, len(in))
	for i, l := range in {
		out[i] = Line{AccountID: l.AccountID, Amount: l.Amount, Description: l.Description, CostCenterID: l.CostCenterID}
	}
	return out
}
