package vouchers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/attachments"
)

// Kind distinguishes payment and receipt vouchers.
type Kind string

const (
	KindPayment Kind = "PAYMENT"
	KindReceipt Kind = "RECEIPT"
)

// Valid reports whether k is a known voucher kind.
func (k Kind) Valid() bool { return k == KindPayment || k == KindReceipt }

// Status enumerates voucher lifecycle states.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
)

// Voucher is the document aggregate. TotalAmount always equals the sum of
// line amounts; only withLines may change either.
type Voucher struct {
	ID          int64
	Kind        Kind
	Date        time.Time
	Reference   string
	AccountID   int64
	TotalAmount decimal.Decimal
	Notes       string
	Status      Status
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PostedAt    *time.Time
	PostedBy    *string
	Version     int64
	Lines       []Line
	Attachments []attachments.Attachment
}

// Line is a single voucher line item.
type Line struct {
	ID           int64
	VoucherID    int64
	Position     int
	AccountID    int64
	Amount       decimal.Decimal
	Description  string
	CostCenterID *int64
}

// Header holds the header fields supplied at creation.
type Header struct {
	Kind      Kind
	Date      time.Time
	Reference string
	AccountID int64
	Notes     string
	CreatedBy string
}

// HeaderInput holds the editable header fields of a draft.
type HeaderInput struct {
	Date      time.Time
	Reference string
	AccountID int64
	Notes     string
}

// LineInput holds the caller supplied fields of a line.
type LineInput struct {
	AccountID    int64
	Amount       decimal.Decimal
	Description  string
	CostCenterID *int64
}

// CreateInput groups the fields needed to create a draft voucher. When
// CompositionID is set the attachments held by that composition session are
// handed to the new voucher.
type CreateInput struct {
	Header        Header
	Lines         []LineInput
	CompositionID *uuid.UUID
}

// ListFilter narrows voucher listings.
type ListFilter struct {
	Kind    Kind
	Status  Status
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// Posting is one side of the double entry produced by a posted voucher.
type Posting struct {
	AccountID int64
	LineID    int64
	Position  int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}
