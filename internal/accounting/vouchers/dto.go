package vouchers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/attachments"
)

type lineRequest struct {
	AccountID    int64           `json:"account_id" validate:"required,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description" validate:"max=255"`
	CostCenterID *int64          `json:"cost_center_id" validate:"omitempty,gt=0"`
}

func (r lineRequest) input() LineInput {
	return LineInput{AccountID: r.AccountID, Amount: r.Amount, Description: r.Description, CostCenterID: r.CostCenterID}
}

type headerRequest struct {
	VoucherDate string `json:"voucher_date" validate:"required,datetime=2006-01-02"`
	Reference   string `json:"reference" validate:"max=100"`
	AccountID   int64  `json:"account_id" validate:"required,gt=0"`
	Notes       string `json:"notes" validate:"max=1000"`
}

func (r headerRequest) input() HeaderInput {
	date, _ := time.Parse(time.DateOnly, r.VoucherDate)
	return HeaderInput{Date: date, Reference: r.Reference, AccountID: r.AccountID, Notes: r.Notes}
}

type createRequest struct {
	headerRequest
	Kind          Kind          `json:"kind" validate:"required,oneof=PAYMENT RECEIPT"`
	CompositionID *uuid.UUID    `json:"composition_id"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r createRequest) input(actor string) CreateInput {
	h := r.headerRequest.input()
	lines := make([]LineInput, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, l.input())
	}
	return CreateInput{
		Header: Header{
			Kind:      r.Kind,
			Date:      h.Date,
			Reference: h.Reference,
			AccountID: h.AccountID,
			Notes:     h.Notes,
			CreatedBy: actor,
		},
		Lines:         lines,
		CompositionID: r.CompositionID,
	}
}

type lineResponse struct {
	ID           int64  `json:"id"`
	Position     int    `json:"position"`
	AccountID    int64  `json:"account_id"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	CostCenterID *int64 `json:"cost_center_id"`
}

type voucherResponse struct {
	ID          int64                  `json:"id"`
	Kind        Kind                   `json:"kind"`
	VoucherDate string                 `json:"voucher_date"`
	Reference   string                 `json:"reference"`
	AccountID   int64                  `json:"account_id"`
	TotalAmount string                 `json:"total_amount"`
	Notes       string                 `json:"notes"`
	Status      Status                 `json:"status"`
	CreatedBy   string                 `json:"created_by"`
	CreatedAt   time.Time              `json:"created_at"`
	PostedAt    *time.Time             `json:"posted_at,omitempty"`
	PostedBy    *string                `json:"posted_by,omitempty"`
	Version     int64                  `json:"version"`
	Lines       []lineResponse         `json:"lines,omitempty"`
	Attachments []attachments.Response `json:"attachments,omitempty"`
}

func toResponse(v Voucher) voucherResponse {
	out := voucherResponse{
		ID:          v.ID,
		Kind:        v.Kind,
		VoucherDate: v.Date.Format(time.DateOnly),
		Reference:   v.Reference,
		AccountID:   v.AccountID,
		TotalAmount: v.TotalAmount.StringFixed(amountScale),
		Notes:       v.Notes,
		Status:      v.Status,
		CreatedBy:   v.CreatedBy,
		CreatedAt:   v.CreatedAt,
		PostedAt:    v.PostedAt,
		PostedBy:    v.PostedBy,
		Version:     v.Version,
	}
	for _, l := range v.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:           l.ID,
			Position:     l.Position,
			AccountID:    l.AccountID,
			Amount:       l.Amount.StringFixed(amountScale),
			Description:  l.Description,
			CostCenterID: l.CostCenterID,
		})
	}
	for _, a := range v.Attachments {
		out.Attachments = append(out.Attachments, attachments.ToResponse(a))
	}
	return out
}
