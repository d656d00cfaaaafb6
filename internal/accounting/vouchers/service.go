package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/attachments"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Voucher, error)
	List(ctx context.Context, filter ListFilter) ([]Voucher, int, error)
}

// CatalogSource supplies the current chart of accounts.
type CatalogSource interface {
	Catalog(ctx context.Context) (*accounts.Catalog, error)
}

// PeriodGate answers whether a date may receive postings.
type PeriodGate interface {
	Validate(ctx context.Context, date time.Time) (periods.Period, error)
}

// AttachmentPort resolves composition sessions and releases voucher blobs.
type AttachmentPort interface {
	Lookup(id uuid.UUID) (*attachments.Session, error)
	ReleaseVoucher(ctx context.Context, voucherID int64) error
}

// AuditPort records voucher lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log coreshared.AuditLog) error
}

// ReportInvalidator drops cached report projections after a post.
type ReportInvalidator interface {
	Invalidate(ctx context.Context) error
}

// EventRecorder counts voucher lifecycle outcomes.
type EventRecorder interface {
	VoucherEvent(kind, event string)
}

// Service coordinates the voucher lifecycle.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogSource
	gate        PeriodGate
	audit       AuditPort
	attachments AttachmentPort
	reports     ReportInvalidator
	events      EventRecorder
	now         func() time.Time
}

// NewService constructs the voucher service.
func NewService(repo RepositoryPort, catalog CatalogSource, gate PeriodGate, audit AuditPort) *Service {
	return &Service{repo: repo, catalog: catalog, gate: gate, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithAttachments enables composition hand-off on Create and blob release on Delete.
func (s *Service) WithAttachments(port AttachmentPort) { s.attachments = port }

// WithReportInvalidator registers the cache dropped after each post.
func (s *Service) WithReportInvalidator(inv ReportInvalidator) { s.reports = inv }

// WithEvents registers a lifecycle counter.
func (s *Service) WithEvents(events EventRecorder) { s.events = events }

// Create validates and persists a new draft voucher.
func (s *Service) Create(ctx context.Context, in CreateInput) (Voucher, error) {
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return Voucher{}, err
	}
	draft, err := newDraft(cat, in.Header, in.Lines, s.now())
	if err != nil {
		return Voucher{}, err
	}
	if err := s.checkPeriod(ctx, draft.Date); err != nil {
		return Voucher{}, err
	}
	var sess *attachments.Session
	if in.CompositionID != nil {
		if sess, err = s.composition(*in.CompositionID, draft.CreatedBy); err != nil {
			return Voucher{}, err
		}
	}

	var (
		created    Voucher
		insertedID int64
		submitted  bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.Insert(ctx, draft)
		if err != nil {
			return err
		}
		insertedID = v.ID
		if sess != nil {
			moved, err := sess.Submit(ctx, v.ID)
			if err != nil {
				return err
			}
			submitted = true
			if err := tx.InsertAttachments(ctx, v.ID, moved); err != nil {
				return err
			}
			v.Attachments = moved
		}
		created = v
		return nil
	})
	if err != nil {
		if submitted {
			_ = s.attachments.ReleaseVoucher(ctx, insertedID)
		}
		return Voucher{}, err
	}
	s.event(created.Kind, "created")
	s.record(ctx, created.CreatedBy, "voucher.create", created)
	return created, nil
}

// AddLine appends a line to a draft.
func (s *Service) AddLine(ctx context.Context, voucherID int64, in LineInput) (Voucher, error) {
	return s.mutate(ctx, voucherID, func(cat Catalog, v Voucher) (Voucher, error) {
		lines := append(v.Lines[:len(v.Lines):len(v.Lines)], linesFromInput([]LineInput{in})...)
		return v.withLines(cat, lines, s.now())
	})
}

// UpdateLine replaces the fields of an existing line.
func (s *Service) UpdateLine(ctx context.Context, voucherID, lineID int64, in LineInput) (Voucher, error) {
	return s.mutate(ctx, voucherID, func(cat Catalog, v Voucher) (Voucher, error) {
		idx := lineIndex(v.Lines, lineID)
		if idx < 0 {
			return Voucher{}, fmt.Errorf("%w: line %d on voucher %d", shared.ErrNotFound, lineID, voucherID)
		}
		lines := append(v.Lines[:0:0], v.Lines...)
		replacement := linesFromInput([]LineInput{in})[0]
		replacement.ID = lineID
		lines[idx] = replacement
		return v.withLines(cat, lines, s.now())
	})
}

// RemoveLine drops a line. Removing the last line is rejected.
func (s *Service) RemoveLine(ctx context.Context, voucherID, lineID int64) (Voucher, error) {
	return s.mutate(ctx, voucherID, func(cat Catalog, v Voucher) (Voucher, error) {
		idx := lineIndex(v.Lines, lineID)
		if idx < 0 {
			return Voucher{}, fmt.Errorf("%w: line %d on voucher %d", shared.ErrNotFound, lineID, voucherID)
		}
		lines := make([]Line, 0, len(v.Lines)-1)
		lines = append(lines, v.Lines[:idx]...)
		lines = append(lines, v.Lines[idx+1:]...)
		return v.withLines(cat, lines, s.now())
	})
}

// UpdateHeader edits a draft's header. Moving the date re-checks the period
// gate, which is how a draft stranded in a closed period becomes postable.
func (s *Service) UpdateHeader(ctx context.Context, voucherID int64, in HeaderInput) (Voucher, error) {
	return s.mutate(ctx, voucherID, func(cat Catalog, v Voucher) (Voucher, error) {
		next, err := v.withHeader(cat, in, s.now())
		if err != nil {
			return Voucher{}, err
		}
		if !next.Date.Equal(v.Date) {
			if err := s.checkPeriod(ctx, next.Date); err != nil {
				return Voucher{}, err
			}
		}
		return next, nil
	})
}

// Post re-validates the draft and the period gate and freezes the voucher.
// A concurrent writer that got there first yields shared.ErrConflict.
func (s *Service) Post(ctx context.Context, voucherID int64, actor string) (Voucher, error) {
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return Voucher{}, err
	}
	var (
		posted Voucher
		kind   Kind
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Load(ctx, voucherID)
		if err != nil {
			return err
		}
		kind = current.Kind
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: voucher %d is %s", shared.ErrInvalidState, voucherID, current.Status)
		}
		if err := s.checkPeriod(ctx, current.Date); err != nil {
			return err
		}
		next, err := current.post(cat, actor, s.now())
		if err != nil {
			return err
		}
		saved, err := tx.Save(ctx, next, current.Version)
		if err != nil {
			return err
		}
		posted = saved
		return nil
	})
	if err != nil {
		if shared.KindOf(err) == shared.KindConflict {
			s.event(kind, "conflict")
		}
		return Voucher{}, err
	}
	s.event(posted.Kind, "posted")
	if s.reports != nil {
		if err := s.reports.Invalidate(ctx); err != nil {
			s.event(posted.Kind, "invalidate_failed")
		}
	}
	s.record(ctx, actor, "voucher.post", posted)
	return posted, nil
}

// Delete removes a draft together with its lines and attachments.
func (s *Service) Delete(ctx context.Context, voucherID int64, actor string) error {
	var removed Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Load(ctx, voucherID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: voucher %d is %s", shared.ErrInvalidState, voucherID, current.Status)
		}
		removed = current
		return tx.Delete(ctx, voucherID, current.Version)
	})
	if err != nil {
		return err
	}
	if s.attachments != nil && len(removed.Attachments) > 0 {
		_ = s.attachments.ReleaseVoucher(ctx, voucherID)
	}
	s.event(removed.Kind, "deleted")
	s.record(ctx, actor, "voucher.delete", removed)
	return nil
}

// Get returns a voucher with its lines and attachments.
func (s *Service) Get(ctx context.Context, voucherID int64) (Voucher, error) {
	return s.repo.Get(ctx, voucherID)
}

// List returns a page of vouchers, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Voucher, coreshared.Pagination, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, coreshared.Pagination{}, fmt.Errorf("%w: unknown voucher kind %q", shared.ErrValidation, filter.Kind)
	}
	if filter.Status != "" && filter.Status != StatusDraft && filter.Status != StatusPosted {
		return nil, coreshared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	filter.PerPage = coreshared.ClampPerPage(filter.PerPage, 20, 100)
	meta := coreshared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page = meta.Page
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, coreshared.Pagination{}, err
	}
	return items, coreshared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) mutate(ctx context.Context, voucherID int64, fn func(Catalog, Voucher) (Voucher, error)) (Voucher, error) {
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return Voucher{}, err
	}
	var out Voucher
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Load(ctx, voucherID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: voucher %d is %s", shared.ErrInvalidState, voucherID, current.Status)
		}
		next, err := fn(cat, current)
		if err != nil {
			return err
		}
		saved, err := tx.Save(ctx, next, current.Version)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	return out, nil
}

// checkPeriod turns a gate rejection into the voucher level PeriodClosed.
func (s *Service) checkPeriod(ctx context.Context, date time.Time) error {
	if _, err := s.gate.Validate(ctx, date); err != nil {
		if errors.Is(err, shared.ErrNoOpenPeriod) {
			return fmt.Errorf("%w: %w", shared.ErrPeriodClosed, err)
		}
		return err
	}
	return nil
}

func (s *Service) composition(id uuid.UUID, owner string) (*attachments.Session, error) {
	if s.attachments == nil {
		return nil, fmt.Errorf("%w: attachments are not enabled", shared.ErrValidation)
	}
	sess, err := s.attachments.Lookup(id)
	if err != nil {
		return nil, err
	}
	if sess.Owner() != owner {
		return nil, fmt.Errorf("%w: composition session %s", shared.ErrNotFound, id)
	}
	return sess, nil
}

func (s *Service) event(kind Kind, event string) {
	if s.events != nil && kind != "" {
		s.events.VoucherEvent(string(kind), event)
	}
}

func (s *Service) record(ctx context.Context, actor, action string, v Voucher) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, coreshared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "voucher",
		EntityID: strconv.FormatInt(v.ID, 10),
		Meta: map[string]any{
			"kind":         string(v.Kind),
			"date":         v.Date.Format(time.DateOnly),
			"reference":    v.Reference,
			"total_amount": v.TotalAmount.StringFixed(amountScale),
			"status":       string(v.Status),
			"lines":        len(v.Lines),
		},
		At: s.now(),
	})
}

func lineIndex(lines []Line, id int64) int {
	for i, l := range lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
