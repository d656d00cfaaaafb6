package periods

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records period administration events.
type AuditPort interface {
	Record(ctx context.Context, log coreshared.AuditLog) error
}

// IntegrityEnqueuer schedules a ledger integrity check over a date range.
type IntegrityEnqueuer interface {
	EnqueueIntegrity(ctx context.Context, start, end time.Time) error
}

// Service is the period gate: it answers whether a date may receive postings
// and administers the period calendar.
type Service struct {
	repo      Repository
	audit     AuditPort
	integrity IntegrityEnqueuer
	now       func() time.Time
}

// NewService constructs the period service. audit and integrity may be nil.
func NewService(repo Repository, audit AuditPort, integrity IntegrityEnqueuer) *Service {
	return &Service{repo: repo, audit: audit, integrity: integrity, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Validate returns the open period covering date. A date covered only by
// closed periods is rejected with the closed period named in the error.
func (s *Service) Validate(ctx context.Context, date time.Time) (Period, error) {
	covering, err := s.repo.ListCovering(ctx, date)
	if err != nil {
		return Period{}, err
	}
	for _, p := range covering {
		if p.IsOpen() {
			return p, nil
		}
	}
	day := DateOf(date).Format(time.DateOnly)
	if len(covering) > 0 {
		return Period{}, fmt.Errorf("%w: %s falls in closed period %q", shared.ErrNoOpenPeriod, day, covering[0].Name)
	}
	return Period{}, fmt.Errorf("%w: no period covers %s", shared.ErrNoOpenPeriod, day)
}

// Close soft closes an open period. Posted vouchers are untouched; any later
// create or post dated inside the range fails the gate.
func (s *Service) Close(ctx context.Context, id int64, actor string) (Period, error) {
	var closed Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusClosed {
			return fmt.Errorf("%w: %s", shared.ErrAlreadyClosed, current.Name)
		}
		if err := coreshared.ValidatePeriodTransition(string(current.Status), string(StatusClosed)); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidState, err)
		}
		p, ok, err := tx.CloseIfOpen(ctx, id, actor, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", shared.ErrAlreadyClosed, current.Name)
		}
		closed = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.integrity != nil {
		_ = s.integrity.EnqueueIntegrity(ctx, closed.StartDate, closed.EndDate)
	}
	s.record(ctx, actor, "period.close", closed)
	return closed, nil
}

// Create registers a new open period. Overlapping ranges are rejected.
func (s *Service) Create(ctx context.Context, in Input, actor string) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	in = in.normalised()
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureNoOverlap(ctx, tx, in, 0); err != nil {
			return err
		}
		p, err := tx.Insert(ctx, in)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, actor, "period.create", created)
	return created, nil
}

// Update edits name and bounds of an open period.
func (s *Service) Update(ctx context.Context, id int64, in Input, actor string) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	in = in.normalised()
	var updated Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsOpen() {
			return fmt.Errorf("%w: period %s is closed", shared.ErrInvalidState, current.Name)
		}
		if err := ensureNoOverlap(ctx, tx, in, id); err != nil {
			return err
		}
		p, err := tx.Update(ctx, id, in)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, actor, "period.update", updated)
	return updated, nil
}

// Delete removes an open period.
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	var removed Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsOpen() {
			return fmt.Errorf("%w: period %s is closed", shared.ErrInvalidState, current.Name)
		}
		removed = current
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "period.delete", removed)
	return nil
}

// Get returns a single period.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of periods, most recent first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Period, coreshared.Pagination, error) {
	perPage = coreshared.ClampPerPage(perPage, 20, 100)
	meta := coreshared.NewPagination(page, perPage, 0)
	items, total, err := s.repo.List(ctx, meta.PerPage, meta.Offset())
	if err != nil {
		return nil, coreshared.Pagination{}, err
	}
	return items, coreshared.NewPagination(meta.Page, meta.PerPage, total), nil
}

func ensureNoOverlap(ctx context.Context, tx TxRepository, in Input, excludeID int64) error {
	clashes, err := tx.Overlapping(ctx, in.StartDate, in.EndDate, excludeID)
	if err != nil {
		return err
	}
	if len(clashes) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrPeriodOverlap, clashes[0].Name)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor, action string, p Period) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, coreshared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "period",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta: map[string]any{
			"name":   p.Name,
			"start":  p.StartDate.Format(time.DateOnly),
			"end":    p.EndDate.Format(time.DateOnly),
			"status": string(p.Status),
		},
		At: s.now(),
	})
}
