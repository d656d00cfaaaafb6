package periods

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Status enumerates valid period states.
type Status string

const (
	StatusOpen   Status = coreshared.PeriodStatusOpen
	StatusClosed Status = coreshared.PeriodStatusClosed
)

// Period represents a fiscal period window. Bounds are calendar dates and
// both ends are inclusive.
type Period struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	ClosedAt  *time.Time
	ClosedBy  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether date falls inside the period.
func (p Period) Covers(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(DateOf(p.StartDate)) && !d.After(DateOf(p.EndDate))
}

// IsOpen reports whether the period accepts postings.
func (p Period) IsOpen() bool { return p.Status == StatusOpen }

// Input carries the administrator supplied fields of a period.
type Input struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Validate enforces name presence and start <= end.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: period name required", shared.ErrValidation)
	}
	if len(in.Name) > 120 {
		return fmt.Errorf("%w: period name too long", shared.ErrValidation)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: period start and end dates required", shared.ErrValidation)
	}
	if DateOf(in.EndDate).Before(DateOf(in.StartDate)) {
		return fmt.Errorf("%w: period end date precedes start date", shared.ErrValidation)
	}
	return nil
}

func (in Input) normalised() Input {
	return Input{Name: strings.TrimSpace(in.Name), StartDate: DateOf(in.StartDate), EndDate: DateOf(in.EndDate)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
