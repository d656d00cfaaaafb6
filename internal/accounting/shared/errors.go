package shared

import "errors"

var (
	// ErrValidation indicates input failed validation before any state change.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrNoLines indicates a voucher without line items.
	ErrNoLines = errors.New("accounting: voucher requires at least one line")
	// ErrNonPositiveAmount indicates a line amount of zero or less.
	ErrNonPositiveAmount = errors.New("accounting: line amount must be positive")
	// ErrAccountNotPostable indicates a line or header referencing a non-leaf account.
	ErrAccountNotPostable = errors.New("accounting: account does not accept postings")
	// ErrPeriodClosed indicates the voucher date is outside every open period.
	ErrPeriodClosed = errors.New("accounting: period is not open")
	// ErrNoOpenPeriod indicates no open period covers the requested date.
	ErrNoOpenPeriod = errors.New("accounting: no open period covers date")
	// ErrAlreadyClosed indicates a close request on a closed period.
	ErrAlreadyClosed = errors.New("accounting: period already closed")
	// ErrPeriodOverlap indicates the requested range conflicts with an existing period.
	ErrPeriodOverlap = errors.New("accounting: period overlaps existing range")
	// ErrInvalidState indicates the operation is not legal for the current status.
	ErrInvalidState = errors.New("accounting: invalid status for operation")
	// ErrConflict indicates a concurrent writer won the precondition.
	ErrConflict = errors.New("accounting: concurrent modification, refresh required")
	// ErrNotFound indicates a referenced voucher, account or period is missing.
	ErrNotFound = errors.New("accounting: not found")
	// ErrTransient indicates an underlying I/O failure; retry the whole operation.
	ErrTransient = errors.New("accounting: temporary failure")
	// ErrOutOfBalance indicates the double-entry identity failed on a report.
	ErrOutOfBalance = errors.New("accounting: debit and credit totals differ")
)

// Kind is the closed set of failure outcomes exposed by the ledger core.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindPeriodClosed
	KindNoOpenPeriod
	KindAlreadyClosed
	KindInvalidState
	KindConflict
	KindNotFound
	KindTransient
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindPeriodClosed:
		return "period_closed"
	case KindNoOpenPeriod:
		return "no_open_period"
	case KindAlreadyClosed:
		return "already_closed"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// KindOf classifies err. Order matters: PeriodClosed wraps NoOpenPeriod on the
// voucher path and must win.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrPeriodClosed):
		return KindPeriodClosed
	case errors.Is(err, ErrNoOpenPeriod):
		return KindNoOpenPeriod
	case errors.Is(err, ErrAlreadyClosed):
		return KindAlreadyClosed
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNoLines),
		errors.Is(err, ErrNonPositiveAmount),
		errors.Is(err, ErrAccountNotPostable),
		errors.Is(err, ErrPeriodOverlap):
		return KindValidation
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}
