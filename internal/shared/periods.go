package shared

import "errors"

// Period statuses reused outside accounting module.
const (
	PeriodStatusOpen   = "OPEN"
	PeriodStatusClosed = "CLOSED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = errors.New("period transition invalid")

// ValidatePeriodTransition checks transitions according to policy. Closing is
// a soft, one-way operation: a closed period never reopens.
func ValidatePeriodTransition(current, target string) error {
	if current == PeriodStatusOpen && target == PeriodStatusClosed {
		return nil
	}
	return ErrInvalidPeriodTransition
}
