package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// TrialBalancer builds the trial balance the integrity check inspects.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, req reports.TrialBalanceRequest) (reports.TrialBalance, error)
}

// IntegrityJob verifies that posted vouchers still produce a balanced trial
// balance over the requested range.
type IntegrityJob struct {
	Reports TrialBalancer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrityJob initialises the integrity handler.
func NewIntegrityJob(tb TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Reports: tb, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity check. An unbalanced ledger is not retried:
// rerunning the same projection cannot fix it.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("ledger integrity: %w: %w", err, asynq.SkipRetry)
		}
	}
	start, end, err := payload.dates()
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	began := time.Now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("start_date", payload.StartDate),
		slog.String("end_date", payload.EndDate),
	)

	tb, err := j.Reports.TrialBalance(ctx, reports.TrialBalanceRequest{
		Range:              reports.Range{Start: start, End: end},
		IncludeZeroBalance: false,
	})
	switch {
	case errors.Is(err, shared.ErrOutOfBalance):
		cols := tb.Imbalances()
		for _, col := range cols {
			j.metrics().AddImbalance(col)
		}
		logger.Error("trial balance out of balance",
			slog.String("columns", strings.Join(cols, ",")),
			slog.String("closing_debit", tb.Totals.ClosingDebit.String()),
			slog.String("closing_credit", tb.Totals.ClosingCredit.String()),
		)
		resultErr = fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		return resultErr
	case err != nil:
		logger.Error("build trial balance", slog.Any("error", err))
		resultErr = err
		return resultErr
	}

	logger.Info("ledger integrity verified",
		slog.Int("roots", len(tb.Roots)),
		slog.String("closing_total", tb.Totals.ClosingDebit.String()),
		slog.Duration("duration", time.Since(began)),
	)
	return nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
