package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type stubTrialBalancer struct {
	tb   reports.TrialBalance
	err  error
	reqs []reports.TrialBalanceRequest
}

func (s *stubTrialBalancer) TrialBalance(ctx context.Context, req reports.TrialBalanceRequest) (reports.TrialBalance, error) {
	s.reqs = append(s.reqs, req)
	return s.tb, s.err
}

func newIntegrityJob(tb *stubTrialBalancer) (*IntegrityJob, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewIntegrityJob(tb, slog.New(slog.NewTextHandler(io.Discard, nil)), jobmetrics.NewMetrics(reg)), reg
}

func TestIntegrityJobPassesRangeToReports(t *testing.T) {
	stub := &stubTrialBalancer{}
	job, reg := newIntegrityJob(stub)
	task, err := NewIntegrityTask(IntegrityPayload{StartDate: "2024-01-01", EndDate: "2024-01-31"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, stub.reqs, 1)
	require.NotNil(t, stub.reqs[0].Start)
	require.NotNil(t, stub.reqs[0].End)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *stub.reqs[0].End)

	count, err := testutil.GatherAndCount(reg, "ledger_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIntegrityJobAcceptsEmptyPayload(t *testing.T) {
	stub := &stubTrialBalancer{}
	job, _ := newIntegrityJob(stub)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil)))
	require.Len(t, stub.reqs, 1)
	assert.Nil(t, stub.reqs[0].Start)
	assert.Nil(t, stub.reqs[0].End)
}

func TestIntegrityJobSkipsRetryOnBadPayload(t *testing.T) {
	job, _ := newIntegrityJob(&stubTrialBalancer{})

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewIntegrityTask(IntegrityPayload{StartDate: "January"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestIntegrityJobCountsImbalances(t *testing.T) {
	tb := reports.TrialBalance{Totals: reports.Balances{
		OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero,
		PeriodDebit: decimal.NewFromInt(10), PeriodCredit: decimal.Zero,
		TotalDebit: decimal.NewFromInt(10), TotalCredit: decimal.Zero,
		ClosingDebit: decimal.NewFromInt(10), ClosingCredit: decimal.Zero,
	}}
	stub := &stubTrialBalancer{tb: tb, err: tb.Verify()}
	job, reg := newIntegrityJob(stub)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil))
	require.ErrorIs(t, err, shared.ErrOutOfBalance)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	count, err := testutil.GatherAndCount(reg, "ledger_trial_balance_imbalances_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	count, err = testutil.GatherAndCount(reg, "ledger_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIntegrityJobRetriesSourceFailures(t *testing.T) {
	stub := &stubTrialBalancer{err: errors.New("connection refused")}
	job, _ := newIntegrityJob(stub)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"archived":0}`, rec.Body.String())
}
