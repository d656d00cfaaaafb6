package reports

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PostingSource reads the double entry of posted vouchers. A nil until
// returns every posting.
type PostingSource interface {
	Postings(ctx context.Context, until *time.Time) ([]Posting, error)
	AccountPostings(ctx context.Context, accountID int64, until *time.Time) ([]Posting, error)
}

// CatalogSource supplies the current chart of accounts.
type CatalogSource interface {
	Catalog(ctx context.Context) (*accounts.Catalog, error)
}

// BuildRecorder counts trial balance build outcomes.
type BuildRecorder interface {
	ReportBuild(outcome string)
}

// Service computes the read-side projections over posted vouchers.
type Service struct {
	catalog        CatalogSource
	postings       PostingSource
	cache          *Cache
	builds         BuildRecorder
	group          singleflight.Group
	defaultPerPage int
}

// NewService constructs the reports service. cache may be nil.
func NewService(catalog CatalogSource, postings PostingSource, cache *Cache) *Service {
	return &Service{catalog: catalog, postings: postings, cache: cache, defaultPerPage: DefaultStatementPerPage}
}

// WithBuilds registers a build outcome counter.
func (s *Service) WithBuilds(rec BuildRecorder) { s.builds = rec }

// WithDefaultPerPage overrides the statement page size used when none is requested.
func (s *Service) WithDefaultPerPage(n int) {
	if n > 0 && n <= MaxStatementPerPage {
		s.defaultPerPage = n
	}
}

// Invalidate drops every cached projection. Called after each post.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// TrialBalance returns the rollup for req. When the grand totals do not
// balance the tree is still returned together with shared.ErrOutOfBalance.
func (s *Service) TrialBalance(ctx context.Context, req TrialBalanceRequest) (TrialBalance, error) {
	if err := validateRange(req.Range); err != nil {
		return TrialBalance{}, err
	}
	start, end := req.key()
	key, err := s.cache.BuildKey(ctx, "tb", start, end, strconv.FormatBool(req.IncludeZeroBalance))
	if err != nil {
		key = ""
	}

	var tb TrialBalance
	if key == "" {
		tb, err = s.buildTrialBalance(ctx, req)
	} else {
		tb, err = s.fetchTrialBalance(ctx, key, req)
	}
	if err != nil {
		s.record("error")
		return TrialBalance{}, err
	}
	if err := tb.Verify(); err != nil {
		s.record("unbalanced")
		return tb, err
	}
	return tb, nil
}

func (s *Service) fetchTrialBalance(ctx context.Context, key string, req TrialBalanceRequest) (TrialBalance, error) {
	val, err, dup := s.singleflightBuild(ctx, key, func(ctx context.Context) (any, error) {
		var tb TrialBalance
		hit, err := s.cache.FetchJSON(ctx, key, &tb, func(ctx context.Context) (any, error) {
			return s.buildTrialBalance(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		if hit {
			s.record("hit")
		}
		return tb, nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	if dup {
		s.record("shared")
	}
	return val.(TrialBalance), nil
}

func (s *Service) buildTrialBalance(ctx context.Context, req TrialBalanceRequest) (TrialBalance, error) {
	var (
		cat      *accounts.Catalog
		postings []Posting
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cat, err = s.catalog.Catalog(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		postings, err = s.postings.Postings(gctx, req.End)
		if err != nil {
			return fmt.Errorf("reports: load postings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return TrialBalance{}, err
	}
	s.record("built")
	return BuildTrialBalance(cat, postings, req), nil
}

// Statement returns one page of the running-balance ledger of an account.
func (s *Service) Statement(ctx context.Context, req StatementRequest) (Statement, error) {
	if req.AccountID <= 0 {
		return Statement{}, fmt.Errorf("%w: account_id required", shared.ErrValidation)
	}
	if err := validateRange(req.Range); err != nil {
		return Statement{}, err
	}
	req.PerPage = coreshared.ClampPerPage(req.PerPage, s.defaultPerPage, MaxStatementPerPage)

	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return Statement{}, err
	}
	acc, ok := cat.Get(req.AccountID)
	if !ok {
		return Statement{}, fmt.Errorf("%w: account %d", shared.ErrNotFound, req.AccountID)
	}
	postings, err := s.postings.AccountPostings(ctx, acc.ID, req.End)
	if err != nil {
		return Statement{}, fmt.Errorf("reports: load account postings: %w", err)
	}
	return BuildStatement(acc, postings, req), nil
}

func (s *Service) record(outcome string) {
	if s.builds != nil {
		s.builds.ReportBuild(outcome)
	}
}

func validateRange(r Range) error {
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return fmt.Errorf("%w: end_date before start_date", shared.ErrValidation)
	}
	return nil
}
