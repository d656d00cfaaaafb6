package accounts

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Service exposes the account catalog to the rest of the ledger.
type Service struct {
	repo Repository
}

// NewService constructs the catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Catalog loads accounts and cost centers concurrently and builds the arena.
// The chart is owned elsewhere, so every call reflects the current master data.
func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	var (
		accounts []Account
		centers  []CostCenter
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.repo.ListAccounts(gctx)
		if err != nil {
			return fmt.Errorf("accounts: list accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		centers, err = s.repo.ListCostCenters(gctx)
		if err != nil {
			return fmt.Errorf("accounts: list cost centers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewCatalog(accounts, centers)
}

// Search returns accounts matching term, optionally limited to postable leaves.
func (s *Service) Search(ctx context.Context, term string, postableOnly bool) ([]Account, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Search(term, postableOnly), nil
}

// CostCenters lists every cost center ordered by code.
func (s *Service) CostCenters(ctx context.Context) ([]CostCenter, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.CostCenters(), nil
}
