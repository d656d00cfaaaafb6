package accounts

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads chart of accounts master data.
type Repository interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	ListCostCenters(ctx context.Context) ([]CostCenter, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a pgx backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name_ar, name_en, parent_id, is_postable, normal_side, is_active, created_at, updated_at
FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		err := rows.Scan(&a.ID, &a.Code, &a.NameAr, &a.NameEn, &a.ParentID, &a.IsPostable, &a.NormalSide, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) ListCostCenters(ctx context.Context) ([]CostCenter, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name FROM cost_centers ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var centers []CostCenter
	for rows.Next() {
		var cc CostCenter
		if err := rows.Scan(&cc.ID, &cc.Code, &cc.Name); err != nil {
			return nil, err
		}
		centers = append(centers, cc)
	}
	return centers, rows.Err()
}
