package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads periods and opens write transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListCovering(ctx context.Context, date time.Time) ([]Period, error)
	Get(ctx context.Context, id int64) (Period, error)
	List(ctx context.Context, limit, offset int) ([]Period, int, error)
}

// TxRepository exposes transactional period mutations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Period, error)
	Overlapping(ctx context.Context, start, end time.Time, excludeID int64) ([]Period, error)
	Insert(ctx context.Context, in Input) (Period, error)
	Update(ctx context.Context, id int64, in Input) (Period, error)
	Delete(ctx context.Context, id int64) error
	CloseIfOpen(ctx context.Context, id int64, actor string, at time.Time) (Period, bool, error)
}

const periodColumns = `id, name, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListCovering returns every period containing date, earliest start first.
func (r *pgRepository) ListCovering(ctx context.Context, date time.Time) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+`
FROM periods WHERE $1::date BETWEEN start_date AND end_date ORDER BY start_date, id`, DateOf(date))
	if err != nil {
		return nil, db.Classify(err)
	}
	return collect(rows)
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Period, error) {
	return scanOne(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1`, id))
}

func (r *pgRepository) List(ctx context.Context, limit, offset int) ([]Period, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM periods`).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+`
FROM periods ORDER BY start_date DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	periods, err := collect(rows)
	return periods, total, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	return scanOne(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) Overlapping(ctx context.Context, start, end time.Time, excludeID int64) ([]Period, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+`
FROM periods WHERE start_date <= $2 AND end_date >= $1 AND id <> $3 ORDER BY start_date`, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *txRepository) Insert(ctx context.Context, in Input) (Period, error) {
	return scanOne(r.tx.QueryRow(ctx, `INSERT INTO periods (name, start_date, end_date, status)
VALUES ($1, $2, $3, 'OPEN') RETURNING `+periodColumns, in.Name, in.StartDate, in.EndDate))
}

func (r *txRepository) Update(ctx context.Context, id int64, in Input) (Period, error) {
	return scanOne(r.tx.QueryRow(ctx, `UPDATE periods SET name = $2, start_date = $3, end_date = $4, updated_at = NOW()
WHERE id = $1 AND status = 'OPEN' RETURNING `+periodColumns, id, in.Name, in.StartDate, in.EndDate))
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM periods WHERE id = $1 AND status = 'OPEN'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: period %d", shared.ErrInvalidState, id)
	}
	return nil
}

// CloseIfOpen flips the status conditionally; ok is false when another
// writer closed the period first.
func (r *txRepository) CloseIfOpen(ctx context.Context, id int64, actor string, at time.Time) (Period, bool, error) {
	p, err := scanOne(r.tx.QueryRow(ctx, `UPDATE periods SET status = 'CLOSED', closed_at = $2, closed_by = $3, updated_at = $2
WHERE id = $1 AND status = 'OPEN' RETURNING `+periodColumns, id, at, actor))
	if errors.Is(err, shared.ErrNotFound) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, err
	}
	return p, true, nil
}

func scanOne(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Period{}, db.Classify(err)
	}
	return p, nil
}

func collect(rows pgx.Rows) ([]Period, error) {
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
