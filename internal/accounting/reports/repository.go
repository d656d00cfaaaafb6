package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// postingsSQL derives the double entry of posted vouchers: a payment debits
// its line accounts and credits the header account, a receipt the reverse.
const postingsSQL = `
WITH posted AS (
	SELECT id, kind, reference, account_id, voucher_date, total_amount
	FROM vouchers
	WHERE status = 'POSTED' AND ($1::date IS NULL OR voucher_date <= $1::date)
)
SELECT p.id, p.kind, p.reference, l.id, l.position, l.account_id, p.voucher_date, l.description,
	CASE WHEN p.kind = 'PAYMENT' THEN l.amount ELSE 0 END,
	CASE WHEN p.kind = 'RECEIPT' THEN l.amount ELSE 0 END
FROM posted p
JOIN voucher_lines l ON l.voucher_id = p.id
WHERE ($2::bigint IS NULL OR l.account_id = $2::bigint)
UNION ALL
SELECT p.id, p.kind, p.reference, 0, 0, p.account_id, p.voucher_date, '',
	CASE WHEN p.kind = 'RECEIPT' THEN p.total_amount ELSE 0 END,
	CASE WHEN p.kind = 'PAYMENT' THEN p.total_amount ELSE 0 END
FROM posted p
WHERE ($2::bigint IS NULL OR p.account_id = $2::bigint)
ORDER BY 7, 1, 5`

// Repository reads postings from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Postings returns every posting dated on or before until.
func (r *Repository) Postings(ctx context.Context, until *time.Time) ([]Posting, error) {
	return r.query(ctx, until, nil)
}

// AccountPostings returns the postings of one account dated on or before until.
func (r *Repository) AccountPostings(ctx context.Context, accountID int64, until *time.Time) ([]Posting, error) {
	return r.query(ctx, until, &accountID)
}

func (r *Repository) query(ctx context.Context, until *time.Time, accountID *int64) ([]Posting, error) {
	rows, err := r.pool.Query(ctx, postingsSQL, until, accountID)
	if err != nil {
		return nil, db.Classify(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Posting, error) {
		var p Posting
		err := row.Scan(&p.VoucherID, &p.VoucherKind, &p.Reference, &p.LineID, &p.Position,
			&p.AccountID, &p.Date, &p.Description, &p.Debit, &p.Credit)
		return p, err
	})
	return out, db.Classify(err)
}
