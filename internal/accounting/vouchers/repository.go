package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/attachments"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	coreshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TxRepository exposes transactional voucher persistence. Save replaces the
// whole aggregate and succeeds only while the stored row is still a draft at
// expectedVersion.
type TxRepository interface {
	Load(ctx context.Context, id int64) (Voucher, error)
	Insert(ctx context.Context, v Voucher) (Voucher, error)
	Save(ctx context.Context, v Voucher, expectedVersion int64) (Voucher, error)
	Delete(ctx context.Context, id, expectedVersion int64) error
	InsertAttachments(ctx context.Context, voucherID int64, atts []attachments.Attachment) error
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const voucherColumns = `id, kind, voucher_date, reference, account_id, total_amount, notes, status,
created_by, created_at, updated_at, posted_at, posted_by, version`

// Repository provides pgx backed voucher persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads a voucher with lines and attachments.
func (r *Repository) Get(ctx context.Context, id int64) (Voucher, error) {
	v, err := loadAggregate(ctx, r.pool, id)
	return v, db.Classify(err)
}

// List returns voucher headers matching filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("voucher_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("voucher_date <= $%d", *filter.To)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers`+clause, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	args = append(args, filter.PerPage, coreshared.NewPagination(filter.Page, filter.PerPage, total).Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM vouchers%s
ORDER BY voucher_date DESC, id DESC LIMIT $%d OFFSET $%d`, voucherColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, db.Classify(rows.Err())
}

func (r *txRepository) Load(ctx context.Context, id int64) (Voucher, error) {
	return loadAggregate(ctx, r.tx, id)
}

func (r *txRepository) Insert(ctx context.Context, v Voucher) (Voucher, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO vouchers (kind, voucher_date, reference, account_id, total_amount, notes, status, created_by, created_at, updated_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, 1)
RETURNING `+voucherColumns, v.Kind, v.Date, v.Reference, v.AccountID, v.TotalAmount, v.Notes, v.Status, v.CreatedBy, v.CreatedAt)
	inserted, err := scanVoucher(row)
	if err != nil {
		return Voucher{}, err
	}
	lines, err := r.writeLines(ctx, inserted.ID, v.Lines)
	if err != nil {
		return Voucher{}, err
	}
	inserted.Lines = lines
	return inserted, nil
}

func (r *txRepository) Save(ctx context.Context, v Voucher, expectedVersion int64) (Voucher, error) {
	row := r.tx.QueryRow(ctx, `UPDATE vouchers SET voucher_date = $3, reference = $4, account_id = $5, total_amount = $6,
notes = $7, status = $8, posted_at = $9, posted_by = $10, updated_at = $11, version = version + 1
WHERE id = $1 AND version = $2 AND status = 'DRAFT'
RETURNING `+voucherColumns, v.ID, expectedVersion, v.Date, v.Reference, v.AccountID, v.TotalAmount,
		v.Notes, v.Status, v.PostedAt, v.PostedBy, v.UpdatedAt)
	saved, err := scanVoucher(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, fmt.Errorf("%w: voucher %d changed since version %d", shared.ErrConflict, v.ID, expectedVersion)
	}
	if err != nil {
		return Voucher{}, err
	}
	if v.Status == StatusDraft {
		lines, err := r.writeLines(ctx, v.ID, v.Lines)
		if err != nil {
			return Voucher{}, err
		}
		saved.Lines = lines
	} else {
		saved.Lines = v.Lines
	}
	saved.Attachments = v.Attachments
	return saved, nil
}

func (r *txRepository) Delete(ctx context.Context, id, expectedVersion int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM voucher_attachments WHERE voucher_id = $1`, id); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM voucher_lines WHERE voucher_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM vouchers WHERE id = $1 AND version = $2 AND status = 'DRAFT'`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher %d changed since version %d", shared.ErrConflict, id, expectedVersion)
	}
	return nil
}

func (r *txRepository) InsertAttachments(ctx context.Context, voucherID int64, atts []attachments.Attachment) error {
	if len(atts) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(atts))
	for _, a := range atts {
		rows = append(rows, []any{a.ID, voucherID, a.FileName, a.ContentType, a.ByteSize, a.Checksum, a.BlobRef, a.CreatedAt})
	}
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"voucher_attachments"},
		[]string{"id", "voucher_id", "file_name", "content_type", "byte_size", "checksum", "blob_ref", "created_at"},
		pgx.CopyFromRows(rows))
	return err
}

// writeLines replaces the stored line set with lines, keeping ids of lines
// that already exist and assigning fresh ids to new ones.
func (r *txRepository) writeLines(ctx context.Context, voucherID int64, lines []Line) ([]Line, error) {
	keep := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.ID != 0 {
			keep = append(keep, l.ID)
		}
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM voucher_lines WHERE voucher_id = $1 AND NOT (id = ANY($2))`, voucherID, keep); err != nil {
		return nil, err
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		var id any
		if l.ID != 0 {
			id = l.ID
		}
		batch.Queue(`INSERT INTO voucher_lines (id, voucher_id, position, account_id, amount, description, cost_center_id)
VALUES (COALESCE($1, nextval('voucher_lines_id_seq')), $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position, account_id = EXCLUDED.account_id,
amount = EXCLUDED.amount, description = EXCLUDED.description, cost_center_id = EXCLUDED.cost_center_id
RETURNING id`, id, voucherID, l.Position, l.AccountID, l.Amount, l.Description, l.CostCenterID)
	}
	results := r.tx.SendBatch(ctx, batch)
	defer results.Close()
	out := make([]Line, len(lines))
	for i, l := range lines {
		if err := results.QueryRow().Scan(&l.ID); err != nil {
			return nil, err
		}
		l.VoucherID = voucherID
		out[i] = l
	}
	return out, nil
}

func loadAggregate(ctx context.Context, q querier, id int64) (Voucher, error) {
	v, err := scanVoucher(q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id))
	if err != nil {
		return Voucher{}, db.Classify(err)
	}
	rows, err := q.Query(ctx, `SELECT id, voucher_id, position, account_id, amount, description, cost_center_id
FROM voucher_lines WHERE voucher_id = $1 ORDER BY position`, id)
	if err != nil {
		return Voucher{}, err
	}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.VoucherID, &l.Position, &l.AccountID, &l.Amount, &l.Description, &l.CostCenterID); err != nil {
			rows.Close()
			return Voucher{}, err
		}
		v.Lines = append(v.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Voucher{}, err
	}
	atts, err := q.Query(ctx, `SELECT id, voucher_id, file_name, content_type, byte_size, checksum, blob_ref, created_at
FROM voucher_attachments WHERE voucher_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return Voucher{}, err
	}
	defer atts.Close()
	for atts.Next() {
		var a attachments.Attachment
		if err := atts.Scan(&a.ID, &a.VoucherID, &a.FileName, &a.ContentType, &a.ByteSize, &a.Checksum, &a.BlobRef, &a.CreatedAt); err != nil {
			return Voucher{}, err
		}
		v.Attachments = append(v.Attachments, a)
	}
	return v, atts.Err()
}

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Kind, &v.Date, &v.Reference, &v.AccountID, &v.TotalAmount, &v.Notes, &v.Status,
		&v.CreatedBy, &v.CreatedAt, &v.UpdatedAt, &v.PostedAt, &v.PostedBy, &v.Version)
	return v, err
}
