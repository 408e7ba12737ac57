package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/repository"
)

const buyerCols = `id, owner_id, full_name, email, phone, city, property_type, bhk, purpose,
budget_min, budget_max, timeline, source, status, notes, tags, created_at, updated_at`

// BuyerRepo implements BuyerRepository using PostgreSQL.
type BuyerRepo struct{ db *DB }

// NewBuyerRepo constructs a buyer repository.
func NewBuyerRepo(db *DB) *BuyerRepo { return &BuyerRepo{db: db} }

var _ repository.BuyerRepository = (*BuyerRepo)(nil)

// InTx runs fn in one transaction; commit happens only if fn succeeds.
func (r *BuyerRepo) InTx(ctx context.Context, fn func(tx repository.BuyerTx) error) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageErr("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = storageErr("commit", e)
		}
	}()
	return fn(&buyerTx{q: tx})
}

// Get returns a buyer by id outside any write transaction.
func (r *BuyerRepo) Get(ctx context.Context, id uuid.UUID) (*model.Buyer, error) {
	return getBuyer(ctx, r.db.Pool, id)
}

// List reads the count and the page inside one read-only repeatable-read transaction.
func (r *BuyerRepo) List(
	ctx context.Context, f model.BuyerFilter, offset, limit int,
) (out []model.Buyer, total int, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, storageErr("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = storageErr("commit", e)
		}
	}()

	where, args := filterClause(f)
	if err = tx.QueryRow(ctx, `SELECT count(*) FROM buyers`+where, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("count buyers", err)
	}
	q := fmt.Sprintf(`SELECT %s FROM buyers%s ORDER BY updated_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		buyerCols, where, len(args)+1, len(args)+2)
	out, err = queryBuyers(ctx, tx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListAll returns every matching buyer, newest first.
func (r *BuyerRepo) ListAll(ctx context.Context, f model.BuyerFilter) ([]model.Buyer, error) {
	where, args := filterClause(f)
	q := fmt.Sprintf(`SELECT %s FROM buyers%s ORDER BY updated_at DESC, id DESC`, buyerCols, where)
	return queryBuyers(ctx, r.db.Pool, q, args...)
}

// History returns entries for a buyer, newest first.
func (r *BuyerRepo) History(ctx context.Context, buyerID uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	q := `
SELECT id, buyer_id, changed_by, changed_at, kind, diff
FROM buyer_history WHERE buyer_id=$1
ORDER BY changed_at DESC, id DESC`
	args := []any{buyerID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query history", err)
	}
	defer rows.Close()

	out := []model.HistoryEntry{}
	for rows.Next() {
		var (
			h    model.HistoryEntry
			kind string
			raw  []byte
		)
		if err := rows.Scan(&h.ID, &h.BuyerID, &h.ChangedBy, &h.ChangedAt, &kind, &raw); err != nil {
			return nil, storageErr("scan history", err)
		}
		h.Kind = model.HistoryKind(kind)
		h.Diff = raw
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate history", err)
	}
	return out, nil
}

type buyerTx struct{ q querier }

func (t *buyerTx) Get(ctx context.Context, id uuid.UUID) (*model.Buyer, error) {
	return getBuyer(ctx, t.q, id)
}

func (t *buyerTx) Insert(ctx context.Context, b model.Buyer) error {
	const q = `
INSERT INTO buyers (` + buyerCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	args, err := buyerArgs(b)
	if err != nil {
		return err
	}
	if _, err := t.q.Exec(ctx, q, append(args, b.CreatedAt, b.UpdatedAt)...); err != nil {
		return storageErr("insert buyer", err)
	}
	return nil
}

func (t *buyerTx) Update(ctx context.Context, b model.Buyer, expected time.Time) error {
	const q = `
UPDATE buyers SET owner_id=$2, full_name=$3, email=$4, phone=$5, city=$6, property_type=$7, bhk=$8,
purpose=$9, budget_min=$10, budget_max=$11, timeline=$12, source=$13, status=$14, notes=$15, tags=$16,
updated_at=$17
WHERE id=$1 AND updated_at=$18`
	args, err := buyerArgs(b)
	if err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, q, append(args, b.UpdatedAt, expected)...)
	if err != nil {
		return storageErr("update buyer", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

func (t *buyerTx) Delete(ctx context.Context, id uuid.UUID, expected time.Time) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM buyers WHERE id=$1 AND updated_at=$2`, id, expected)
	if err != nil {
		return storageErr("delete buyer", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

func (t *buyerTx) AppendHistory(ctx context.Context, h model.HistoryEntry) error {
	const q = `
INSERT INTO buyer_history (id, buyer_id, changed_by, changed_at, kind, diff)
VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := t.q.Exec(ctx, q, h.ID, h.BuyerID, h.ChangedBy, h.ChangedAt, string(h.Kind), []byte(h.Diff)); err != nil {
		return storageErr("append history", err)
	}
	return nil
}

func getBuyer(ctx context.Context, q querier, id uuid.UUID) (*model.Buyer, error) {
	row := q.QueryRow(ctx, `SELECT `+buyerCols+` FROM buyers WHERE id=$1`, id)
	b, err := scanBuyer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func queryBuyers(ctx context.Context, q querier, sql string, args ...any) ([]model.Buyer, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("query buyers", err)
	}
	defer rows.Close()

	out := []model.Buyer{}
	for rows.Next() {
		b, err := scanBuyer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate buyers", err)
	}
	return out, nil
}

func scanBuyer(row pgx.Row) (*model.Buyer, error) {
	var (
		b                                                        model.Buyer
		city, propertyType, purpose, timeline, source, status string
		bhk                                                      *string
	)
	err := row.Scan(&b.ID, &b.OwnerID, &b.FullName, &b.Email, &b.Phone, &city, &propertyType, &bhk, &purpose,
		&b.BudgetMin, &b.BudgetMax, &timeline, &source, &status, &b.Notes, &b.Tags, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr("scan buyer", err)
	}
	tl, ok := model.TimelineFromStorage(timeline)
	if !ok {
		return nil, storageErr("scan buyer", fmt.Errorf("unknown timeline code %q", timeline))
	}
	b.City = model.City(city)
	b.PropertyType = model.PropertyType(propertyType)
	b.Purpose = model.Purpose(purpose)
	b.Timeline = tl
	b.Source = model.Source(source)
	b.Status = model.Status(status)
	if bhk != nil {
		v := model.BHK(*bhk)
		b.BHK = &v
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return &b, nil
}

// buyerArgs returns $1..$16 of the buyer column list.
func buyerArgs(b model.Buyer) ([]any, error) {
	tl, ok := b.Timeline.StorageCode()
	if !ok {
		return nil, errs.Invalid("timeline", "unknown timeline %q", b.Timeline)
	}
	var bhk *string
	if b.BHK != nil {
		v := string(*b.BHK)
		bhk = &v
	}
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		b.ID, b.OwnerID, b.FullName, b.Email, b.Phone, string(b.City), string(b.PropertyType), bhk,
		string(b.Purpose), b.BudgetMin, b.BudgetMax, tl, string(b.Source), string(b.Status), b.Notes, tags,
	}, nil
}

// filterClause builds a WHERE clause with positional args starting at $1.
func filterClause(f model.BuyerFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Search != "" {
		pat := "%" + likeEscaper.Replace(f.Search) + "%"
		args = append(args, pat)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d OR phone LIKE $%d)", n, n, n))
	}
	if f.City != "" {
		add("city=$%d", string(f.City))
	}
	if f.PropertyType != "" {
		add("property_type=$%d", string(f.PropertyType))
	}
	if f.Status != "" {
		add("status=$%d", string(f.Status))
	}
	if f.Timeline != "" {
		if code, ok := f.Timeline.StorageCode(); ok {
			add("timeline=$%d", code)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
