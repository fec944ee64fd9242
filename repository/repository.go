package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SelectCriteria narrows a select query, e.g. a WHERE clause or a relation
type SelectCriteria func(*bun.SelectQuery) *bun.SelectQuery

// ModelHandlers teach the generic repository how to deal with a model
type ModelHandlers[T any] struct {
	NewRecord func() T
	GetID     func(T) uuid.UUID
	SetID     func(T, uuid.UUID)
	// GetIdentifier returns the secondary lookup column, e.g. "slug"
	GetIdentifier func() string
	// Touch stamps timestamps. created is true on insert.
	Touch func(record T, now time.Time, created bool)
	// UpdatedAtColumn is always written by Update when set
	UpdatedAtColumn string
}

// TransactionManager runs a function inside a database transaction
type TransactionManager interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// Repository is the generic CRUD + pagination contract. Every method has a
// Tx variant that runs against the given bun.IDB, the plain variant uses
// the repository database and autocommits.
type Repository[T any] interface {
	TransactionManager

	Handlers() ModelHandlers[T]
	DB() bun.IDB

	Get(ctx context.Context, id uuid.UUID, criteria ...SelectCriteria) (T, error)
	GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, criteria ...SelectCriteria) (T, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...SelectCriteria) (T, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...SelectCriteria) (T, error)
	GetBy(ctx context.Context, column string, value any, criteria ...SelectCriteria) (T, error)
	GetByTx(ctx context.Context, tx bun.IDB, column string, value any, criteria ...SelectCriteria) (T, error)

	Exists(ctx context.Context, criteria ...SelectCriteria) (bool, error)
	ExistsTx(ctx context.Context, tx bun.IDB, criteria ...SelectCriteria) (bool, error)
	Count(ctx context.Context, criteria ...SelectCriteria) (int, error)
	CountTx(ctx context.Context, tx bun.IDB, criteria ...SelectCriteria) (int, error)
	Paginate(ctx context.Context, req PageRequest, criteria ...SelectCriteria) ([]T, int, error)
	PaginateTx(ctx context.Context, tx bun.IDB, req PageRequest, criteria ...SelectCriteria) ([]T, int, error)

	Create(ctx context.Context, record T) (T, error)
	CreateTx(ctx context.Context, tx bun.IDB, record T) (T, error)
	Update(ctx context.Context, record T, columns ...string) (T, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record T, columns ...string) (T, error)
	Delete(ctx context.Context, id uuid.UUID) (T, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (T, error)
}

type repo[T any] struct {
	db       *bun.DB
	handlers ModelHandlers[T]
	now      func() time.Time
}

// Option configures a repository
type Option func(*repoOptions)

type repoOptions struct {
	now func() time.Time
}

// WithClock overrides the clock used to stamp timestamps
func WithClock(now func() time.Time) Option {
	return func(o *repoOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewRepository returns a bun backed Repository for T
func NewRepository[T any](db *bun.DB, handlers ModelHandlers[T], opts ...Option) Repository[T] {
	o := &repoOptions{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return &repo[T]{
		db:       db,
		handlers: handlers,
		now:      o.now,
	}
}

func (r *repo[T]) Handlers() ModelHandlers[T] {
	return r.handlers
}

func (r *repo[T]) DB() bun.IDB {
	return r.db
}

func (r *repo[T]) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return MapError(ctx.Err())
	default:
		return r.db.RunInTx(ctx, opts, f)
	}
}

func (r *repo[T]) Get(ctx context.Context, id uuid.UUID, criteria ...SelectCriteria) (T, error) {
	return r.GetTx(ctx, r.db, id, criteria...)
}

func (r *repo[T]) GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, criteria ...SelectCriteria) (T, error) {
	return r.GetByTx(ctx, tx, "id", id, criteria...)
}

func (r *repo[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...SelectCriteria) (T, error) {
	return r.GetByIdentifierTx(ctx, r.db, identifier, criteria...)
}

func (r *repo[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...SelectCriteria) (T, error) {
	column := "id"
	if r.handlers.GetIdentifier != nil {
		column = r.handlers.GetIdentifier()
	}
	return r.GetByTx(ctx, tx, column, identifier, criteria...)
}

func (r *repo[T]) GetBy(ctx context.Context, column string, value any, criteria ...SelectCriteria) (T, error) {
	return r.GetByTx(ctx, r.db, column, value, criteria...)
}

func (r *repo[T]) GetByTx(ctx context.Context, tx bun.IDB, column string, value any, criteria ...SelectCriteria) (T, error) {
	record := r.handlers.NewRecord()

	q := tx.NewSelect().Model(record)
	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		var zero T
		if IsRecordNotFound(err) {
			return zero, NewRecordNotFound().WithMetadata(map[string]any{
				column: value,
			})
		}
		return zero, MapError(err)
	}

	return record, nil
}

func (r *repo[T]) Exists(ctx context.Context, criteria ...SelectCriteria) (bool, error) {
	return r.ExistsTx(ctx, r.db, criteria...)
}

func (r *repo[T]) ExistsTx(ctx context.Context, tx bun.IDB, criteria ...SelectCriteria) (bool, error) {
	q := tx.NewSelect().Model(r.handlers.NewRecord())
	for _, c := range criteria {
		q.Apply(c)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

func (r *repo[T]) Count(ctx context.Context, criteria ...SelectCriteria) (int, error) {
	return r.CountTx(ctx, r.db, criteria...)
}

func (r *repo[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...SelectCriteria) (int, error) {
	q := tx.NewSelect().Model(r.handlers.NewRecord())
	for _, c := range criteria {
		q.Apply(c)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

func (r *repo[T]) Paginate(ctx context.Context, req PageRequest, criteria ...SelectCriteria) ([]T, int, error) {
	return r.PaginateTx(ctx, r.db, req, criteria...)
}

// PaginateTx returns one page of records and the number of records that
// match criteria. The total ignores page boundaries but not filters.
func (r *repo[T]) PaginateTx(ctx context.Context, tx bun.IDB, req PageRequest, criteria ...SelectCriteria) ([]T, int, error) {
	req = req.Normalize()

	records := make([]T, 0, req.Size)
	q := tx.NewSelect().Model(&records)
	for _, c := range criteria {
		q.Apply(c)
	}

	q.OrderExpr(fmt.Sprintf("?TableAlias.? %s", req.direction()), bun.Ident(req.OrderBy)).
		Limit(req.Size).
		Offset(req.Offset())

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		if IsRecordNotFound(err) {
			return []T{}, total, nil
		}
		return nil, 0, MapError(err)
	}

	return records, total, nil
}

func (r *repo[T]) Create(ctx context.Context, record T) (T, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *repo[T]) CreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	var zero T

	id := r.handlers.GetID(record)
	if id == uuid.Nil {
		id = uuid.New()
		r.handlers.SetID(record, id)
	}

	if r.handlers.Touch != nil {
		r.handlers.Touch(record, r.now(), true)
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return zero, MapError(err)
	}

	return r.GetTx(ctx, tx, id)
}

func (r *repo[T]) Update(ctx context.Context, record T, columns ...string) (T, error) {
	return r.UpdateTx(ctx, r.db, record, columns...)
}

// UpdateTx writes the given columns, or every column when none are given.
func (r *repo[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, columns ...string) (T, error) {
	var zero T

	id := r.handlers.GetID(record)
	if id == uuid.Nil {
		return zero, goerrors.New("cannot update record without id", goerrors.CategoryBadInput)
	}

	if r.handlers.Touch != nil {
		r.handlers.Touch(record, r.now(), false)
	}

	q := tx.NewUpdate().Model(record).WherePK()
	if len(columns) > 0 {
		if r.handlers.UpdatedAtColumn != "" {
			columns = appendMissing(columns, r.handlers.UpdatedAtColumn)
		}
		q.Column(columns...)
	} else {
		q.ExcludeColumn("id")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return zero, MapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, NewRecordNotFound().WithMetadata(map[string]any{"id": id})
	}

	return r.GetTx(ctx, tx, id)
}

func (r *repo[T]) Delete(ctx context.Context, id uuid.UUID) (T, error) {
	return r.DeleteTx(ctx, r.db, id)
}

// DeleteTx removes the record and returns what it looked like before.
func (r *repo[T]) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (T, error) {
	var zero T

	record, err := r.GetTx(ctx, tx, id)
	if err != nil {
		return zero, err
	}

	if _, err := tx.NewDelete().Model(record).WherePK().Exec(ctx); err != nil {
		return zero, MapError(err)
	}

	return record, nil
}

func appendMissing(columns []string, column string) []string {
	for _, c := range columns {
		if c == column {
			return columns
		}
	}
	return append(columns, column)
}
