package cms

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-cms/repository"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.TransactionManager
	Validate() error
	Users() Users
	Categories() repository.Repository[*Category]
	Posts() repository.Repository[*Post]
}

func NewCategoriesRepository(db *bun.DB, opts ...repository.Option) repository.Repository[*Category] {
	handlers := repository.ModelHandlers[*Category]{
		NewRecord: func() *Category {
			return &Category{}
		},
		GetID: func(record *Category) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Category, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
		Touch: func(record *Category, now time.Time, created bool) {
			record.touch(now, created)
		},
		UpdatedAtColumn: "date_updated",
	}
	return repository.NewRepository(db, handlers, opts...)
}

func NewPostsRepository(db *bun.DB, opts ...repository.Option) repository.Repository[*Post] {
	handlers := repository.ModelHandlers[*Post]{
		NewRecord: func() *Post {
			return &Post{}
		},
		GetID: func(record *Post) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Post, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
		Touch: func(record *Post, now time.Time, created bool) {
			record.touch(now, created)
		},
		UpdatedAtColumn: "date_updated",
	}
	return repository.NewRepository(db, handlers, opts...)
}

type mngr struct {
	db         *bun.DB
	users      Users
	categories repository.Repository[*Category]
	posts      repository.Repository[*Post]
}

func NewRepositoryManager(db *bun.DB, opts ...repository.Option) RepositoryManager {
	return &mngr{
		db:         db,
		users:      NewUsersRepository(db, opts...),
		categories: NewCategoriesRepository(db, opts...),
		posts:      NewPostsRepository(db, opts...),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.categories == nil {
		return errors.New("repository categories should be initialized")
	}

	if m.posts == nil {
		return errors.New("repository posts should be initialized")
	}

	return nil
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return repository.MapError(ctx.Err())
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Categories() repository.Repository[*Category] {
	return m.categories
}

func (m mngr) Posts() repository.Repository[*Post] {
	return m.posts
}

// whereEq filters on one column of the queried model
func whereEq(column string, value any) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(column), value)
	}
}

// whereNot excludes one record by id
func whereNot(id uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if id == uuid.Nil {
			return q
		}
		return q.Where("?TableAlias.id != ?", id)
	}
}
