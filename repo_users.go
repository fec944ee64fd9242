package cms

import (
	"context"
	"time"

	"github.com/goliatone/go-cms/repository"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user repository
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	// GetOrCreate inserts record unless a user with the same email exists
	// and returns whichever row is stored.
	GetOrCreate(ctx context.Context, record *User) (*User, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	now func() time.Time
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB, opts ...repository.Option) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
		Touch: func(u *User, now time.Time, created bool) {
			u.touch(now, created)
		},
		UpdatedAtColumn: "date_updated",
	}, opts...)

	return &users{
		Repository: repo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.DB(), email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.GetByTx(ctx, tx, "email", email)
}

func (a *users) GetOrCreate(ctx context.Context, record *User) (*User, error) {
	return a.GetOrCreateTx(ctx, a.DB(), record)
}

func (a *users) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.touch(a.now(), true)

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, repository.MapError(err)
	}

	return a.GetByEmailTx(ctx, tx, record.Email)
}
