package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-cms/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type tag struct {
	bun.BaseModel `bun:"table:tags,alias:tg"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	Name        string    `bun:"name,notnull,unique"`
	Slug        string    `bun:"slug,notnull,unique"`
	Group       string    `bun:"grp,notnull"`
	DateCreated time.Time `bun:"date_created,notnull"`
	DateUpdated time.Time `bun:"date_updated,notnull"`
}

func newTagRepository(db *bun.DB, opts ...repository.Option) repository.Repository[*tag] {
	return repository.NewRepository(db, repository.ModelHandlers[*tag]{
		NewRecord: func() *tag { return &tag{} },
		GetID: func(t *tag) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *tag, id uuid.UUID) {
			t.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
		Touch: func(t *tag, now time.Time, created bool) {
			if created {
				t.DateCreated = now
			}
			t.DateUpdated = now
		},
		UpdatedAtColumn: "date_updated",
	}, opts...)
}

func setupTags(t *testing.T) (*bun.DB, repository.Repository[*tag]) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*tag)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return db, newTagRepository(db)
}

func seedTags(t *testing.T, repo repository.Repository[*tag], n int, group func(i int) string) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := repo.Create(context.Background(), &tag{
			Name:  fmt.Sprintf("tag %02d", i),
			Slug:  fmt.Sprintf("tag-%02d", i),
			Group: group(i),
		})
		require.NoError(t, err)
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	_, repo := setupTags(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &tag{Name: "Travel", Slug: "travel", Group: "a"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.DateCreated.IsZero())

	byID, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Travel", byID.Name)

	bySlug, err := repo.GetByIdentifier(ctx, "travel")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)

	byName, err := repo.GetBy(ctx, "name", "Travel")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
}

func TestRepositoryGetMissing(t *testing.T) {
	_, repo := setupTags(t)

	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
	assert.True(t, goerrors.IsNotFound(err))
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	_, repo := setupTags(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &tag{Name: "Travel", Slug: "travel", Group: "a"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &tag{Name: "Other", Slug: "travel", Group: "a"})
	require.Error(t, err)

	column, ok := repository.IsDuplicateKey(err)
	assert.True(t, ok)
	assert.Equal(t, "slug", column)
	assert.True(t, repository.IsDuplicateKeyOn(err, "slug"))
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryConflict))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepositoryUpdateColumns(t *testing.T) {
	db, _ := setupTags(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newTagRepository(db, repository.WithClock(func() time.Time { return clock }))

	created, err := repo.Create(ctx, &tag{Name: "Travel", Slug: "travel", Group: "a"})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	created.Name = "Trips"
	created.Group = "ignored"

	updated, err := repo.Update(ctx, created, "name")
	require.NoError(t, err)
	assert.Equal(t, "Trips", updated.Name)
	assert.Equal(t, "a", updated.Group)
	assert.True(t, updated.DateUpdated.After(updated.DateCreated))

	_, err = repo.Update(ctx, &tag{ID: uuid.New(), Name: "x", Slug: "x", Group: "x"}, "name")
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestRepositoryDeleteReturnsSnapshot(t *testing.T) {
	_, repo := setupTags(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &tag{Name: "Travel", Slug: "travel", Group: "a"})
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Travel", deleted.Name)

	_, err = repo.Get(ctx, created.ID)
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = repo.Delete(ctx, created.ID)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestRepositoryPaginate(t *testing.T) {
	_, repo := setupTags(t)
	ctx := context.Background()

	seedTags(t, repo, 25, func(i int) string {
		if i%5 == 0 {
			return "even"
		}
		return "odd"
	})

	tests := []struct {
		name      string
		req       repository.PageRequest
		criteria  []repository.SelectCriteria
		wantTotal int
		wantLen   int
		wantFirst string
	}{
		{
			name:      "first page ascending",
			req:       repository.PageRequest{Page: 1, Size: 10, OrderBy: "name", OrderDir: "asc"},
			wantTotal: 25,
			wantLen:   10,
			wantFirst: "tag 00",
		},
		{
			name:      "last partial page",
			req:       repository.PageRequest{Page: 3, Size: 10, OrderBy: "name", OrderDir: "asc"},
			wantTotal: 25,
			wantLen:   5,
			wantFirst: "tag 20",
		},
		{
			name:      "descending",
			req:       repository.PageRequest{Page: 1, Size: 3, OrderBy: "name", OrderDir: "desc"},
			wantTotal: 25,
			wantLen:   3,
			wantFirst: "tag 24",
		},
		{
			name: "filtered total",
			req:  repository.PageRequest{Page: 1, Size: 2, OrderBy: "name", OrderDir: "asc"},
			criteria: []repository.SelectCriteria{
				func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("?TableAlias.grp = ?", "even")
				},
			},
			wantTotal: 5,
			wantLen:   2,
			wantFirst: "tag 00",
		},
		{
			name:      "page past the end",
			req:       repository.PageRequest{Page: 9, Size: 10, OrderBy: "name", OrderDir: "asc"},
			wantTotal: 25,
			wantLen:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.Paginate(ctx, tt.req, tt.criteria...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			require.Len(t, items, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, items[0].Name)
			}
		})
	}
}

func TestRepositoryRunInTxRollsBack(t *testing.T) {
	_, repo := setupTags(t)
	ctx := context.Background()

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := repo.CreateTx(ctx, tx, &tag{Name: "Travel", Slug: "travel", Group: "a"}); err != nil {
			return err
		}
		return goerrors.New("abort", goerrors.CategoryOperation)
	})
	require.Error(t, err)

	exists, err := repo.Exists(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.slug = ?", "travel")
	})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepositoryCanceledContext(t *testing.T) {
	_, repo := setupTags(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := repo.Paginate(ctx, repository.NewPageRequest())
	require.Error(t, err)
	assert.True(t, goerrors.IsRetryableError(err))
	assert.True(t, repository.IsTimeout(err))
}
