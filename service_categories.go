package cms

import (
	"context"
	"strings"

	"github.com/goliatone/go-cms/repository"
	"github.com/goliatone/go-cms/slug"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CategoryOrderFields are the sortable category columns
var CategoryOrderFields = []string{"name", "date_created"}

// CategoryService manages categories. Deleting a category that still owns
// posts is refused with ErrCategoryInUse.
type CategoryService struct {
	repos  RepositoryManager
	slugs  *slug.Generator
	logger Logger
}

func NewCategoryService(repos RepositoryManager, slugs *slug.Generator) *CategoryService {
	if slugs == nil {
		slugs = slug.NewGenerator()
	}
	return &CategoryService{
		repos:  repos,
		slugs:  slugs,
		logger: defLogger(),
	}
}

func (s *CategoryService) WithLogger(logger Logger) *CategoryService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// List returns one page of categories
func (s *CategoryService) List(ctx context.Context, req repository.PageRequest) (repository.Page[*Category], error) {
	if err := req.Validate(CategoryOrderFields...); err != nil {
		return repository.Page[*Category]{}, err
	}

	items, total, err := s.repos.Categories().Paginate(ctx, req)
	if err != nil {
		return repository.Page[*Category]{}, err
	}
	return repository.NewPage(items, total, req), nil
}

// Create adds a category with a slug derived from its name
func (s *CategoryService) Create(ctx context.Context, payload CategoryCreate) (*Category, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(payload.Name)
	if err := s.ensureNameFree(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	var created *Category
	_, err := s.slugs.Assign(ctx, s.scope(uuid.Nil), name, func(ctx context.Context, value string) error {
		var err error
		created, err = s.repos.Categories().Create(ctx, &Category{
			Name: name,
			Slug: value,
		})
		return err
	})
	if err != nil {
		return nil, s.mapWriteError(err)
	}

	s.logger.Info("CategoryService created category", "id", created.ID, "slug", created.Slug)
	return created, nil
}

// Get finds a category by id
func (s *CategoryService) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	category, err := s.repos.Categories().Get(ctx, id)
	return category, s.mapReadError(err)
}

// GetBySlug finds a category by slug
func (s *CategoryService) GetBySlug(ctx context.Context, value string) (*Category, error) {
	category, err := s.repos.Categories().GetByIdentifier(ctx, value)
	return category, s.mapReadError(err)
}

// Resolve finds a category by id when identifier parses as a UUID,
// falling back to the slug otherwise.
func (s *CategoryService) Resolve(ctx context.Context, identifier string) (*Category, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		category, err := s.repos.Categories().Get(ctx, id)
		if err == nil {
			return category, nil
		}
		if !repository.IsRecordNotFound(err) {
			return nil, err
		}
	}
	return s.GetBySlug(ctx, identifier)
}

// Update renames the category. A new name gets a new slug.
func (s *CategoryService) Update(ctx context.Context, category *Category, payload CategoryUpdate) (*Category, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if payload.Name == nil {
		return category, nil
	}

	name := strings.TrimSpace(*payload.Name)
	if name == category.Name {
		return category, nil
	}

	if err := s.ensureNameFree(ctx, name, category.ID); err != nil {
		return nil, err
	}

	record := *category
	record.Name = name

	var updated *Category
	_, err := s.slugs.Assign(ctx, s.scope(category.ID), name, func(ctx context.Context, value string) error {
		record.Slug = value
		var err error
		updated, err = s.repos.Categories().Update(ctx, &record, "name", "slug")
		return err
	})
	if err != nil {
		return nil, s.mapWriteError(err)
	}

	s.logger.Info("CategoryService renamed category", "id", updated.ID, "slug", updated.Slug)
	return updated, nil
}

// Remove deletes the category and returns it as it was. The post count and
// the delete share one transaction.
func (s *CategoryService) Remove(ctx context.Context, id uuid.UUID) (*Category, error) {
	var deleted *Category
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		count, err := s.repos.Posts().CountTx(ctx, tx, whereEq("category_id", id))
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrCategoryInUse.Clone().WithMetadata(map[string]any{"posts": count})
		}

		deleted, err = s.repos.Categories().DeleteTx(ctx, tx, id)
		return err
	})
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, ErrCategoryInUse
		}
		return nil, s.mapReadError(err)
	}

	s.logger.Info("CategoryService removed category", "id", deleted.ID)
	return deleted, nil
}

func (s *CategoryService) ensureNameFree(ctx context.Context, name string, exclude uuid.UUID) error {
	exists, err := s.repos.Categories().Exists(ctx, whereEq("name", name), whereNot(exclude))
	if err != nil {
		return err
	}
	if exists {
		return ErrCategoryExists
	}
	return nil
}

func (s *CategoryService) scope(exclude uuid.UUID) slug.Scope {
	return slug.ScopeFunc(func(ctx context.Context, value string) (bool, error) {
		return s.repos.Categories().Exists(ctx, whereEq("slug", value), whereNot(exclude))
	})
}

func (s *CategoryService) mapWriteError(err error) error {
	if repository.IsDuplicateKeyOn(err, "name") {
		return ErrCategoryExists
	}
	return s.mapReadError(err)
}

func (s *CategoryService) mapReadError(err error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return ErrCategoryNotFound
	}
	return err
}
