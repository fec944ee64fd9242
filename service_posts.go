package cms

import (
	"context"
	"strings"

	"github.com/goliatone/go-cms/repository"
	"github.com/goliatone/go-cms/slug"
	"github.com/google/uuid"
)

// PostOrderFields are the sortable post columns
var PostOrderFields = []string{"title", "date_created"}

// PostService manages posts. Content is sanitized on every write.
type PostService struct {
	repos     RepositoryManager
	slugs     *slug.Generator
	sanitizer *Sanitizer
	logger    Logger
}

func NewPostService(repos RepositoryManager, slugs *slug.Generator, sanitizer *Sanitizer) *PostService {
	if slugs == nil {
		slugs = slug.NewGenerator()
	}
	if sanitizer == nil {
		sanitizer = NewSanitizer(nil, nil)
	}
	return &PostService{
		repos:     repos,
		slugs:     slugs,
		sanitizer: sanitizer,
		logger:    defLogger(),
	}
}

func (s *PostService) WithLogger(logger Logger) *PostService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// List returns one page of posts
func (s *PostService) List(ctx context.Context, req repository.PageRequest) (repository.Page[*Post], error) {
	if err := req.Validate(PostOrderFields...); err != nil {
		return repository.Page[*Post]{}, err
	}

	items, total, err := s.repos.Posts().Paginate(ctx, req)
	if err != nil {
		return repository.Page[*Post]{}, err
	}
	return repository.NewPage(items, total, req), nil
}

// ListByCategory returns one page of the posts in category. total counts
// only that category.
func (s *PostService) ListByCategory(ctx context.Context, category *Category, req repository.PageRequest) (repository.Page[*Post], error) {
	if err := req.Validate(PostOrderFields...); err != nil {
		return repository.Page[*Post]{}, err
	}

	items, total, err := s.repos.Posts().Paginate(ctx, req, whereEq("category_id", category.ID))
	if err != nil {
		return repository.Page[*Post]{}, err
	}
	return repository.NewPage(items, total, req), nil
}

// Create stores a post with a slug derived from its title
func (s *PostService) Create(ctx context.Context, payload PostCreate) (*Post, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if err := s.ensureCategory(ctx, payload.CategoryID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(payload.Title)
	content := s.sanitizer.Sanitize(payload.ContentHTML)

	var created *Post
	_, err := s.slugs.Assign(ctx, s.scope(uuid.Nil), title, func(ctx context.Context, value string) error {
		var err error
		created, err = s.repos.Posts().Create(ctx, &Post{
			Title:       title,
			ContentHTML: content,
			Slug:        value,
			CategoryID:  payload.CategoryID,
		})
		return err
	})
	if err != nil {
		return nil, s.mapWriteError(err)
	}

	s.logger.Info("PostService created post", "id", created.ID, "slug", created.Slug)
	return created, nil
}

// GetBySlug finds a post by slug
func (s *PostService) GetBySlug(ctx context.Context, value string) (*Post, error) {
	post, err := s.repos.Posts().GetByIdentifier(ctx, value)
	return post, s.mapReadError(err)
}

// Resolve finds a post by id when identifier parses as a UUID, falling
// back to the slug otherwise.
func (s *PostService) Resolve(ctx context.Context, identifier string) (*Post, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		post, err := s.repos.Posts().Get(ctx, id)
		if err == nil {
			return post, nil
		}
		if !repository.IsRecordNotFound(err) {
			return nil, err
		}
	}
	return s.GetBySlug(ctx, identifier)
}

// Update applies the non nil fields. A new title gets a new slug.
func (s *PostService) Update(ctx context.Context, post *Post, payload PostUpdate) (*Post, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	record := *post
	columns := make([]string, 0, 4)

	if payload.ContentHTML != nil {
		record.ContentHTML = s.sanitizer.Sanitize(*payload.ContentHTML)
		columns = append(columns, "content_html")
	}

	if payload.CategoryID != nil && *payload.CategoryID != post.CategoryID {
		if err := s.ensureCategory(ctx, *payload.CategoryID); err != nil {
			return nil, err
		}
		record.CategoryID = *payload.CategoryID
		columns = append(columns, "category_id")
	}

	retitled := false
	if payload.Title != nil {
		title := strings.TrimSpace(*payload.Title)
		if title != post.Title {
			record.Title = title
			columns = append(columns, "title")
			retitled = true
		}
	}

	if len(columns) == 0 {
		return post, nil
	}

	var updated *Post
	var err error
	if retitled {
		columns = append(columns, "slug")
		_, err = s.slugs.Assign(ctx, s.scope(post.ID), record.Title, func(ctx context.Context, value string) error {
			record.Slug = value
			var err error
			updated, err = s.repos.Posts().Update(ctx, &record, columns...)
			return err
		})
	} else {
		updated, err = s.repos.Posts().Update(ctx, &record, columns...)
	}
	if err != nil {
		return nil, s.mapWriteError(err)
	}

	s.logger.Info("PostService updated post", "id", updated.ID, "slug", updated.Slug)
	return updated, nil
}

// Remove deletes the post and returns it as it was
func (s *PostService) Remove(ctx context.Context, id uuid.UUID) (*Post, error) {
	deleted, err := s.repos.Posts().Delete(ctx, id)
	if err != nil {
		return nil, s.mapReadError(err)
	}

	s.logger.Info("PostService removed post", "id", deleted.ID)
	return deleted, nil
}

func (s *PostService) ensureCategory(ctx context.Context, id uuid.UUID) error {
	exists, err := s.repos.Categories().Exists(ctx, whereEq("id", id))
	if err != nil {
		return err
	}
	if !exists {
		return ErrCategoryMissing
	}
	return nil
}

func (s *PostService) scope(exclude uuid.UUID) slug.Scope {
	return slug.ScopeFunc(func(ctx context.Context, value string) (bool, error) {
		return s.repos.Posts().Exists(ctx, whereEq("slug", value), whereNot(exclude))
	})
}

func (s *PostService) mapWriteError(err error) error {
	// the category vanished between the check and the write
	if repository.IsForeignKeyViolation(err) {
		return ErrCategoryMissing
	}
	return s.mapReadError(err)
}

func (s *PostService) mapReadError(err error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return ErrPostNotFound
	}
	return err
}
