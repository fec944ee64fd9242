package slug

import (
	"context"
	"strconv"
	"strings"

	"github.com/goliatone/go-cms/repository"
	goerrors "github.com/goliatone/go-errors"
	gslug "github.com/gosimple/slug"
)

const (
	DefaultMaxAttempts = 1000
	DefaultMaxLength   = 240
	DefaultMaxRetries  = 5
)

var (
	// ErrEmptySlug is returned when the text has nothing to build a slug from
	ErrEmptySlug = goerrors.New("text produces an empty slug", goerrors.CategoryValidation).
			WithTextCode("EMPTY_SLUG")

	// ErrSlugExhausted is returned when every suffix up to the cap is taken
	ErrSlugExhausted = goerrors.New("unable to find a free slug", goerrors.CategoryConflict).
				WithTextCode("SLUG_EXHAUSTED")
)

// Scope answers whether a slug is already taken for one entity kind
type Scope interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// ScopeFunc adapts a function to Scope
type ScopeFunc func(ctx context.Context, slug string) (bool, error)

func (f ScopeFunc) SlugExists(ctx context.Context, slug string) (bool, error) {
	return f(ctx, slug)
}

// Generator builds URL slugs and makes them unique within a Scope
type Generator struct {
	maxAttempts int
	maxLength   int
	maxRetries  int
	isConflict  func(error) bool
}

type Option func(*Generator)

// WithMaxAttempts caps how many suffixes Unique probes
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithMaxLength caps the length of the base slug
func WithMaxLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxLength = n
		}
	}
}

// WithMaxRetries caps how many times Assign retries a conflicting insert
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// WithConflictCheck sets how Assign recognizes a lost slug race
func WithConflictCheck(fn func(error) bool) Option {
	return func(g *Generator) {
		if fn != nil {
			g.isConflict = fn
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		maxAttempts: DefaultMaxAttempts,
		maxLength:   DefaultMaxLength,
		maxRetries:  DefaultMaxRetries,
		isConflict: func(err error) bool {
			return repository.IsDuplicateKeyOn(err, "slug")
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Make normalizes text: lowercase, transliterated to ASCII, runs of
// anything else collapsed into a single dash.
func (g *Generator) Make(text string) string {
	s := gslug.Make(text)
	if len(s) > g.maxLength {
		s = strings.TrimRight(s[:g.maxLength], "-_")
	}
	return s
}

// Unique returns the first of base, base-1, base-2, ... that the scope
// does not already hold.
func (g *Generator) Unique(ctx context.Context, scope Scope, text string) (string, error) {
	base := g.Make(text)
	if base == "" {
		return "", ErrEmptySlug
	}

	candidate := base
	for i := 1; i <= g.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", repository.MapError(err)
		}

		taken, err := scope.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}

	return "", ErrSlugExhausted.Clone().WithMetadata(map[string]any{
		"base":     base,
		"attempts": g.maxAttempts,
	})
}

// Assign picks a unique slug and hands it to insert. If insert loses a
// race for the slug the whole thing is tried again, the unique index in
// storage has the final word.
func (g *Generator) Assign(ctx context.Context, scope Scope, text string, insert func(ctx context.Context, slug string) error) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		s, err := g.Unique(ctx, scope, text)
		if err != nil {
			return "", err
		}

		lastErr = insert(ctx, s)
		if lastErr == nil {
			return s, nil
		}
		if !g.isConflict(lastErr) {
			return "", lastErr
		}
	}
	return "", lastErr
}
