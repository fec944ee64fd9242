package cms

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms/middleware/ratelimit"
	"github.com/goliatone/go-cms/repository"
	"github.com/goliatone/go-cms/slug"
)

const DefaultAPIPrefix = "/api/v1"

// AppOptions configures NewApp. Tokens is required.
type AppOptions struct {
	Tokens    TokenConfig
	Sanitizer SanitizerConfig
	Passwords PasswordConfig

	Env       string
	Version   string
	APIPrefix string

	RequestTimeout time.Duration
	// RateLimit nil disables rate limiting
	RateLimit *ratelimit.Config

	Logger Logger
	Clock  func() time.Time
}

// App wires storage, services and the HTTP boundary together
type App struct {
	Fiber      *fiber.App
	Repos      RepositoryManager
	Tokens     *TokenService
	Guard      *Guard
	Users      *UserService
	Categories *CategoryService
	Posts      *PostService
	logger     Logger
}

func NewApp(db *bun.DB, opts AppOptions) (*App, error) {
	if db == nil {
		return nil, goerrors.New("database is required", goerrors.CategoryInternal)
	}

	if opts.Tokens == nil {
		return nil, goerrors.New("token config is required", goerrors.CategoryInternal)
	}

	logger := opts.Logger
	if logger == nil {
		logger = defLogger()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	prefix := strings.TrimRight(opts.APIPrefix, "/")
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}

	tokens, err := NewTokenService(opts.Tokens, WithTokenClock(clock), WithTokenLogger(logger))
	if err != nil {
		return nil, err
	}

	hasher := NewPasswordHasher()
	if opts.Passwords != nil {
		hasher = NewPasswordHasherFromConfig(opts.Passwords)
	}

	sanitizer := NewSanitizer(nil, nil)
	if opts.Sanitizer != nil {
		sanitizer = NewSanitizerFromConfig(opts.Sanitizer)
	}

	repos := NewRepositoryManager(db, repository.WithClock(clock))
	if err := repos.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid repository manager")
	}
	slugs := slug.NewGenerator()

	guard := NewGuard(tokens, repos.Users()).WithLogger(logger).WithClock(clock)
	auther := NewHTTPAuthenticator(guard).WithLogger(logger)

	app := &App{
		Repos:      repos,
		Tokens:     tokens,
		Guard:      guard,
		Users:      NewUserService(repos, hasher).WithLogger(logger),
		Categories: NewCategoryService(repos, slugs).WithLogger(logger),
		Posts:      NewPostService(repos, slugs, sanitizer).WithLogger(logger),
		logger:     logger,
	}

	controller := NewController(
		WithControllerLogger(logger),
		WithEnvironment(opts.Env, opts.Version),
		WithServices(app.Users, app.Categories, app.Posts),
		WithGuard(guard, auther),
		WithHealthCheck(db.PingContext),
	)

	app.Fiber = fiber.New(fiber.Config{
		AppName:               "cms",
		Immutable:             true,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})

	app.Fiber.Use(recover.New())
	app.Fiber.Use(requestid.New())

	if opts.RateLimit != nil {
		limit := *opts.RateLimit
		if limit.Logger == nil {
			limit.Logger = logger
		}
		app.Fiber.Use(ratelimit.New(limit))
	}

	app.Fiber.Use(RequestTimeout(opts.RequestTimeout))

	controller.Register(app.Fiber.Group(prefix))

	return app, nil
}

// Bootstrap creates the first admin when email is set
func (a *App) Bootstrap(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		a.logger.Info("no superuser configured, skipping bootstrap")
		return nil
	}

	_, err := a.Users.BootstrapSuperuser(ctx, email, password, "")
	return err
}

// Shutdown stops accepting connections and waits for in flight requests
func (a *App) Shutdown(ctx context.Context) error {
	return a.Fiber.ShutdownWithContext(ctx)
}
