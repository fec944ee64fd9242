// Package persistence opens the bun database and runs the SQL migrations.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistencebun "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const DefaultPingTimeout = 5 * time.Second

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type Options struct {
	Driver string
	DSN    string
	// MaxOpenConns is ignored for sqlite, which always uses one connection
	MaxOpenConns int
	PingTimeout  time.Duration
	// SlowQuery logs queries slower than this, zero disables
	SlowQuery time.Duration
	// Debug logs every query
	Debug  bool
	Logger Logger
	// Models are registered with bun before the client is created
	Models []any
}

var _ persistencebun.Config = Options{}

func (o Options) GetDebug() bool            { return o.Debug }
func (o Options) GetDriver() string         { return o.Driver }
func (o Options) GetServer() string         { return o.DSN }
func (o Options) GetDatabase() string       { return "" }
func (o Options) GetOtelIdentifier() string { return "" }

func (o Options) GetPingTimeout() time.Duration {
	if o.PingTimeout > 0 {
		return o.PingTimeout
	}
	return DefaultPingTimeout
}

// Client wraps the go-persistence-bun client with the handle bun returns
type Client struct {
	client *persistencebun.Client
	db     *bun.DB
	driver string
	logger Logger
}

// go-persistence-bun keeps registered models in package state until New
var newMu sync.Mutex

// Open connects to postgres or sqlite and checks the connection
func Open(ctx context.Context, opts Options) (*Client, error) {
	driver, sqldb, dialect, err := openSQL(ctx, opts)
	if err != nil {
		return nil, err
	}

	newMu.Lock()
	persistencebun.RegisterModel(opts.Models...)
	client, err := persistencebun.New(opts, sqldb, dialect)
	newMu.Unlock()
	if err != nil {
		_ = sqldb.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "database is not reachable").
			WithMetadata(map[string]any{"driver": driver})
	}

	db, ok := client.DB().(*bun.DB)
	if !ok {
		_ = sqldb.Close()
		return nil, goerrors.New("unexpected database handle", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"type": fmt.Sprintf("%T", client.DB())})
	}

	c := &Client{client: client, db: db, driver: driver, logger: opts.Logger}

	if opts.Logger != nil {
		client.SetLogger(func(format string, a ...any) {
			opts.Logger.Debug(strings.TrimSpace(fmt.Sprintf(format, a...)))
		})
		db.AddQueryHook(NewQueryHook(opts.Logger, opts.SlowQuery, opts.Debug))
	}

	return c, nil
}

func openSQL(ctx context.Context, opts Options) (string, *sql.DB, schema.Dialect, error) {
	switch strings.ToLower(opts.Driver) {
	case DriverPostgres, "postgresql", "":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
		if opts.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		}
		return DriverPostgres, sqldb, pgdialect.New(), nil

	case DriverSQLite, "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, opts.DSN)
		if err != nil {
			return "", nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite")
		}
		// in memory databases live and die with their connection
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		sqldb.SetConnMaxLifetime(0)

		if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = sqldb.Close()
			return "", nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable sqlite foreign keys")
		}
		return DriverSQLite, sqldb, sqlitedialect.New(), nil

	default:
		return "", nil, nil, goerrors.New("unsupported database driver", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"driver": opts.Driver})
	}
}

func (c *Client) DB() *bun.DB { return c.db }

// Driver is the normalized driver name, also the migrations directory
func (c *Client) Driver() string { return c.driver }

// RegisterMigrations adds the SQL migrations found in root/<driver>
func (c *Client) RegisterMigrations(fsys fs.FS, root string) error {
	dir := path.Join(root, c.driver)
	if _, err := fs.Stat(fsys, dir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "no migrations for driver").
			WithMetadata(map[string]any{"driver": c.driver, "dir": dir})
	}

	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid migrations dir").
			WithMetadata(map[string]any{"dir": dir})
	}

	c.client.RegisterSQLMigrations(sub)
	return nil
}

// Migrate applies pending migrations, it is safe to call repeatedly
func (c *Client) Migrate(ctx context.Context) error {
	if err := c.client.Migrate(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations").
			WithMetadata(map[string]any{"driver": c.driver})
	}

	if report := c.client.Report(); report != nil && !report.IsZero() && c.logger != nil {
		c.logger.Debug("migrations applied", "group", report.String())
	}
	return nil
}

// Reset rolls back every applied migration
func (c *Client) Reset(ctx context.Context) error {
	if err := c.client.RollbackAll(ctx, c.db); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to roll back migrations").
			WithMetadata(map[string]any{"driver": c.driver})
	}
	return nil
}

// Close closes the bun handle and the sql.DB under it
func (c *Client) Close() error {
	return c.db.Close()
}
