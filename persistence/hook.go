package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// QueryHook logs failed and slow queries
type QueryHook struct {
	logger  Logger
	slow    time.Duration
	verbose bool
	now     func() time.Time
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook(logger Logger, slow time.Duration, verbose bool) *QueryHook {
	return &QueryHook{
		logger:  logger,
		slow:    slow,
		verbose: verbose,
		now:     time.Now,
	}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	took := h.now().Sub(event.StartTime)

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Debug("query failed",
			"operation", event.Operation(),
			"duration", took,
			"error", event.Err,
			"query", event.Query,
		)
	case h.slow > 0 && took >= h.slow:
		h.logger.Warn("slow query",
			"operation", event.Operation(),
			"duration", took,
			"query", event.Query,
		)
	case h.verbose:
		h.logger.Debug("query",
			"operation", event.Operation(),
			"duration", took,
			"query", event.Query,
		)
	}
}
