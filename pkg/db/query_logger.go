package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

// queryLogger routes GORM output through the service logger. Only slow
// statements and real failures are reported. Missing rows and unique
// violations are outcomes callers branch on.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (q *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return q }

func (q *queryLogger) Info(ctx context.Context, msg string, _ ...any) { q.logg.Debug(ctx, msg) }

func (q *queryLogger) Warn(ctx context.Context, msg string, _ ...any) { q.logg.Warn(ctx, msg) }

func (q *queryLogger) Error(ctx context.Context, msg string, _ ...any) { q.logg.Error(ctx, msg, nil) }

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !IsUniqueViolation(err, "")
	slow := q.slow > 0 && elapsed >= q.slow
	if !failed && !slow {
		return
	}
	sql, rows := fc()
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	if failed {
		q.logg.Error(ctx, "db.query_failed", err)
		return
	}
	q.logg.Warn(ctx, "db.slow_query")
}
