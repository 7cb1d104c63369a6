package db

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const defaultSlowQuery = 500 * time.Millisecond

// queryLog routes GORM's own logging into the service logger. Only slow
// statements and driver failures are reported; record-not-found is a normal
// outcome for lookups and is skipped.
type queryLog struct {
	logg *logger.Logger
	slow time.Duration
	mode gormlogger.LogLevel
}

func newQueryLog(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	mode := gormlogger.Warn
	if logg == nil {
		mode = gormlogger.Silent
	}
	return &queryLog{logg: logg, slow: slow, mode: mode}
}

func (q *queryLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *q
	if q.logg != nil {
		cp.mode = level
	}
	return &cp
}

func (q *queryLog) Info(ctx context.Context, msg string, args ...any) {
	if q.mode >= gormlogger.Info {
		q.logg.Debug(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLog) Warn(ctx context.Context, msg string, args ...any) {
	if q.mode >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLog) Error(ctx context.Context, msg string, args ...any) {
	if q.mode >= gormlogger.Error {
		q.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
	}
}

func (q *queryLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.mode <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := elapsed >= q.slow
	if !failed && !slow {
		return
	}

	stmt, rows := fc()
	fields := map[string]any{
		"sql":         stmt,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	}
	msg := "sql.slow"
	if failed {
		msg = "sql.failed"
		fields["error"] = err.Error()
		maps.Copy(fields, Diagnose(err))
	}
	q.logg.Warn(q.logg.WithFields(ctx, fields), msg)
}
