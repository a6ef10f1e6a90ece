package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQuery is the duration above which a statement is logged as slow.
const DefaultSlowQuery = 200 * time.Millisecond

// GormLogger sends GORM statements through the service logger.
// Record-not-found errors are not logged; repositories translate them.
type GormLogger struct {
	log       *Logger
	level     gormlogger.LogLevel
	slowQuery time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger creates a GORM logger. Statements are traced at debug level only
// when the service logger itself is at debug.
func NewGormLogger(log *Logger, slowQuery time.Duration) *GormLogger {
	level := gormlogger.Warn
	if log.IsDebug() {
		level = gormlogger.Info
	}
	if slowQuery <= 0 {
		slowQuery = DefaultSlowQuery
	}
	return &GormLogger{log: log.Component("gorm"), level: level, slowQuery: slowQuery}
}

// LogMode returns a copy of the logger at the given level.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace logs a finished statement: failures at error, slow statements at warn and
// everything else at debug.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("Query failed")
	case elapsed > g.slowQuery && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.log.Warn().Dur("elapsed", elapsed).Dur("threshold", g.slowQuery).Int64("rows", rows).Str("sql", sql).Msg("Slow query")
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.log.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("Query")
	}
}
