package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-assistant-be/internal/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = time.Second

// queryLogger routes gorm's output through the application logger. SQL is
// only logged at debug; vector literals make the statements huge.
type queryLogger struct {
	log   logger.ILogger
	level gormlogger.LogLevel
}

func newQueryLogger(log logger.ILogger, debug bool) *queryLogger {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &queryLogger{log: log, level: level}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &queryLogger{log: q.log, level: level}
}

func (q *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Info {
		q.log.Info("Database", fmt.Sprintf(msg, args...), nil)
	}
}

func (q *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Warn {
		q.log.Warn("Database", fmt.Sprintf(msg, args...), nil)
	}
}

func (q *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Error {
		q.log.Error("Database", fmt.Sprintf(msg, args...), nil)
	}
}

func (q *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= gormlogger.Error:
		sql, rows := fc()
		q.log.Error("Database", "Query failed", map[string]interface{}{
			"error":       err.Error(),
			"sql":         truncateSQL(sql),
			"rows":        rows,
			"duration_ms": elapsed.Milliseconds(),
		})
	case elapsed > slowQueryThreshold && q.level >= gormlogger.Warn:
		sql, rows := fc()
		q.log.Warn("Database", "Slow query", map[string]interface{}{
			"sql":         truncateSQL(sql),
			"rows":        rows,
			"duration_ms": elapsed.Milliseconds(),
		})
	case q.level >= gormlogger.Info:
		sql, rows := fc()
		q.log.Debug("Database", "Query", map[string]interface{}{
			"sql":         truncateSQL(sql),
			"rows":        rows,
			"duration_ms": elapsed.Milliseconds(),
		})
	}
}

func truncateSQL(sql string) string {
	const max = 512
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "..."
}

// NewGormDBFromDSN opens the Postgres pool used by the pgvector index backend
// and checks it is reachable before returning.
func NewGormDBFromDSN(ctx context.Context, dsn string, log logger.ILogger, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 newQueryLogger(log, debug),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}
