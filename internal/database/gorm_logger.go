package database

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lguportal/portal/pkg/logger"
)

// zapLogger routes gorm diagnostics through the module logger.
type zapLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newZapLogger(slowThreshold time.Duration, logQueries bool) gormlogger.Interface {
	level := gormlogger.Warn
	if logQueries {
		level = gormlogger.Info
	}
	return &zapLogger{level: level, slowThreshold: slowThreshold}
}

func (l *zapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *zapLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		logger.FromContext(ctx, "database").Sugar().Infof(msg, data...)
	}
}

func (l *zapLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		logger.FromContext(ctx, "database").Sugar().Warnf(msg, data...)
	}
}

func (l *zapLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		logger.FromContext(ctx, "database").Sugar().Errorf(msg, data...)
	}
}

func (l *zapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	log := logger.FromContext(ctx, "database")

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		log.Error("query failed",
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
		)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		log.Warn("slow query",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", l.slowThreshold),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
		)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		log.Debug("query",
			zap.Duration("elapsed", elapsed),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
		)
	}
}
