package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), logs
}

func traceFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := WithOwnerID(WithRequestID(context.Background(), "req-9"), "u1")

	t.Run("silent logs nothing", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Silent)
		l.Trace(ctx, time.Now(), traceFn("SELECT 1", 1), errors.New("boom"))
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("failures carry the request and owner", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Error)
		l.Trace(ctx, time.Now(), traceFn("update documents set body = ?", 0), errors.New("boom"))
		entries := logs.FilterMessage("document store statement failed").All()
		if assert.Len(t, entries, 1) {
			fields := entries[0].ContextMap()
			assert.Equal(t, "u1", fields["owner_id"])
			assert.Equal(t, "req-9", fields["request_id"])
			assert.Equal(t, "UPDATE", fields["statement"])
			assert.Equal(t, "boom", fields["error"])
		}
	})

	t.Run("missing rows and duplicate keys stay at debug", func(t *testing.T) {
		for _, err := range []error{gorm.ErrRecordNotFound, gorm.ErrDuplicatedKey} {
			l, logs := newObservedGormLogger(gormlogger.Error)
			l.Trace(ctx, time.Now(), traceFn("INSERT INTO documents", 0), err)
			assert.Equal(t, 0, logs.FilterMessage("document store statement failed").Len())
			assert.Equal(t, 1, logs.FilterLevelExact(zapcore.DebugLevel).Len())
		}
	})

	t.Run("slow statements warn with the threshold", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		l.Trace(ctx, time.Now().Add(-time.Second), traceFn("SELECT", 1), nil)
		entries := logs.FilterLevelExact(zapcore.WarnLevel).All()
		if assert.Len(t, entries, 1) {
			assert.Equal(t, time.Millisecond, entries[0].ContextMap()["threshold"])
		}
	})

	t.Run("a zero threshold never warns", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(0))
		l.Trace(ctx, time.Now().Add(-time.Hour), traceFn("SELECT", 1), nil)
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("info logs every statement at debug", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Info, WithSlowThreshold(0))
		l.Trace(ctx, time.Now(), traceFn("SELECT", 1), nil)
		assert.Equal(t, 1, logs.FilterMessage("document store statement").Len())
	})
}

func TestGormLogger_Printf(t *testing.T) {
	l, logs := newObservedGormLogger(gormlogger.Warn)
	ctx := WithOwnerID(context.Background(), "u1")

	l.Info(ctx, "hidden %d", 1)
	l.Warn(ctx, "replaced %s", "callback")
	l.Error(ctx, "failed %s", "migration")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "replaced callback", entries[0].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "u1", entries[0].ContextMap()["owner_id"])
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	}
}

func TestStatementKind(t *testing.T) {
	assert.Equal(t, "SELECT", statementKind("  select * from documents"))
	assert.Equal(t, "DELETE", statementKind("DELETE FROM documents WHERE id = ?"))
	assert.Equal(t, "", statementKind(""))
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	l, _ := newObservedGormLogger(gormlogger.Warn)
	quiet := l.LogMode(gormlogger.Silent)
	assert.NotSame(t, l, quiet)
	assert.Equal(t, gormlogger.Warn, l.level)
}
