package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	DBSystem        string        // "postgresql" or "sqlite"
	WithVariables   bool          // include bound query variables in db.statement (dev only)
	SlowQueryThresh time.Duration // queries slower than this get db.slow_query=true
}

type queryStartKey struct{}

// InstrumentDB registers otelgorm on db plus a callback that tags each span
// with the document table, rows affected and slow-query markers.
func InstrumentDB(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := &slowQueryCallback{thresh: cfg.SlowQueryThresh}
	cbs := db.Callback()
	hooks := []struct {
		op            string
		before, after func(string, func(*gorm.DB)) error
	}{
		{"create", cbs.Create().Before("gorm:create").Register, cbs.Create().After("gorm:create").Register},
		{"query", cbs.Query().Before("gorm:query").Register, cbs.Query().After("gorm:query").Register},
		{"update", cbs.Update().Before("gorm:update").Register, cbs.Update().After("gorm:update").Register},
		{"delete", cbs.Delete().Before("gorm:delete").Register, cbs.Delete().After("gorm:delete").Register},
		{"row", cbs.Row().Before("gorm:row").Register, cbs.Row().After("gorm:row").Register},
		{"raw", cbs.Raw().Before("gorm:raw").Register, cbs.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("ledger_timing:before_"+h.op, cb.before); err != nil {
			return err
		}
		if err := h.after("ledger_timing:after_"+h.op, cb.after); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh))
	return nil
}

type slowQueryCallback struct {
	thresh time.Duration
}

func (c *slowQueryCallback) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (c *slowQueryCallback) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok || c.thresh <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > c.thresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", c.thresh.Milliseconds()),
		))
	}
}
