package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds logs bridge configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider ships zap records to the collector through the OTLP log exporter.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	logger   *zap.Logger
	config   LogsConfig
}

// NewLoggerProvider creates the log provider. Disabled config yields a
// provider whose Bridge returns the logger unchanged.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{logger: logger, config: cfg}
	if !cfg.Enabled {
		return lp, nil
	}

	exporterOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.provider)

	logger.Info("OpenTelemetry LoggerProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	)
	return lp, nil
}

// IsEnabled returns whether logs are exported.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp.provider != nil
}

// Bridge returns a logger that writes to base and, when enabled, to the
// collector at the same minimum level.
func (lp *LoggerProvider) Bridge(base *zap.Logger) *zap.Logger {
	if !lp.IsEnabled() {
		return base
	}
	otelCore := otelzap.NewCore(lp.config.ServiceName, otelzap.WithLoggerProvider(lp.provider))
	level := zapcore.LevelOf(base.Core())
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, &levelFilterCore{Core: otelCore, minLevel: level})
	}))
}

// Shutdown flushes pending records and stops the provider.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := lp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown logger provider: %w", err)
	}
	return nil
}

// levelFilterCore applies a minimum level to a core that has none.
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), minLevel: c.minLevel}
}
