package main

import (
	"context"
	"errors"
	"fmt"

	ledgerapp "github.com/RafaelMoro/BE-Budget-Master-sub000/internal/application/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/cache"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/event"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/messaging"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/memory"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/mongo"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/RafaelMoro/BE-Budget-Master-sub000/ledger"

// application is the wired engine plus everything that must be closed on exit
type application struct {
	cfg          *config.Config
	log          *zap.Logger
	store        *ledger.Store
	orchestrator *ledgerapp.RecordOrchestrator
	bus          *event.InMemoryEventBus
	dedup        shared.IdempotencyStore
	amqp         *messaging.Connection

	closers []func(context.Context) error
}

// newApplication opens the configured store and wires the orchestrator,
// the event bus and, when enabled, the AMQP relay
func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (app *application, err error) {
	app = &application{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	app.onClose(tracer.Shutdown)

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	app.onClose(meters.Shutdown)

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	app.onClose(logs.Shutdown)
	app.log = logs.Bridge(log)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.Profiling.Enabled,
		ServerAddress:   cfg.Telemetry.Profiling.ServerAddress,
		ApplicationName: cfg.Telemetry.Profiling.ApplicationName,
		ProfileMutex:    cfg.Telemetry.Profiling.ProfileMutex,
		ProfileBlock:    cfg.Telemetry.Profiling.ProfileBlock,
	}, app.log)
	if err != nil {
		return nil, err
	}
	app.onClose(profiler.Stop)
	app.log.Debug("telemetry configured",
		zap.Bool("tracing", tracer.IsEnabled()),
		zap.Bool("metrics", meters.IsEnabled()),
		zap.Bool("logs", logs.IsEnabled()),
		zap.Bool("profiling", profiler.IsEnabled()),
	)

	metrics, err := telemetry.NewLedgerMetrics(meters.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}

	app.store, err = app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	app.orchestrator = ledgerapp.NewRecordOrchestrator(app.store, ledgerapp.Options{
		MaxBudgetRetries:     cfg.Ledger.MaxBudgetRetries,
		RetryInitialInterval: cfg.Ledger.RetryInitialInterval,
		RetryMaxInterval:     cfg.Ledger.RetryMaxInterval,
		MaxLinkedBudgets:     cfg.Ledger.MaxLinkedBudgets,
	}, app.log)
	app.orchestrator.SetMetrics(metrics)

	if err := app.wireEvents(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *application) openStore(ctx context.Context) (*ledger.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		a.log.Warn("using the in-memory store; nothing is persisted")
		return memory.NewLedgerStore(memory.NewBackend()), nil

	case config.BackendSQLite, config.BackendPostgres:
		db, err := persistence.NewDatabase(a.cfg, a.log)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return db.Close() })
		if err := telemetry.InstrumentDB(db.DB, telemetry.DBTracingConfig{
			Enabled:         a.cfg.Telemetry.Enabled,
			DBSystem:        dbSystem(a.cfg.Store.Backend),
			WithVariables:   a.cfg.Telemetry.TraceSQL,
			SlowQueryThresh: a.cfg.Telemetry.SlowQueryThreshold,
		}, a.log); err != nil {
			return nil, fmt.Errorf("instrument database: %w", err)
		}
		if a.cfg.Store.Backend == config.BackendSQLite {
			if err := db.AutoMigrate(); err != nil {
				return nil, fmt.Errorf("migrate sqlite schema: %w", err)
			}
		}
		return db.LedgerStore(), nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, a.cfg.Mongo, a.log)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return client.LedgerStore(), nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", a.cfg.Store.Backend)
}

func dbSystem(backend string) string {
	if backend == config.BackendPostgres {
		return "postgresql"
	}
	return backend
}

// wireEvents subscribes the reconciliation alert handler behind idempotency
// and relays every event to RabbitMQ when AMQP is enabled
func (a *application) wireEvents(ctx context.Context) error {
	a.bus = event.NewInMemoryEventBus(a.log)
	a.onClose(a.bus.Stop)

	dedup, err := cache.NewIdempotencyStoreFactory(a.cfg.Redis, cache.WithLogger(a.log)).CreateStore(ctx)
	if err != nil {
		return err
	}
	a.dedup = dedup
	a.onClose(func(context.Context) error { return dedup.Close() })

	a.bus.Subscribe(a.reconciliationHandler(nil))

	if a.cfg.AMQP.Enabled {
		conn, err := messaging.Dial(a.cfg.AMQP)
		if err != nil {
			return err
		}
		a.amqp = conn
		a.onClose(func(context.Context) error { return conn.Close() })

		ch, err := conn.Channel()
		if err != nil {
			return err
		}
		pub, err := messaging.NewAMQPPublisher(ch, a.cfg.AMQP.Exchange, a.log)
		if err != nil {
			return err
		}
		a.bus.AddRelay(pub)
	}

	a.orchestrator.SetEventPublisher(a.bus)
	return a.bus.Start(ctx)
}

// reconciliationHandler builds the idempotent alert handler, optionally
// forwarding alerts to notifier
func (a *application) reconciliationHandler(notifier ledgerapp.ReconciliationNotifier) shared.EventHandler {
	h := ledgerapp.NewReconciliationAlertHandler(a.log).WithAuditor(a.orchestrator)
	if notifier != nil {
		h = h.WithNotifier(notifier)
	}
	return event.NewIdempotentHandler(h, a.dedup, a.log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:              a.cfg.Ledger.EventDedupTTL,
			Enabled:          true,
			ReleaseOnFailure: true,
		}),
	)
}

func (a *application) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (a *application) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
