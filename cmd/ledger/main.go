// Command ledger is the operator CLI for the ledger consistency engine.
// Every subcommand prints its result as JSON on stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/logger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries what PersistentPreRunE prepared to the subcommands
type cli struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
	log      *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "ledger",
		Short: "Operate the budget ledger consistency engine",
		Long: `ledger records expenses and incomes against accounts, keeps linked budgets
consistent with their history, and settles expenses paid by incomes.

Configuration is read from config.toml and LEDGER_* environment variables.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.init,
		PersistentPostRunE: c.sync,
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./config.toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		c.migrateCmd(),
		c.accountCmd(),
		c.budgetCmd(),
		c.expenseCmd(),
		c.incomeCmd(),
		c.eventsCmd(),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command, _ []string) error {
	var err error
	if c.cfgFile != "" {
		c.cfg, err = config.LoadFile(c.cfgFile)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if c.logLevel != "" {
		c.cfg.Log.Level = c.logLevel
	}

	logCfg := logger.ConfigForEnvironment(c.cfg.App.Env)
	logCfg.Level = c.cfg.Log.Level
	logCfg.Output = c.cfg.Log.Output
	if c.cfg.Log.Format != "" {
		logCfg.Format = c.cfg.Log.Format
	}
	c.log, err = logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	c.log = c.log.With(zap.String("app", c.cfg.App.Name), zap.String("env", c.cfg.App.Env))
	return nil
}

func (c *cli) sync(*cobra.Command, []string) error {
	if c.log != nil {
		_ = c.log.Sync()
	}
	return nil
}

// withApp opens the engine for the duration of fn. Every invocation gets a
// request id and a root span, so its log entries and SQL statements can be
// told apart from those of other runs.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *application) error) error {
	requestID := uuid.NewString()
	ctx := logger.WithRequestID(logger.WithContext(cmd.Context(), c.log), requestID)
	app, err := newApplication(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.Background()); cerr != nil {
			c.log.Warn("shutdown incomplete", zap.String("request_id", requestID), zap.Error(cerr))
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "ledger.command",
		telemetry.WithAttribute("command", cmd.CommandPath()),
		telemetry.WithAttribute("request_id", requestID),
	)
	defer span.End()

	start := time.Now()
	telemetry.WithProfilingLabels(ctx, func(ctx context.Context) {
		err = fn(ctx, app)
	}, "command", cmd.CommandPath())

	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	logger.L(ctx).Debug("command finished",
		zap.String("command", cmd.CommandPath()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("ok", err == nil),
	)
	return err
}
