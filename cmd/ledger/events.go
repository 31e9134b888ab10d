package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	ledgerapp "github.com/RafaelMoro/BE-Budget-Master-sub000/internal/application/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/messaging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Work with the ledger event stream",
	}

	var prefetch int
	consume := &cobra.Command{
		Use:   "consume",
		Short: "Consume ledger events from RabbitMQ and print reconciliation alerts",
		Long: `Bind the reconciliation queue to the ledger exchange and handle every
ReconciliationRequired event. Each alert is printed as one JSON line on
stdout, together with a fresh audit of the budgets involved.

Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.cfg.AMQP.Enabled {
				return errors.New("amqp is disabled; set LEDGER_AMQP_ENABLED=true")
			}
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				conn := app.amqp
				if conn == nil {
					var err error
					if conn, err = messaging.Dial(c.cfg.AMQP); err != nil {
						return err
					}
					defer conn.Close()
				}
				ch, err := conn.Channel()
				if err != nil {
					return err
				}
				defer ch.Close()

				amqpCfg := conn.Config()
				if err := messaging.DeclareTopology(ch, amqpCfg.Exchange, amqpCfg.Queue, amqpCfg.RoutingKey); err != nil {
					return err
				}

				handler := app.reconciliationHandler(&jsonNotifier{w: cmd.OutOrStdout()})
				consumer := messaging.NewConsumer(ch, amqpCfg.Queue, handler, app.log, messaging.WithPrefetch(prefetch))
				app.log.Info("consuming ledger events",
					zap.String("exchange", amqpCfg.Exchange),
					zap.String("queue", amqpCfg.Queue))

				err = consumer.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	consume.Flags().IntVar(&prefetch, "prefetch", 10, "unacknowledged deliveries held at once")

	cmd.AddCommand(consume)
	return cmd
}

// jsonNotifier writes each reconciliation alert as a JSON line
type jsonNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *jsonNotifier) Notify(_ context.Context, alert ledgerapp.ReconciliationAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return json.NewEncoder(n.w).Encode(alert)
}
