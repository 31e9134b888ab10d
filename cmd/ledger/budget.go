package main

import (
	"context"
	"fmt"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/spf13/cobra"
)

func (c *cli) budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Create budgets and verify them against their history",
	}
	cmd.AddCommand(c.budgetCreateCmd(), c.budgetVerifyCmd())
	return cmd
}

func (c *cli) budgetCreateCmd() *cobra.Command {
	var owner, name, limit, initial, period, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an active budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limitAmount, err := parseMoney("limit", limit)
			if err != nil {
				return err
			}
			initialAmount, err := parseMoney("initial", initial)
			if err != nil {
				return err
			}
			now := time.Now()
			startDate, err := parseDate(start, now)
			if err != nil {
				return err
			}
			var endDate time.Time
			if end != "" {
				if endDate, err = parseDate(end, now); err != nil {
					return err
				}
			}

			budget, err := ledger.NewBudget(owner, name, limitAmount, initialAmount, ledger.BudgetPeriod{
				Type:  ledger.PeriodType(period),
				Start: startDate,
				End:   endDate,
			})
			if err != nil {
				return printOutcome(cmd, nil, err)
			}
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				if err := app.store.Budgets.Insert(ctx, budget); err != nil {
					return printOutcome(cmd, nil, fmt.Errorf("insert budget: %w", err))
				}
				return printOutcome(cmd, budget, nil)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owning user id")
	cmd.Flags().StringVar(&name, "name", "", "budget name")
	cmd.Flags().StringVar(&limit, "limit", "0", "spending limit")
	cmd.Flags().StringVar(&initial, "initial", "0", "amount already spent")
	cmd.Flags().StringVar(&period, "period", string(ledger.PeriodMonthly), "weekly, monthly, yearly or custom")
	cmd.Flags().StringVar(&start, "start", "", "period start, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&end, "end", "", "period end, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) budgetVerifyCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "verify <budget-id>",
		Short: "Recompute a budget from its history and report drift",
		Long: `Recompute a budget's current amount as its initial amount plus the delta
of every history entry, and compare it with the stored amount.

Exits non-zero when the two differ.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				audit, err := app.orchestrator.VerifyBudget(ctx, owner, args[0])
				if err != nil {
					return printOutcome(cmd, nil, err)
				}
				if perr := printOutcome(cmd, audit, nil); perr != nil {
					return perr
				}
				if !audit.Consistent {
					return fmt.Errorf("budget %s drifted: stored %s, history gives %s",
						audit.BudgetID, audit.CurrentAmount, audit.ExpectedAmount)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owning user id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
