package main

import (
	"context"
	"fmt"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/spf13/cobra"
)

func (c *cli) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create, delete and adjust accounts",
	}
	cmd.AddCommand(c.accountCreateCmd(), c.accountDeleteCmd(), c.accountAdjustCmd())
	return cmd
}

func (c *cli) accountCreateCmd() *cobra.Command {
	var owner, title, accountType, opening string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := parseMoney("opening", opening)
			if err != nil {
				return err
			}
			account, err := ledger.NewAccount(owner, title, ledger.AccountType(accountType), amount)
			if err != nil {
				return printOutcome(cmd, nil, err)
			}
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				if err := app.store.Accounts.Insert(ctx, account); err != nil {
					return printOutcome(cmd, nil, fmt.Errorf("insert account: %w", err))
				}
				return printOutcome(cmd, account, nil)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owning user id")
	cmd.Flags().StringVar(&title, "title", "", "account title")
	cmd.Flags().StringVar(&accountType, "type", string(ledger.AccountTypeDebit), "Debit, Credit, Food Voucher, Restaurant Voucher or Savings")
	cmd.Flags().StringVar(&opening, "opening", "0", "opening balance")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (c *cli) accountDeleteCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "delete <account-id>",
		Short: "Delete an account with all of its expenses and incomes",
		Long: `Delete an account and cascade to every expense and income recorded on it.

The cascade can stop part way; rerunning the command resumes it. Budget
history entries are kept as an audit trail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				result, err := app.orchestrator.DeleteAccount(ctx, ledger.DeleteAccountCommand{AccountID: args[0], OwnerID: owner})
				return printOutcome(cmd, result, err)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owning user id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (c *cli) accountAdjustCmd() *cobra.Command {
	var owner, delta string
	cmd := &cobra.Command{
		Use:   "adjust <account-id>",
		Short: "Change an account balance by a signed amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseMoney("delta", delta)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				result, err := app.orchestrator.AdjustAccountBalance(ctx, ledger.AdjustBalanceCommand{
					AccountID: args[0],
					OwnerID:   owner,
					Delta:     amount,
				})
				return printOutcome(cmd, result, err)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owning user id")
	cmd.Flags().StringVar(&delta, "delta", "", "signed amount, e.g. -25.00")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}
