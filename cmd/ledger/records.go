package main

import (
	"context"
	"errors"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/spf13/cobra"
)

// recordFlags are the flags shared by expense and income creation
type recordFlags struct {
	owner       string
	account     string
	recordID    string
	kind        string
	name        string
	description string
	amount      string
	date        string
	categoryID  string
	category    string
	subCategory string
	tags        []string
}

func (f *recordFlags) register(cmd *cobra.Command, defaultKind ledger.RecordKind) {
	fs := cmd.Flags()
	fs.StringVar(&f.owner, "owner", "", "owning user id")
	fs.StringVar(&f.account, "account", "", "account id")
	fs.StringVar(&f.recordID, "id", "", "record id (uuid); repeat a command with the same id to resume it")
	fs.StringVar(&f.kind, "kind", string(defaultKind), "record kind")
	fs.StringVar(&f.name, "name", "", "short name")
	fs.StringVar(&f.description, "description", "", "description")
	fs.StringVar(&f.amount, "amount", "", "amount in major units, e.g. 120.50")
	fs.StringVar(&f.date, "date", "", "record date, YYYY-MM-DD (default today)")
	fs.StringVar(&f.categoryID, "category-id", "", "existing category id")
	fs.StringVar(&f.category, "category", "", "category name, created when missing")
	fs.StringVar(&f.subCategory, "sub-category", "", "sub category")
	fs.StringSliceVar(&f.tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")
	cmd.MarkFlagsMutuallyExclusive("category-id", "category")
	cmd.MarkFlagsOneRequired("category-id", "category")
}

func (f *recordFlags) fields(now time.Time) (ledger.RecordFields, ledger.CategoryRef, error) {
	amount, err := parseMoney("amount", f.amount)
	if err != nil {
		return ledger.RecordFields{}, ledger.CategoryRef{}, err
	}
	date, err := parseDate(f.date, now)
	if err != nil {
		return ledger.RecordFields{}, ledger.CategoryRef{}, err
	}

	ref := ledger.CategoryByName(f.category)
	if f.categoryID != "" {
		ref = ledger.CategoryByID(f.categoryID)
	}
	return ledger.RecordFields{
		AccountID:   f.account,
		ShortName:   f.name,
		Description: f.description,
		Amount:      amount,
		Date:        date,
		SubCategory: f.subCategory,
		Tags:        f.tags,
	}, ref, nil
}

func (c *cli) expenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Create and delete expenses",
	}

	var (
		rf      recordFlags
		budgets []string
		paid    bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Record an expense and apply it to its budgets",
		Long: `Record an expense and apply its amount to every linked budget.

If a budget update fails the expense is rolled back. When the rollback
itself fails the command exits non-zero with a reconciliation error and a
ledger.reconciliation_required event is published.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, ref, err := rf.fields(time.Now())
			if err != nil {
				return err
			}
			command := ledger.CreateExpenseCommand{
				RecordID:      rf.recordID,
				OwnerID:       rf.owner,
				Kind:          ledger.RecordKind(rf.kind),
				Category:      ref,
				RecordFields:  fields,
				IsPaid:        paid,
				LinkedBudgets: budgets,
			}
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				result, err := app.orchestrator.CreateExpense(ctx, command)
				return printOutcome(cmd, result, err)
			})
		},
	}
	rf.register(create, ledger.RecordKindExpense)
	create.Flags().StringSliceVar(&budgets, "budget", nil, "linked budget id (repeatable)")
	create.Flags().BoolVar(&paid, "paid", false, "mark the expense as already paid")

	var owner string
	del := &cobra.Command{
		Use:   "delete <expense-id>",
		Short: "Delete an expense and detach it from the incomes that paid it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				result, err := app.orchestrator.DeleteExpense(ctx, ledger.DeleteExpenseCommand{ExpenseID: args[0], OwnerID: owner})
				return printOutcome(cmd, result, err)
			})
		},
	}
	del.Flags().StringVar(&owner, "owner", "", "owning user id")
	_ = del.MarkFlagRequired("owner")

	cmd.AddCommand(create, del)
	return cmd
}

func (c *cli) incomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "income",
		Short: "Create and delete incomes",
	}

	var (
		rf   recordFlags
		pays []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Record an income and settle the expenses it pays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, ref, err := rf.fields(time.Now())
			if err != nil {
				return err
			}
			command := ledger.CreateIncomeCommand{
				RecordID:     rf.recordID,
				OwnerID:      rf.owner,
				Kind:         ledger.RecordKind(rf.kind),
				Category:     ref,
				RecordFields: fields,
				ExpensesPaid: pays,
			}
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				result, err := app.orchestrator.CreateIncome(ctx, command)
				return printOutcome(cmd, result, err)
			})
		},
	}
	rf.register(create, ledger.RecordKindIncome)
	create.Flags().StringSliceVar(&pays, "pays", nil, "id of an expense this income settles (repeatable)")

	var owner string
	del := &cobra.Command{
		Use:   "delete <income-id>",
		Short: "Delete an income and revert the expenses only it settled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application) error {
				result, err := app.orchestrator.DeleteIncome(ctx, ledger.DeleteIncomeCommand{IncomeID: args[0], OwnerID: owner})
				return printOutcome(cmd, result, err)
			})
		},
	}
	del.Flags().StringVar(&owner, "owner", "", "owning user id")
	_ = del.MarkFlagRequired("owner")

	cmd.AddCommand(create, del)
	return cmd
}

// failure is printed alongside any partial result when a saga fails
type failure struct {
	Code       string                  `json:"code"`
	Message    string                  `json:"message"`
	Violations []ledger.FieldViolation `json:"violations,omitempty"`
}

// printOutcome prints the result, and the error code when err is set. Sagas
// may return a partial result with an error, so both are shown.
func printOutcome(cmd *cobra.Command, result any, err error) error {
	out := map[string]any{"result": result}
	if err != nil {
		f := failure{Code: errorCode(err), Message: err.Error()}
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			f.Violations = verr.Violations
		}
		out["error"] = f
	}
	if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}
