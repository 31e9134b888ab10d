package ledger

import "github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"

// Collection names
const (
	CollectionCategories    = "categories"
	CollectionAccounts      = "accounts"
	CollectionExpenses      = "expenses"
	CollectionIncomes       = "incomes"
	CollectionBudgets       = "budgets"
	CollectionBudgetHistory = "budget_history"
)

// Store bundles the collections the engine reads and writes.
// There is no transaction spanning them.
type Store struct {
	Categories    shared.Collection[Category]
	Accounts      shared.Collection[Account]
	Expenses      shared.Collection[Expense]
	Incomes       shared.Collection[Income]
	Budgets       shared.Collection[Budget]
	BudgetHistory shared.Collection[BudgetHistoryEntry]
}

// CollectionSpecs returns the collection definitions, including the unique
// keys adapters must enforce
func CollectionSpecs() map[string]shared.CollectionSpec {
	return map[string]shared.CollectionSpec{
		CollectionCategories: {
			Name:         CollectionCategories,
			UniqueFields: [][]string{{shared.FieldOwnerID, FieldCategoryName}},
		},
		CollectionAccounts:      {Name: CollectionAccounts},
		CollectionExpenses:      {Name: CollectionExpenses},
		CollectionIncomes:       {Name: CollectionIncomes},
		CollectionBudgets:       {Name: CollectionBudgets},
		CollectionBudgetHistory: {Name: CollectionBudgetHistory},
	}
}
