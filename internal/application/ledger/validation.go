package ledger

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/go-playground/validator/v10"
)

// commandValidator checks commands before any side effect happens
type commandValidator struct {
	validate         *validator.Validate
	maxLinkedBudgets int
}

func newCommandValidator(maxLinkedBudgets int) *commandValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &commandValidator{validate: v, maxLinkedBudgets: maxLinkedBudgets}
}

// Struct runs the tag rules and returns a *ledger.ValidationError, or nil
func (v *commandValidator) Struct(cmd any) error {
	if violations := v.structViolations(cmd); len(violations) > 0 {
		return ledger.NewValidationError(violations...)
	}
	return nil
}

func (v *commandValidator) structViolations(cmd any) []ledger.FieldViolation {
	err := v.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ledger.FieldViolation{{Field: "command", Message: err.Error()}}
	}
	violations := make([]ledger.FieldViolation, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		violations = append(violations, ledger.FieldViolation{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return violations
}

// Expense validates a create-expense command
func (v *commandValidator) Expense(cmd ledger.CreateExpenseCommand) error {
	violations := v.structViolations(cmd)
	violations = append(violations, kindViolations(cmd.Kind, ledger.RecordKindExpense)...)
	violations = append(violations, categoryViolations(cmd.Category)...)

	if cmd.Kind == ledger.RecordKindTransfer && len(cmd.LinkedBudgets) > 0 {
		violations = append(violations, ledger.FieldViolation{
			Field:   "linked_budgets",
			Message: "Transfers cannot be linked to budgets",
		})
	}
	if len(cmd.LinkedBudgets) > v.maxLinkedBudgets {
		violations = append(violations, ledger.FieldViolation{
			Field:   "linked_budgets",
			Message: "Must be at most " + strconv.Itoa(v.maxLinkedBudgets) + " budgets",
		})
	}
	if dup, ok := firstDuplicate(cmd.LinkedBudgets); ok {
		violations = append(violations, ledger.FieldViolation{
			Field:   "linked_budgets",
			Message: "Budget " + dup + " is listed more than once",
		})
	}

	if len(violations) > 0 {
		return ledger.NewValidationError(violations...)
	}
	return nil
}

// Income validates a create-income command
func (v *commandValidator) Income(cmd ledger.CreateIncomeCommand) error {
	violations := v.structViolations(cmd)
	violations = append(violations, kindViolations(cmd.Kind, ledger.RecordKindIncome)...)
	violations = append(violations, categoryViolations(cmd.Category)...)

	if len(violations) > 0 {
		return ledger.NewValidationError(violations...)
	}
	return nil
}

// kindViolations accepts the entry point's own kind or a transfer, which is
// recorded as one expense and one income
func kindViolations(kind, entry ledger.RecordKind) []ledger.FieldViolation {
	if kind == "" {
		// reported by the required tag
		return nil
	}
	if !kind.IsValid() {
		return []ledger.FieldViolation{{Field: "kind", Message: "Must be one of: expense income transfer"}}
	}
	if kind != entry && kind != ledger.RecordKindTransfer {
		return []ledger.FieldViolation{{Field: "kind", Message: "Must be " + entry.String() + " or transfer"}}
	}
	return nil
}

func categoryViolations(ref ledger.CategoryRef) []ledger.FieldViolation {
	var verr *ledger.ValidationError
	if err := ref.Validate(); errors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}

func firstDuplicate(ids []string) (string, bool) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		switch e.Kind() {
		case reflect.String:
			return "Must be at most " + e.Param() + " characters"
		case reflect.Slice:
			return "Must have at most " + e.Param() + " items"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "gt":
		return "Must be greater than " + e.Param()
	case "ne":
		return "Must not be " + e.Param()
	default:
		return "Invalid value"
	}
}
