package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
)

// Ledger error taxonomy. Every error returned by the engine matches one of
// these with errors.Is.
var (
	ErrValidation                   = shared.NewDomainError("VALIDATION_ERROR", "Command failed validation")
	ErrNotFound                     = shared.ErrNotFound
	ErrUnauthorized                 = shared.ErrUnauthorized
	ErrInvalidCategoryReference     = shared.NewDomainError("INVALID_CATEGORY_REFERENCE", "Category reference does not resolve to a category of this user")
	ErrBudgetConcurrencyConflict    = shared.NewDomainError("BUDGET_CONCURRENCY_CONFLICT", "Budget kept changing concurrently, retries exhausted")
	ErrPartialBudgetUpdateFailure   = shared.NewDomainError("PARTIAL_BUDGET_UPDATE_FAILURE", "Budget amount updated but history entry could not be written")
	ErrPartialCascadeFailure        = shared.NewDomainError("PARTIAL_CASCADE_FAILURE", "Account cascade deletion stopped before completion")
	ErrExternalStore                = shared.NewDomainError("EXTERNAL_STORE_ERROR", "Document store failure")
	ErrManualReconciliationRequired = shared.NewDomainError("MANUAL_RECONCILIATION_REQUIRED", "Compensation failed, manual reconciliation required")
)

// IsRetryable reports whether the same command may succeed if resubmitted
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalStore) || errors.Is(err, ErrBudgetConcurrencyConflict)
}

// FieldViolation describes one invalid command field
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a command
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

// NewValidationError creates a validation error from violations
func NewValidationError(violations ...FieldViolation) *ValidationError {
	return &ValidationError{Violations: violations}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CascadeStage is a state of the account cascade deletion
type CascadeStage string

const (
	StageVerifyOwnership CascadeStage = "verify_ownership"
	StageGatherExpenses  CascadeStage = "gather_expenses"
	StageGatherIncomes   CascadeStage = "gather_incomes"
	StageDeleteExpenses  CascadeStage = "delete_expenses"
	StageDeleteIncomes   CascadeStage = "delete_incomes"
	StageDeleteAccount   CascadeStage = "delete_account"
	StageDone            CascadeStage = "done"
)

// PartialCascadeError reports a cascade that halted with some records deleted
// and others surviving. The account itself is never deleted in that case.
type PartialCascadeError struct {
	AccountID string
	Stage     CascadeStage
	Surviving []string
	Failures  []DeleteOutcome
}

// Error implements the error interface
func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("account %s cascade halted at %s: %d record(s) could not be deleted",
		e.AccountID, e.Stage, len(e.Surviving))
}

// Is matches ErrPartialCascadeFailure
func (e *PartialCascadeError) Is(target error) bool {
	return target == ErrPartialCascadeFailure
}

// Unwrap exposes the per-record failures
func (e *PartialCascadeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// BudgetApplyError reports the budgets a ledger run could not update.
// errors.Is sees through it to every per-budget error.
type BudgetApplyError struct {
	RecordID string
	Result   ApplyResult
}

// Error implements the error interface
func (e *BudgetApplyError) Error() string {
	ids := make([]string, 0, len(e.Result.Failures))
	for _, f := range e.Result.Failures {
		ids = append(ids, f.BudgetID)
	}
	return fmt.Sprintf("budgets not updated for %s: %s: %v",
		e.RecordID, strings.Join(ids, ","), e.Result.FirstError())
}

// Unwrap exposes the per-budget errors
func (e *BudgetApplyError) Unwrap() []error {
	errs := make([]error, 0, len(e.Result.Failures))
	for _, f := range e.Result.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// ReconciliationError is returned when a compensating action itself failed and
// the ledger is left in a state an operator has to repair.
type ReconciliationError struct {
	Saga     string
	RecordID string
	Cause    error
	Pending  []string
}

// Error implements the error interface
func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s for %s: manual reconciliation required (pending: %s): %v",
		e.Saga, e.RecordID, strings.Join(e.Pending, ","), e.Cause)
}

// Is matches ErrManualReconciliationRequired
func (e *ReconciliationError) Is(target error) bool {
	return target == ErrManualReconciliationRequired
}

// Unwrap returns the failure that triggered compensation
func (e *ReconciliationError) Unwrap() error {
	return e.Cause
}

// StoreError wraps an adapter failure as ErrExternalStore unless it already
// carries a domain code.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if shared.CodeOf(err) != "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return shared.WrapDomainError(ErrExternalStore, op, err)
}
