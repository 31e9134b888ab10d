package ledger

import (
	"slices"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
)

// Budget and history field names
const (
	FieldBudgetCurrentAmount  = "current_amount"
	FieldBudgetAppliedRecords = "applied_records"
	FieldBudgetID             = "budget_id"
	FieldRecordID             = "record_id"
	FieldEntryKind            = "entry_kind"
)

// PeriodType is the recurrence of a budget period
type PeriodType string

const (
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodYearly  PeriodType = "yearly"
	PeriodCustom  PeriodType = "custom"
)

// BudgetPeriod is the window a budget accumulates spend over
type BudgetPeriod struct {
	Type  PeriodType `bson:"type" json:"type"`
	Start time.Time  `bson:"start" json:"start"`
	End   time.Time  `bson:"end" json:"end"`
}

// Budget accumulates the amounts of the expenses linked to it.
// CurrentAmount always equals InitialAmount plus the deltas of its history entries.
// AppliedRecords holds the ids of the expenses currently counted in
// CurrentAmount and only changes in the same update as the amount.
type Budget struct {
	shared.BaseDocument `bson:",inline"`
	OwnerID             string            `bson:"owner_id" json:"owner_id"`
	Name                string            `bson:"name" json:"name"`
	Description         string            `bson:"description" json:"description"`
	Limit               valueobject.Money `bson:"limit" json:"limit"`
	InitialAmount       valueobject.Money `bson:"initial_amount" json:"initial_amount"`
	CurrentAmount       valueobject.Money `bson:"current_amount" json:"current_amount"`
	AppliedRecords      []string          `bson:"applied_records" json:"applied_records"`
	Period              BudgetPeriod      `bson:"period" json:"period"`
	IsActive            bool              `bson:"is_active" json:"is_active"`
}

// HasApplied reports whether the record's amount is counted in the budget
func (b *Budget) HasApplied(recordID string) bool {
	return slices.Contains(b.AppliedRecords, recordID)
}

// NewBudget creates an active budget whose current amount starts at initial
func NewBudget(ownerID, name string, limit, initial valueobject.Money, period BudgetPeriod) (*Budget, error) {
	var violations []FieldViolation
	if ownerID == "" {
		violations = append(violations, FieldViolation{Field: "owner_id", Message: "must not be empty"})
	}
	if name == "" {
		violations = append(violations, FieldViolation{Field: "name", Message: "must not be empty"})
	}
	if !period.End.IsZero() && period.End.Before(period.Start) {
		violations = append(violations, FieldViolation{Field: "period", Message: "end must not be before start"})
	}
	if len(violations) > 0 {
		return nil, NewValidationError(violations...)
	}
	return &Budget{
		BaseDocument:   shared.NewBaseDocument(""),
		OwnerID:        ownerID,
		Name:           name,
		Limit:          limit,
		InitialAmount:  initial,
		CurrentAmount:  initial,
		AppliedRecords: []string{},
		Period:         period,
		IsActive:       true,
	}, nil
}

// EntryKind tells whether a history entry applied or reversed an expense
type EntryKind string

const (
	EntryKindApply    EntryKind = "apply"
	EntryKindReversal EntryKind = "reversal"
)

// BudgetHistoryEntry is an append-only snapshot of one change to a budget's
// current amount. The record fields are copied so the entry stays readable
// after the record itself is deleted.
type BudgetHistoryEntry struct {
	shared.BaseDocument `bson:",inline"`
	BudgetID            string            `bson:"budget_id" json:"budget_id"`
	OwnerID             string            `bson:"owner_id" json:"owner_id"`
	RecordID            string            `bson:"record_id" json:"record_id"`
	RecordName          string            `bson:"record_name" json:"record_name"`
	RecordDate          time.Time         `bson:"record_date" json:"record_date"`
	RecordAmount        valueobject.Money `bson:"record_amount" json:"record_amount"`
	AmountBefore        valueobject.Money `bson:"budget_amount_before" json:"budget_amount_before"`
	AmountAfter         valueobject.Money `bson:"budget_amount_after" json:"budget_amount_after"`
	EntryKind           EntryKind         `bson:"entry_kind" json:"entry_kind"`
}

// Delta returns the change this entry made to the budget
func (e *BudgetHistoryEntry) Delta() valueobject.Money {
	return e.AmountAfter.Sub(e.AmountBefore)
}

// NewBudgetHistoryEntry snapshots a budget change caused by an expense
func NewBudgetHistoryEntry(budget *Budget, expense *Expense, kind EntryKind, before, after valueobject.Money) *BudgetHistoryEntry {
	return &BudgetHistoryEntry{
		BaseDocument: shared.NewBaseDocument(""),
		BudgetID:     budget.ID,
		OwnerID:      budget.OwnerID,
		RecordID:     expense.ID,
		RecordName:   expense.ShortName,
		RecordDate:   expense.Date,
		RecordAmount: expense.Amount,
		AmountBefore: before,
		AmountAfter:  after,
		EntryKind:    kind,
	}
}

// NetApplications counts apply entries minus reversal entries for one record.
// A positive value means the record's amount is currently reflected in the budget.
func NetApplications(entries []BudgetHistoryEntry, recordID string) int {
	net := 0
	for _, e := range entries {
		if e.RecordID != recordID {
			continue
		}
		switch e.EntryKind {
		case EntryKindApply:
			net++
		case EntryKindReversal:
			net--
		}
	}
	return net
}

// ExpectedCurrentAmount recomputes a budget's amount from its history
func ExpectedCurrentAmount(initial valueobject.Money, entries []BudgetHistoryEntry) valueobject.Money {
	total := initial
	for i := range entries {
		total = total.Add(entries[i].Delta())
	}
	return total
}
