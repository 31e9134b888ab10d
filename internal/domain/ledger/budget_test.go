package ledger

import (
	"testing"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBudget(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("current amount starts at initial", func(t *testing.T) {
		b, err := NewBudget("u1", "Food", 50000, 1000, BudgetPeriod{Type: PeriodMonthly, Start: start, End: start.AddDate(0, 1, 0)})
		require.NoError(t, err)
		assert.Equal(t, valueobject.Money(1000), b.CurrentAmount)
		assert.True(t, b.IsActive)
		assert.NotNil(t, b.AppliedRecords)
		assert.False(t, b.HasApplied("r1"))

		b.AppliedRecords = append(b.AppliedRecords, "r1")
		assert.True(t, b.HasApplied("r1"))
	})

	t.Run("rejects inverted period", func(t *testing.T) {
		_, err := NewBudget("u1", "Food", 50000, 0, BudgetPeriod{Type: PeriodCustom, Start: start, End: start.AddDate(0, 0, -1)})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestBudgetHistory_Derivation(t *testing.T) {
	entries := []BudgetHistoryEntry{
		{RecordID: "e1", AmountBefore: 0, AmountAfter: 100, EntryKind: EntryKindApply},
		{RecordID: "e2", AmountBefore: 100, AmountAfter: 350, EntryKind: EntryKindApply},
		{RecordID: "e1", AmountBefore: 350, AmountAfter: 250, EntryKind: EntryKindReversal},
	}

	assert.Equal(t, valueobject.Money(250), ExpectedCurrentAmount(0, entries))
	assert.Equal(t, valueobject.Money(1250), ExpectedCurrentAmount(1000, entries))
	assert.Equal(t, 0, NetApplications(entries, "e1"))
	assert.Equal(t, 1, NetApplications(entries, "e2"))
	assert.Equal(t, 0, NetApplications(entries, "e3"))
	assert.Equal(t, valueobject.Money(-100), entries[2].Delta())
}
