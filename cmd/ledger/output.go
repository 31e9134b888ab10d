package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
)

const dateLayout = "2006-01-02"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseMoney reads a major-unit amount such as "120.50"
func parseMoney(flag, s string) (valueobject.Money, error) {
	m, err := valueobject.NewMoneyFromString(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}
	return m, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339; empty means now
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date: want YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t.UTC(), nil
}

// errorCodes is checked in order; the first match names the failure
var errorCodes = []*shared.DomainError{
	ledger.ErrManualReconciliationRequired,
	ledger.ErrValidation,
	ledger.ErrPartialCascadeFailure,
	ledger.ErrPartialBudgetUpdateFailure,
	ledger.ErrBudgetConcurrencyConflict,
	ledger.ErrInvalidCategoryReference,
	ledger.ErrUnauthorized,
	ledger.ErrNotFound,
	ledger.ErrExternalStore,
}

func errorCode(err error) string {
	for _, de := range errorCodes {
		if errors.Is(err, de) {
			return de.Code
		}
	}
	if code := shared.CodeOf(err); code != "" {
		return code
	}
	return "INTERNAL"
}
