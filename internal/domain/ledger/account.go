package ledger

import (
	"strings"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared/valueobject"
)

// Account field names
const (
	FieldAccountAmount = "amount"
)

// AccountType is the kind of an account
type AccountType string

const (
	AccountTypeDebit      AccountType = "Debit"
	AccountTypeCredit     AccountType = "Credit"
	AccountTypeFood       AccountType = "Food Voucher"
	AccountTypeRestaurant AccountType = "Restaurant Voucher"
	AccountTypeSavings    AccountType = "Savings"
)

// IsValid checks if the account type is valid
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeDebit, AccountTypeCredit, AccountTypeFood, AccountTypeRestaurant, AccountTypeSavings:
		return true
	}
	return false
}

// Account holds a running balance. The balance only changes through explicit,
// owner-verified adjustments; it is never recomputed from records.
type Account struct {
	shared.BaseDocument `bson:",inline"`
	OwnerID             string            `bson:"owner_id" json:"owner_id"`
	Title               string            `bson:"title" json:"title"`
	AccountType         AccountType       `bson:"account_type" json:"account_type"`
	Amount              valueobject.Money `bson:"amount" json:"amount"`
	Color               string            `bson:"color" json:"color"`
	BackgroundColor     string            `bson:"background_color" json:"background_color"`
}

// NewAccount creates an account with an opening balance
func NewAccount(ownerID, title string, accountType AccountType, opening valueobject.Money) (*Account, error) {
	var violations []FieldViolation
	if strings.TrimSpace(ownerID) == "" {
		violations = append(violations, FieldViolation{Field: "owner_id", Message: "must not be empty"})
	}
	if strings.TrimSpace(title) == "" {
		violations = append(violations, FieldViolation{Field: "title", Message: "must not be empty"})
	}
	if !accountType.IsValid() {
		violations = append(violations, FieldViolation{Field: "account_type", Message: "unknown account type " + string(accountType)})
	}
	if len(violations) > 0 {
		return nil, NewValidationError(violations...)
	}
	return &Account{
		BaseDocument: shared.NewBaseDocument(""),
		OwnerID:      ownerID,
		Title:        title,
		AccountType:  accountType,
		Amount:       opening,
	}, nil
}
