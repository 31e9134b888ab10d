package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFromDecimal(t *testing.T) {
	t.Run("converts major units to cents", func(t *testing.T) {
		m, err := NewMoneyFromDecimal(decimal.RequireFromString("120.50"))
		require.NoError(t, err)
		assert.Equal(t, Money(12050), m)
	})

	t.Run("accepts negative amounts", func(t *testing.T) {
		m, err := NewMoneyFromDecimal(decimal.RequireFromString("-3.1"))
		require.NoError(t, err)
		assert.Equal(t, Money(-310), m)
	})

	t.Run("rejects sub-cent precision", func(t *testing.T) {
		_, err := NewMoneyFromDecimal(decimal.RequireFromString("1.005"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "more than 2 decimal places")
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("100")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), m.Cents())
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number")
		assert.Error(t, err)
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	a := Money(1050)
	b := Money(250)

	assert.Equal(t, Money(1300), a.Add(b))
	assert.Equal(t, Money(800), a.Sub(b))
	assert.Equal(t, Money(-1050), a.Neg())
	assert.True(t, a.IsPositive())
	assert.False(t, a.Neg().IsPositive())
	assert.True(t, Money(0).IsZero())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "10.50", Money(1050).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-2.00", Money(-200).String())
	assert.True(t, Money(1999).Decimal().Equal(decimal.RequireFromString("19.99")))
}
