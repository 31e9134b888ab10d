package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRef(t *testing.T) {
	t.Run("by id", func(t *testing.T) {
		ref := CategoryByID("c-1")
		assert.Equal(t, CategoryRefByID, ref.Kind())
		assert.Equal(t, "c-1", ref.Value())
		assert.NoError(t, ref.Validate())
		assert.Equal(t, "id:c-1", ref.String())
	})

	t.Run("name that looks like an id stays a name", func(t *testing.T) {
		ref := CategoryByName("5f8d0d55b54764421b7156c9")
		assert.Equal(t, CategoryRefByName, ref.Kind())
		assert.NoError(t, ref.Validate())
	})

	t.Run("zero value is invalid", func(t *testing.T) {
		var ref CategoryRef
		assert.True(t, ref.IsZero())
		assert.ErrorIs(t, ref.Validate(), ErrValidation)
	})

	t.Run("empty value is invalid", func(t *testing.T) {
		assert.ErrorIs(t, CategoryByName("  ").Validate(), ErrValidation)
	})
}

func TestNewCategory(t *testing.T) {
	t.Run("seeds the sub-category", func(t *testing.T) {
		c, err := NewCategory("u1", "Food", "", "Groceries")
		require.NoError(t, err)
		assert.Equal(t, []string{"Groceries"}, c.SubCategories)
		assert.True(t, c.HasSubCategory("Groceries"))
		assert.False(t, c.HasSubCategory("groceries"))
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, int64(1), c.Version)
	})

	t.Run("empty sub-category leaves the set empty", func(t *testing.T) {
		c, err := NewCategory("u1", "Food", "", "")
		require.NoError(t, err)
		assert.Empty(t, c.SubCategories)
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := NewCategory("u1", "", "", "")
		assert.ErrorIs(t, err, ErrValidation)
	})
}
