package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storeloom/searchcore/internal/models"
)

func TestEmbeddingText(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		p := models.Product{
			Title:       "Trail Runner 2",
			ProductType: "Shoes",
			Vendor:      "Alpyn",
			Tags:        []string{"trail", "waterproof"},
		}
		assert.Equal(t, "Trail Runner 2\nShoes\nAlpyn\ntrail waterproof", EmbeddingText(p))
	})

	t.Run("sparse product keeps title only", func(t *testing.T) {
		p := models.Product{Title: "Gift Card"}
		assert.Equal(t, "Gift Card", EmbeddingText(p))
	})

	t.Run("empty optional fields leave no blank lines", func(t *testing.T) {
		p := models.Product{Title: "Socks", Vendor: "Alpyn"}
		assert.Equal(t, "Socks\nAlpyn", EmbeddingText(p))
	})
}
