package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalublugerbl4/shop/internal/models"
)

func newSizeExtractor() *SizePriceExtractor {
	return NewSizePriceExtractor(Money{Rate: 12.5}, testLogger())
}

func appStateCandidate(root map[string]any) []Candidate {
	return []Candidate{{Source: SourceAppState, Rank: 0, Root: root}}
}

func TestSizesFromPropertyValueTable(t *testing.T) {
	root := map[string]any{
		"saleProperties": []any{
			map[string]any{
				"name": "Размер",
				"values": []any{
					map[string]any{"propertyValueId": float64(1), "value": "40"},
					map[string]any{"propertyValueId": float64(2), "value": "41"},
				},
			},
		},
		"skus": []any{
			map[string]any{"propertyValueIds": []any{float64(2)}, "price": float64(13500)},
			map[string]any{"propertyValueIds": []any{float64(1)}, "price": float64(12500)},
		},
	}

	sizes := newSizeExtractor().Extract(appStateCandidate(root), testPage("<html></html>"))

	require.Len(t, sizes, 2)
	assert.Equal(t, models.SizePrice{Size: "40", PriceCents: 1250000}, sizes[0])
	assert.Equal(t, models.SizePrice{Size: "41", PriceCents: 1350000}, sizes[1])
}

func TestSizesFromSiblingPriceList(t *testing.T) {
	root := map[string]any{
		"saleProperties": []any{
			map[string]any{
				"name": "Size EU",
				"values": []any{
					map[string]any{"propertyValueId": float64(10), "value": "42"},
					map[string]any{"propertyValueId": float64(11), "value": "43"},
				},
			},
		},
		"skus": []any{
			map[string]any{"skuId": float64(100), "propertyValueIds": []any{float64(10)}},
			map[string]any{"skuId": float64(101), "propertyValueIds": []any{float64(11)}},
		},
		"skuPrices": []any{
			map[string]any{"skuId": float64(100), "price": float64(9990)},
			map[string]any{"skuId": float64(101), "price": float64(10990)},
		},
	}

	sizes := newSizeExtractor().Extract(appStateCandidate(root), testPage("<html></html>"))

	require.Len(t, sizes, 2)
	assert.Equal(t, models.SizePrice{Size: "42", PriceCents: 999000}, sizes[0])
	assert.Equal(t, models.SizePrice{Size: "43", PriceCents: 1099000}, sizes[1])
}

func TestSizesSkuTitleFallback(t *testing.T) {
	root := map[string]any{
		"skus": []any{
			map[string]any{"title": "Dunk Low 44", "price": float64(11000)},
			map[string]any{"title": "Dunk Low 42", "price": float64(10500)},
		},
	}

	sizes := newSizeExtractor().Extract(appStateCandidate(root), testPage("<html></html>"))

	require.Len(t, sizes, 2)
	assert.Equal(t, "42", sizes[0].Size)
	assert.Equal(t, "44", sizes[1].Size)
}

func TestSizesUniformPricesRederivedFromMarkup(t *testing.T) {
	// Every SKU falls back to the shared base price, so the matrix is
	// rebuilt from the rendered size list instead.
	root := map[string]any{
		"price": float64(12000),
		"saleProperties": []any{
			map[string]any{
				"name": "Размер",
				"values": []any{
					map[string]any{"propertyValueId": float64(1), "value": "40"},
					map[string]any{"propertyValueId": float64(2), "value": "41"},
				},
			},
		},
		"skus": []any{
			map[string]any{"propertyValueIds": []any{float64(1)}},
			map[string]any{"propertyValueIds": []any{float64(2)}},
		},
	}

	html := `<html><body><div class="size-list">
		<div class="size-item">40: 12 345 ₽</div>
		<div class="size-item">41: 13 345 ₽</div>
	</div></body></html>`

	sizes := newSizeExtractor().Extract(appStateCandidate(root), testPage(html))

	require.Len(t, sizes, 2)
	assert.Equal(t, models.SizePrice{Size: "40", PriceCents: 1234500}, sizes[0])
	assert.Equal(t, models.SizePrice{Size: "41", PriceCents: 1334500}, sizes[1])
}

func TestSizesUniformPricesNoMarkupEmptiesMatrix(t *testing.T) {
	root := map[string]any{
		"price": float64(12000),
		"saleProperties": []any{
			map[string]any{
				"name": "Размер",
				"values": []any{
					map[string]any{"propertyValueId": float64(1), "value": "40"},
					map[string]any{"propertyValueId": float64(2), "value": "41"},
				},
			},
		},
		"skus": []any{
			map[string]any{"propertyValueIds": []any{float64(1)}},
			map[string]any{"propertyValueIds": []any{float64(2)}},
		},
	}

	sizes := newSizeExtractor().Extract(appStateCandidate(root), testPage("<html><body></body></html>"))
	assert.Empty(t, sizes)
}

func TestSizesMergeByProximity(t *testing.T) {
	structured := []models.SizePrice{
		{Size: "39,5", PriceCents: 1200000},
		{Size: "41", PriceCents: 1200000},
	}
	markup := []models.SizePrice{
		{Size: "39.5 (40.5)", PriceCents: 1234500},
		{Size: "42", PriceCents: 1434500},
	}

	merged := mergeByProximity(structured, markup)

	require.Len(t, merged, 3)
	// Structured label survives, markup price wins.
	assert.Contains(t, merged, models.SizePrice{Size: "39,5", PriceCents: 1234500})
	// Unmatched markup entries are appended.
	assert.Contains(t, merged, models.SizePrice{Size: "42", PriceCents: 1434500})
}

func TestSizesFromPageTextOnly(t *testing.T) {
	html := `<html><body><p>
		39.5 (40.5) за 12 345 ₽, 42 за 14 345 ₽
	</p></body></html>`

	sizes := newSizeExtractor().Extract(nil, testPage(html))

	require.Len(t, sizes, 2)
	assert.Equal(t, models.SizePrice{Size: "39.5 (40.5)", PriceCents: 1234500}, sizes[0])
	assert.Equal(t, models.SizePrice{Size: "42", PriceCents: 1434500}, sizes[1])
}

func TestSortMatrix(t *testing.T) {
	matrix := []models.SizePrice{
		{Size: "42", PriceCents: 3},
		{Size: "One Size", PriceCents: 4},
		{Size: "39,5", PriceCents: 1},
		{Size: "40", PriceCents: 2},
	}

	sortMatrix(matrix)

	assert.Equal(t, "39,5", matrix[0].Size)
	assert.Equal(t, "40", matrix[1].Size)
	assert.Equal(t, "42", matrix[2].Size)
	assert.Equal(t, "One Size", matrix[3].Size)
}
