package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleFromAppState(t *testing.T) {
	html := `<html><body>
		<script id="__NEXT_DATA__">{"props": {"goodsName": "Nike Air Max 90", "price": 12000}}</script>
		<h1>Something else entirely</h1>
	</body></html>`

	page := testPage(html)
	candidates := NewLocator(testLogger()).Locate(page)

	title, err := NewTitleExtractor(testLogger()).Extract(candidates, page)
	require.NoError(t, err)
	assert.Equal(t, "Nike Air Max 90", title)
}

func TestTitleFromMarkupWhenNoStructuredData(t *testing.T) {
	html := `<html><body><h1 class="product-title">Adidas Samba OG</h1></body></html>`
	page := testPage(html)

	title, err := NewTitleExtractor(testLogger()).Extract(nil, page)
	require.NoError(t, err)
	assert.Equal(t, "Adidas Samba OG", title)
}

func TestTitleFromDocumentTitleStripsSiteSuffix(t *testing.T) {
	html := `<html><head><title>New Balance 530 - thepoizon.ru</title></head><body></body></html>`
	page := testPage(html)

	title, err := NewTitleExtractor(testLogger()).Extract(nil, page)
	require.NoError(t, err)
	assert.Equal(t, "New Balance 530", title)
}

func TestTitleMissingEverywhere(t *testing.T) {
	html := `<html><body><p>no product here</p></body></html>`
	page := testPage(html)

	_, err := NewTitleExtractor(testLogger()).Extract(nil, page)
	require.Error(t, err)

	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "title", fieldErr.Field)
}

func TestLinkedDataNamePrefersLatinVariant(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">{"@type": "Product", "name": "Кроссовки Jordan", "alternateName": "Air Jordan 1 Mid"}</script>
	</head></html>`

	page := testPage(html)
	candidates := NewLocator(testLogger()).Locate(page)

	title, err := NewTitleExtractor(testLogger()).Extract(candidates, page)
	require.NoError(t, err)
	assert.Equal(t, "Air Jordan 1 Mid", title)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "mixed script keeps latin tokens",
			raw:      "Nike Dunk Low 低帮板鞋",
			expected: "Nike Dunk Low",
		},
		{
			name:     "cyrillic-only passes through",
			raw:      "Кроссовки беговые",
			expected: "Кроссовки беговые",
		},
		{
			name:     "latin-only passes through",
			raw:      "Asics Gel-Kayano 14",
			expected: "Asics Gel-Kayano 14",
		},
		{
			name:     "site suffix stripped",
			raw:      "Puma Speedcat | POIZON официальный сайт",
			expected: "Puma Speedcat",
		},
		{
			name:     "foreign tokens dropped from mixed title",
			raw:      "New 匹克 店",
			expected: "New",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTitle(tt.raw))
		})
	}
}
