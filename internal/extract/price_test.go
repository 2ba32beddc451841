package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPriceExtractor() *PriceExtractor {
	return NewPriceExtractor(Money{Rate: 12.5}, testLogger())
}

func TestPriceFromAppState(t *testing.T) {
	html := `<html><body>
		<script id="__NEXT_DATA__">{"props": {"goodsName": "x", "price": 12990}}</script>
	</body></html>`

	page := testPage(html)
	candidates := NewLocator(testLogger()).Locate(page)

	price, err := newPriceExtractor().Extract(candidates, page)
	require.NoError(t, err)
	assert.Equal(t, int64(1299000), price)
}

func TestPriceYuanQuoteConverted(t *testing.T) {
	html := `<html><body>
		<script id="__NEXT_DATA__">{"props": {"goodsName": "x", "price": 99}}</script>
	</body></html>`

	page := testPage(html)
	candidates := NewLocator(testLogger()).Locate(page)

	price, err := newPriceExtractor().Extract(candidates, page)
	require.NoError(t, err)
	assert.Equal(t, int64(123750), price)
}

func TestPriceFromLinkedDataOffers(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{
			name: "offers object",
			json: `{"@type": "Product", "offers": {"price": "8990"}}`,
		},
		{
			name: "offers array",
			json: `{"@type": "Product", "offers": [{"lowPrice": 8990}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<html><head><script type="application/ld+json">` + tt.json + `</script></head></html>`
			page := testPage(html)
			candidates := NewLocator(testLogger()).Locate(page)

			price, err := newPriceExtractor().Extract(candidates, page)
			require.NoError(t, err)
			assert.Equal(t, int64(899000), price)
		})
	}
}

func TestPriceFromMarkupSelector(t *testing.T) {
	html := `<html><body>
		<h1>Air Max 90</h1>
		<div class="product-price">12 345 ₽</div>
	</body></html>`
	page := testPage(html)

	price, err := newPriceExtractor().Extract(nil, page)
	require.NoError(t, err)
	assert.Equal(t, int64(1234500), price)
}

func TestPriceFromMetaTag(t *testing.T) {
	html := `<html><head>
		<meta property="product:price:amount" content="7490">
	</head><body></body></html>`
	page := testPage(html)

	price, err := newPriceExtractor().Extract(nil, page)
	require.NoError(t, err)
	assert.Equal(t, int64(749000), price)
}

func TestPriceFromPageTextScan(t *testing.T) {
	html := `<html><body>
		<p>Самая низкая цена за пару: 15 990 ₽ с доставкой</p>
	</body></html>`
	page := testPage(html)

	price, err := newPriceExtractor().Extract(nil, page)
	require.NoError(t, err)
	assert.Equal(t, int64(1599000), price)
}

func TestPriceImplausibleStructuredFallsThrough(t *testing.T) {
	// The structured price is above any plausible quote, so the markup
	// selector must win instead.
	html := `<html><body>
		<script id="__NEXT_DATA__">{"props": {"goodsName": "x", "price": 99999999}}</script>
		<div class="price">9 990 ₽</div>
	</body></html>`

	page := testPage(html)
	candidates := NewLocator(testLogger()).Locate(page)

	price, err := newPriceExtractor().Extract(candidates, page)
	require.NoError(t, err)
	assert.Equal(t, int64(999000), price)
}

func TestPriceMissingEverywhere(t *testing.T) {
	html := `<html><body><p>товар снят с продажи</p></body></html>`
	page := testPage(html)

	_, err := newPriceExtractor().Extract(nil, page)
	require.Error(t, err)

	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "price", fieldErr.Field)
}
