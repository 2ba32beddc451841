package extract

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalublugerbl4/shop/internal/fetch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPage(html string) *fetch.Page {
	return &fetch.Page{
		URL:        "https://thepoizon.ru/product/42",
		BaseDomain: "https://thepoizon.ru",
		Body:       []byte(html),
	}
}

func TestLocatorPriorityOrder(t *testing.T) {
	html := `<html><head>
		<script>var state = {"name": "Sneaker", "price": 12000};</script>
		<script type="application/ld+json">{"@type": "Product", "name": "Sneaker LD"}</script>
	</head><body>
		<script id="__NEXT_DATA__">{"props": {"pageProps": {"goodsName": "Sneaker ND"}}}</script>
	</body></html>`

	locator := NewLocator(testLogger())
	candidates := locator.Locate(testPage(html))

	require.Len(t, candidates, 3)
	assert.Equal(t, SourceAppState, candidates[0].Source)
	assert.Equal(t, SourceLinkedData, candidates[1].Source)
	assert.Equal(t, SourceInlineScript, candidates[2].Source)
	for i, c := range candidates {
		assert.Equal(t, i, c.Rank)
	}
}

func TestLocatorSkipsBrokenCandidates(t *testing.T) {
	html := `<html><head>
		<script id="__NEXT_DATA__">{{{not json at all</script>
		<script type="application/ld+json">{"@type": "Product", "name": "Still here"}</script>
	</head></html>`

	locator := NewLocator(testLogger())
	candidates := locator.Locate(testPage(html))

	require.Len(t, candidates, 1)
	assert.Equal(t, SourceLinkedData, candidates[0].Source)
}

func TestLocatorRepairsRelaxedJSON(t *testing.T) {
	// Trailing comma is invalid JSON but repairable.
	html := `<html><body>
		<script id="__NEXT_DATA__">{"goodsName": "Repaired", "price": 9900,}</script>
	</body></html>`

	locator := NewLocator(testLogger())
	candidates := locator.Locate(testPage(html))

	require.Len(t, candidates, 1)
	name, ok := findString(candidates[0].Root, "goodsName")
	require.True(t, ok)
	assert.Equal(t, "Repaired", name)
}

func TestLocatorUnwrapsLinkedDataArray(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">[{"@type": "Product", "name": "Wrapped"}]</script>
	</head></html>`

	locator := NewLocator(testLogger())
	candidates := locator.Locate(testPage(html))

	require.Len(t, candidates, 1)
	m, ok := candidates[0].Root.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Wrapped", m["name"])
}

func TestFirstObjectLiteral(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected string
	}{
		{
			name:     "assignment pattern",
			script:   `window.__STATE__ = {"a": 1};`,
			expected: `{"a": 1}`,
		},
		{
			name:     "nested braces",
			script:   `var x = {"a": {"b": 2}}; doSomething();`,
			expected: `{"a": {"b": 2}}`,
		},
		{
			name:     "braces inside strings ignored",
			script:   `var x = {"a": "}{"};`,
			expected: `{"a": "}{"}`,
		},
		{
			name:     "unbalanced returns empty",
			script:   `var x = {"a": 1`,
			expected: "",
		},
		{
			name:     "no object",
			script:   `console.log("hi")`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, firstObjectLiteral(tt.script))
		})
	}
}

func TestFindValueShallowestWins(t *testing.T) {
	root := map[string]any{
		"outer": map[string]any{
			"price": float64(200),
			"inner": map[string]any{
				"price": float64(999),
			},
		},
	}

	v, ok := findNumber(root, "price")
	require.True(t, ok)
	assert.Equal(t, float64(200), v)
}

func TestFindValueDeterministicAcrossRuns(t *testing.T) {
	// Two subtrees at the same depth both carry the key; the lookup must
	// resolve to the same one on every call over identical input.
	root := map[string]any{
		"recommended": map[string]any{"price": float64(300)},
		"detail":      map[string]any{"price": float64(200)},
	}

	seen := make(map[float64]bool)
	for i := 0; i < 200; i++ {
		v, ok := findNumber(root, "price")
		require.True(t, ok)
		seen[v] = true
	}

	assert.Equal(t, map[float64]bool{200: true}, seen)
}

func TestExtractorIdempotentOnIdenticalMarkup(t *testing.T) {
	html := `<html><body>
		<script id="__NEXT_DATA__">{
			"detail": {"goodsName": "Air Max 90", "price": 12500, "images": ["https://cdn.x.ru/0.jpg", "https://cdn.x.ru/1.jpg"]},
			"related": {"goodsName": "Other Shoe", "price": 9900, "images": ["https://cdn.x.ru/9.jpg"]}
		}</script>
	</body></html>`

	title := NewTitleExtractor(testLogger())
	price := NewPriceExtractor(Money{Rate: 12.5}, testLogger())
	images := NewImageSelector(testLogger())

	var firstTitle string
	var firstPrice int64
	var firstImages []string

	for i := 0; i < 50; i++ {
		page := testPage(html)
		candidates := NewLocator(testLogger()).Locate(page)

		gotTitle, err := title.Extract(candidates, page)
		require.NoError(t, err)
		gotPrice, err := price.Extract(candidates, page)
		require.NoError(t, err)
		gotImages := images.Select(candidates, page)

		if i == 0 {
			firstTitle, firstPrice, firstImages = gotTitle, gotPrice, gotImages
			continue
		}
		require.Equal(t, firstTitle, gotTitle)
		require.Equal(t, firstPrice, gotPrice)
		require.Equal(t, firstImages, gotImages)
	}
}

func TestFindNumberParsesStringValues(t *testing.T) {
	root := map[string]any{"price": "129,5"}

	v, ok := findNumber(root, "price")
	require.True(t, ok)
	assert.Equal(t, 129.5, v)
}
