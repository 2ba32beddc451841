package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yalublugerbl4/shop/internal/fetch"
	"github.com/yalublugerbl4/shop/internal/models"
)

// SKU lists, property-definition groups and sibling price lists appear under
// different key names depending on the page variant.
var (
	skuListKeys       = []string{"skus", "skuList", "skuInfoList", "skuItems"}
	skuPriceListKeys  = []string{"skuPrices", "priceList", "prices"}
	propertyGroupKeys = []string{"saleProperties", "properties", "propertyList", "specList"}
	sizeGroupKeywords = []string{"размер", "size", "eu", "ru"}
)

// Two sizes from differently-formatted sources count as the same entry when
// their numeric values are closer than this.
const sizeMatchTolerance = 0.6

// Plausible bounds for the markup/regex fallback, so a free-text scan cannot
// mistake an unrelated number for a shoe size or its price.
const (
	sizeScanMin = 15.0
	sizeScanMax = 60.0
)

// domSizePairSelectors locate a repeating "size + price" structure rendered
// in the gallery when per-size pricing never made it into structured data.
var domSizePairSelectors = []string{
	".size-list .size-item",
	".sizes-table tr",
	".sku-list li",
	"[class*=\"size\"] [class*=\"item\"]",
	"[class*=\"size\"] li",
}

// sizePricePattern matches "39.5 (40.5) 12 345 ₽": a size, an optional
// parenthetical alternate-scale value, and a grouped ruble price.
var sizePricePattern = regexp.MustCompile(
	`(\d{2}(?:[.,]5)?)(?:\s*\(\s*(\d{2}(?:[.,]5)?)\s*\))?[^\d₽]{0,20}?(\d{1,3}(?:[\s\x{00A0}]\d{3})+|\d{4,6})[\s\x{00A0}]*₽`)

type SizePriceExtractor struct {
	money  Money
	logger *slog.Logger
}

func NewSizePriceExtractor(money Money, logger *slog.Logger) *SizePriceExtractor {
	return &SizePriceExtractor{
		money:  money,
		logger: logger.With("component", "size_extractor"),
	}
}

// Extract builds the per-size price matrix. It never fails: when neither
// structured data nor markup yields per-size prices the matrix is empty and
// the caller falls back to the single representative price.
func (e *SizePriceExtractor) Extract(candidates []Candidate, page *fetch.Page) []models.SizePrice {
	var structured []models.SizePrice
	var uniform bool

	for _, c := range candidates {
		if c.Source != SourceAppState && c.Source != SourceInlineScript {
			continue
		}
		structured, uniform = e.structuredMatrix(c.Root)
		if len(structured) > 0 {
			break
		}
	}

	if len(structured) > 0 && !uniform {
		sortMatrix(structured)
		return structured
	}

	// Either no structured document, or every SKU resolved to the same
	// shared base price, which means the source never had true per-size
	// pricing. Re-derive prices from markup.
	markup := e.markupMatrix(page)

	if len(structured) == 0 {
		sortMatrix(markup)
		return markup
	}
	if len(markup) == 0 {
		// The uniform prices are misleading: drop them rather than
		// publish a matrix that pretends sizes are priced differently.
		e.logger.Warn("uniform sku prices with no markup fallback, emptying matrix", "url", page.URL)
		return nil
	}

	merged := mergeByProximity(structured, markup)
	sortMatrix(merged)
	return merged
}

// structuredMatrix resolves the SKU list of one candidate document. The
// second return reports whether every resolved price was identical, the
// signal that only a shared base price was available.
func (e *SizePriceExtractor) structuredMatrix(root any) ([]models.SizePrice, bool) {
	skus, ok := findSlice(root, skuListKeys...)
	if !ok {
		return nil, false
	}

	sizeByID := propertyValueTable(root)
	priceByID := skuPriceTable(root)
	basePrice, hasBase := findNumber(root, priceKeys...)

	var matrix []models.SizePrice
	usedBase := false
	for _, item := range skus {
		sku, ok := item.(map[string]any)
		if !ok {
			continue
		}

		size := resolveSize(sku, sizeByID)
		if size == "" {
			continue
		}

		price, fromBase, ok := resolvePrice(sku, priceByID, basePrice, hasBase)
		if !ok {
			continue
		}
		usedBase = usedBase || fromBase

		kopecks, ok := e.money.Kopecks(price)
		if !ok {
			continue
		}

		matrix = append(matrix, models.SizePrice{Size: size, PriceCents: kopecks})
	}

	return matrix, usedBase || allPricesEqual(matrix)
}

// propertyValueTable builds the identifier → human-readable size mapping.
// Groups whose name matches a size keyword are authoritative; a group that
// merely looks numeric only fills identifiers no keyword group resolved.
func propertyValueTable(root any) map[string]string {
	groups, ok := findSlice(root, propertyGroupKeys...)
	if !ok {
		return nil
	}

	table := make(map[string]string)

	assign := func(group map[string]any, override bool) {
		values, ok := group["values"].([]any)
		if !ok {
			if values, ok = group["propertyValues"].([]any); !ok {
				if values, ok = group["list"].([]any); !ok {
					return
				}
			}
		}
		for _, item := range values {
			v, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id, ok := identifierOf(v, "propertyValueId", "valueId", "id")
			if !ok {
				continue
			}
			text, ok := stringField(v, "value", "text", "name")
			if !ok {
				continue
			}
			if _, exists := table[id]; exists && !override {
				continue
			}
			table[id] = text
		}
	}

	for _, item := range groups {
		group, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := stringField(group, "name", "propertyName", "title")
		if matchesSizeKeyword(name) {
			assign(group, true)
		}
	}

	if len(table) > 0 {
		return table
	}

	// No group advertised itself as sizes; fall back to the first group
	// whose value texts parse as numbers.
	for _, item := range groups {
		group, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if groupLooksNumeric(group) {
			assign(group, false)
		}
		if len(table) > 0 {
			break
		}
	}

	return table
}

func matchesSizeKeyword(name string) bool {
	name = strings.ToLower(name)
	for _, kw := range sizeGroupKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func groupLooksNumeric(group map[string]any) bool {
	values, ok := group["values"].([]any)
	if !ok {
		if values, ok = group["propertyValues"].([]any); !ok {
			if values, ok = group["list"].([]any); !ok {
				return false
			}
		}
	}
	numeric := 0
	for _, item := range values {
		v, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := stringField(v, "value", "text", "name"); ok {
			if _, parses := parseNumericText(text); parses {
				numeric++
			}
		}
	}
	return numeric > 0 && numeric*2 >= len(values)
}

// skuPriceTable builds the SKU-identifier → price mapping from a sibling
// price-list array, when the page ships one.
func skuPriceTable(root any) map[string]float64 {
	list, ok := findSlice(root, skuPriceListKeys...)
	if !ok {
		return nil
	}

	table := make(map[string]float64)
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, ok := identifierOf(entry, "skuId", "id")
		if !ok {
			continue
		}
		if price, ok := numberField(entry, "price", "minPrice", "salePrice"); ok {
			table[id] = price
		}
	}
	return table
}

// resolveSize maps a SKU to its human-readable size through the property
// value table, falling back to the trailing numeric token of the SKU's own
// free-text title.
func resolveSize(sku map[string]any, sizeByID map[string]string) string {
	ids := propertyValueIDs(sku)
	for _, id := range ids {
		if size, ok := sizeByID[id]; ok {
			return size
		}
	}

	if title, ok := stringField(sku, "title", "name", "skuName"); ok {
		tokens := strings.Fields(title)
		if len(tokens) > 0 {
			last := tokens[len(tokens)-1]
			if _, ok := parseNumericText(last); ok {
				return last
			}
		}
	}
	return ""
}

func propertyValueIDs(sku map[string]any) []string {
	var ids []string
	switch raw := sku["propertyValueIds"].(type) {
	case []any:
		for _, v := range raw {
			if id, ok := formatIdentifier(v); ok {
				ids = append(ids, id)
			}
		}
	}
	for _, key := range []string{"propertyValueId", "propertyId"} {
		if id, ok := formatIdentifier(sku[key]); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// resolvePrice checks the SKU's own price field, then the sibling price
// list, then the document-wide base price as last resort. The second return
// reports whether the base price was used.
func resolvePrice(sku map[string]any, priceByID map[string]float64, base float64, hasBase bool) (float64, bool, bool) {
	if price, ok := numberField(sku, "price", "salePrice", "minPrice"); ok {
		return price, false, true
	}

	if id, ok := identifierOf(sku, "skuId", "id"); ok {
		if price, ok := priceByID[id]; ok {
			return price, false, true
		}
	}

	if hasBase {
		return base, true, true
	}
	return 0, false, false
}

func identifierOf(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if id, ok := formatIdentifier(m[key]); ok {
			return id, true
		}
	}
	return "", false
}

func formatIdentifier(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if id != "" {
			return id, true
		}
	case float64:
		return fmt.Sprintf("%.0f", id), true
	}
	return "", false
}

func allPricesEqual(matrix []models.SizePrice) bool {
	if len(matrix) < 2 {
		return false
	}
	first := matrix[0].PriceCents
	for _, sp := range matrix[1:] {
		if sp.PriceCents != first {
			return false
		}
	}
	return true
}

// markupMatrix derives size/price pairs from the rendered page: first from
// a repeating DOM structure, then from a free-text regex scan.
func (e *SizePriceExtractor) markupMatrix(page *fetch.Page) []models.SizePrice {
	doc, err := page.Document()
	if err != nil {
		return nil
	}

	if pairs := e.domSizePairs(doc); len(pairs) > 0 {
		return pairs
	}
	return e.textSizePairs(doc.Text())
}

func (e *SizePriceExtractor) domSizePairs(doc *goquery.Document) []models.SizePrice {
	for _, sel := range domSizePairSelectors {
		var pairs []models.SizePrice
		seen := make(map[string]bool)
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if sp, ok := e.parseSizePriceText(text); ok && !seen[sp.Size] {
				seen[sp.Size] = true
				pairs = append(pairs, sp)
			}
		})
		if len(pairs) > 1 {
			return pairs
		}
	}
	return nil
}

func (e *SizePriceExtractor) textSizePairs(pageText string) []models.SizePrice {
	var pairs []models.SizePrice
	seen := make(map[string]bool)
	for _, match := range sizePricePattern.FindAllStringSubmatch(pageText, -1) {
		sp, ok := e.buildPair(match)
		if ok && !seen[sp.Size] {
			seen[sp.Size] = true
			pairs = append(pairs, sp)
		}
	}
	return pairs
}

func (e *SizePriceExtractor) parseSizePriceText(text string) (models.SizePrice, bool) {
	match := sizePricePattern.FindStringSubmatch(text)
	if match == nil {
		return models.SizePrice{}, false
	}
	return e.buildPair(match)
}

func (e *SizePriceExtractor) buildPair(match []string) (models.SizePrice, bool) {
	sizeNum, ok := parseNumericText(match[1])
	if !ok || sizeNum < sizeScanMin || sizeNum > sizeScanMax {
		return models.SizePrice{}, false
	}

	priceRub, ok := parsePriceText(match[3])
	if !ok {
		return models.SizePrice{}, false
	}
	kopecks, ok := e.money.Kopecks(priceRub)
	if !ok {
		return models.SizePrice{}, false
	}

	size := strings.ReplaceAll(match[1], ",", ".")
	if match[2] != "" {
		size = fmt.Sprintf("%s (%s)", size, strings.ReplaceAll(match[2], ",", "."))
	}
	return models.SizePrice{Size: size, PriceCents: kopecks}, true
}

// mergeByProximity reconciles a structured-source size list with a
// markup-derived price list. The two sources format sizes differently, so
// entries match on numeric distance rather than string equality; the
// structured label survives, the markup price wins.
func mergeByProximity(structured, markup []models.SizePrice) []models.SizePrice {
	var merged []models.SizePrice
	usedMarkup := make([]bool, len(markup))

	for _, s := range structured {
		sNum, sOk := parseNumericText(s.Size)
		matched := -1
		best := sizeMatchTolerance
		if sOk {
			for i, m := range markup {
				if usedMarkup[i] {
					continue
				}
				mNum, mOk := parseNumericText(m.Size)
				if !mOk {
					continue
				}
				if d := abs(sNum - mNum); d < best {
					best = d
					matched = i
				}
			}
		}
		if matched >= 0 {
			usedMarkup[matched] = true
			merged = append(merged, models.SizePrice{Size: s.Size, PriceCents: markup[matched].PriceCents})
		}
	}

	for i, m := range markup {
		if !usedMarkup[i] {
			merged = append(merged, m)
		}
	}
	return merged
}

// sortMatrix orders entries ascending by numeric size; entries whose size
// does not parse keep their relative order at the end.
func sortMatrix(matrix []models.SizePrice) {
	sort.SliceStable(matrix, func(i, j int) bool {
		a, aOk := parseNumericText(matrix[i].Size)
		b, bOk := parseNumericText(matrix[j].Size)
		if aOk && bOk {
			return a < b
		}
		return aOk && !bOk
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
