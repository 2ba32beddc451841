package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yalublugerbl4/shop/internal/fetch"
)

var priceKeys = []string{"price", "minPrice", "currentPrice", "salePrice", "lowPrice"}

var priceSelectors = []string{
	".product-price",
	".price",
	".goods-price",
	".product__price",
	".price-value",
	".current-price",
	".price-current",
	".sale-price",
	".final-price",
	"[class*=\"price\"]",
	"[class*=\"Price\"]",
	"[data-price]",
	"[itemprop=\"price\"]",
}

// Page-text fallback: a grouped number next to a ruble marker, or an inline
// price assignment. The tighter 1000..100000 window keeps the free-text scan
// from matching unrelated numbers.
var priceTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,3}(?:[\s\x{00A0}]?\d{3})*(?:[.,]\d{2})?)[\s\x{00A0}]*₽`),
	regexp.MustCompile(`(?i)(\d{1,3}(?:[\s\x{00A0}]?\d{3})*(?:[.,]\d{2})?)[\s\x{00A0}]*(?:руб|RUB)`),
	regexp.MustCompile(`(?i)price["']?\s*[:=]\s*["']?(\d{1,3}(?:[\s\x{00A0}]?\d{3})*(?:[.,]\d{2})?)`),
}

const (
	priceScanMinRub = 1000
	priceScanMaxRub = 100000
	priceScanLimit  = 5
)

type PriceExtractor struct {
	money  Money
	logger *slog.Logger
}

func NewPriceExtractor(money Money, logger *slog.Logger) *PriceExtractor {
	return &PriceExtractor{
		money:  money,
		logger: logger.With("component", "price_extractor"),
	}
}

// Extract resolves the representative price in kopecks. Every strategy's raw
// value passes through the same plausibility-gated conversion; an implausible
// value is not an error, it just hands over to the next strategy.
func (e *PriceExtractor) Extract(candidates []Candidate, page *fetch.Page) (int64, error) {
	doc, docErr := page.Document()

	strategies := []strategy[int64]{
		{"app-state-price", func() (int64, bool) {
			return e.candidatePrice(candidates, SourceAppState)
		}},
		{"linked-data-offers", func() (int64, bool) {
			return e.offersPrice(candidates)
		}},
		{"inline-script-price", func() (int64, bool) {
			return e.candidatePrice(candidates, SourceInlineScript)
		}},
		{"meta-price-amount", func() (int64, bool) {
			if docErr != nil {
				return 0, false
			}
			content := doc.Find(`meta[property="product:price:amount"]`).AttrOr("content", "")
			if v, ok := parsePriceText(content); ok {
				return e.money.Kopecks(v)
			}
			return 0, false
		}},
		{"markup-selectors", func() (int64, bool) {
			if docErr != nil {
				return 0, false
			}
			return e.selectorPrice(doc)
		}},
		{"page-text-regex", func() (int64, bool) {
			if docErr != nil {
				return 0, false
			}
			return e.scanPageText(doc)
		}},
	}

	price, ok := firstSuccess(e.logger, "price", strategies)
	if !ok {
		return 0, &FieldError{Field: "price", URL: page.URL}
	}
	return price, nil
}

func (e *PriceExtractor) candidatePrice(candidates []Candidate, source string) (int64, bool) {
	for _, c := range candidates {
		if c.Source != source {
			continue
		}
		if v, ok := findNumber(c.Root, priceKeys...); ok {
			if kopecks, ok := e.money.Kopecks(v); ok {
				return kopecks, true
			}
		}
	}
	return 0, false
}

func (e *PriceExtractor) offersPrice(candidates []Candidate) (int64, bool) {
	for _, c := range candidates {
		if c.Source != SourceLinkedData {
			continue
		}
		m, ok := c.Root.(map[string]any)
		if !ok {
			continue
		}

		var offers []map[string]any
		switch o := m["offers"].(type) {
		case map[string]any:
			offers = append(offers, o)
		case []any:
			for _, item := range o {
				if om, ok := item.(map[string]any); ok {
					offers = append(offers, om)
				}
			}
		}

		for _, offer := range offers {
			if v, ok := numberField(offer, "price", "lowPrice"); ok {
				if kopecks, ok := e.money.Kopecks(v); ok {
					return kopecks, true
				}
			}
		}
	}
	return 0, false
}

func (e *PriceExtractor) selectorPrice(doc *goquery.Document) (int64, bool) {
	for _, sel := range priceSelectors {
		var found int64
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				for _, attr := range []string{"data-price", "data-value", "content"} {
					if v := s.AttrOr(attr, ""); v != "" {
						text = v
						break
					}
				}
			}
			if text == "" {
				return true
			}
			v, ok := parsePriceText(text)
			if !ok {
				return true
			}
			if kopecks, ok := e.money.Kopecks(v); ok {
				found = kopecks
				return false
			}
			return true
		})
		if found > 0 {
			return found, true
		}
	}
	return 0, false
}

func (e *PriceExtractor) scanPageText(doc *goquery.Document) (int64, bool) {
	pageText := doc.Text()
	for _, pattern := range priceTextPatterns {
		matches := pattern.FindAllStringSubmatch(pageText, priceScanLimit)
		for _, match := range matches {
			v, ok := parsePriceText(match[1])
			if !ok || v < priceScanMinRub || v > priceScanMaxRub {
				continue
			}
			if kopecks, ok := e.money.Kopecks(v); ok {
				return kopecks, true
			}
		}
	}
	return 0, false
}
