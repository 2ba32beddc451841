package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/yalublugerbl4/shop/internal/fetch"
)

const (
	titleMinLength = 5
	titleMaxLength = 500
)

// The schema varies by page variant, so the product name is looked up under
// every key name observed in the wild.
var titleKeys = []string{"title", "name", "goodsName", "productName", "goodsTitle"}

var titleSelectors = []string{
	"h1.product-title",
	"h1.goods-title",
	".product-name",
	".goods-name",
	".product__title",
	".product-title",
	"h1[class*=\"product\"]",
	"h1[class*=\"title\"]",
	"h1",
	"[class*=\"title\"][class*=\"product\"]",
}

var siteSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-|]\s*thepoizon.*$`),
	regexp.MustCompile(`(?i)\s*[-|]\s*POIZON.*$`),
	regexp.MustCompile(`\s*[-|]\s*得物.*$`),
}

type TitleExtractor struct {
	logger *slog.Logger
}

func NewTitleExtractor(logger *slog.Logger) *TitleExtractor {
	return &TitleExtractor{logger: logger.With("component", "title_extractor")}
}

// Extract resolves the product title, trying structured candidates before
// markup selectors and the document title. The result is suffix-stripped,
// script-filtered and capped at 500 characters.
func (e *TitleExtractor) Extract(candidates []Candidate, page *fetch.Page) (string, error) {
	doc, docErr := page.Document()

	strategies := []strategy[string]{
		{"app-state-name", func() (string, bool) {
			return candidateString(candidates, SourceAppState, titleKeys...)
		}},
		{"linked-data-name", func() (string, bool) {
			return linkedDataName(candidates)
		}},
		{"inline-script-name", func() (string, bool) {
			return candidateString(candidates, SourceInlineScript, titleKeys...)
		}},
		{"markup-selectors", func() (string, bool) {
			if docErr != nil {
				return "", false
			}
			for _, sel := range titleSelectors {
				text := strings.TrimSpace(doc.Find(sel).First().Text())
				if len([]rune(text)) > titleMinLength {
					return text, true
				}
			}
			return "", false
		}},
		{"og-title", func() (string, bool) {
			if docErr != nil {
				return "", false
			}
			content := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
			return content, content != ""
		}},
		{"document-title", func() (string, bool) {
			if docErr != nil {
				return "", false
			}
			text := stripSiteSuffix(strings.TrimSpace(doc.Find("title").First().Text()))
			return text, text != ""
		}},
	}

	raw, ok := firstSuccess(e.logger, "title", strategies)
	if !ok {
		return "", &FieldError{Field: "title", URL: page.URL}
	}

	title := normalizeTitle(raw)
	if title == "" {
		return "", &FieldError{Field: "title", URL: page.URL}
	}
	return title, nil
}

func candidateString(candidates []Candidate, source string, keys ...string) (string, bool) {
	for _, c := range candidates {
		if c.Source != source {
			continue
		}
		if s, ok := findString(c.Root, keys...); ok {
			return s, true
		}
	}
	return "", false
}

// linkedDataName prefers the Latin-script variant when the block carries
// both a translated and an original name; the original one is authoritative.
func linkedDataName(candidates []Candidate) (string, bool) {
	for _, c := range candidates {
		if c.Source != SourceLinkedData {
			continue
		}
		m, ok := c.Root.(map[string]any)
		if !ok {
			continue
		}

		var variants []string
		if name, ok := stringField(m, "name"); ok {
			variants = append(variants, name)
		}
		if alt, ok := stringField(m, "alternateName"); ok {
			variants = append(variants, alt)
		}

		for _, v := range variants {
			if containsLatin(v) && !containsForeignScript(v) {
				return v, true
			}
		}
		if len(variants) > 0 {
			return variants[0], true
		}
	}
	return "", false
}

func normalizeTitle(raw string) string {
	title := stripSiteSuffix(strings.TrimSpace(raw))
	title = filterMixedScript(title)

	runes := []rune(title)
	if len(runes) > titleMaxLength {
		title = string(runes[:titleMaxLength])
	}
	return strings.TrimSpace(title)
}

func stripSiteSuffix(title string) string {
	for _, p := range siteSuffixPatterns {
		title = p.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

// filterMixedScript applies the content-normalization rule for pages that
// ship a translated name glued to the original one: when scripts are mixed,
// only tokens free of the non-Latin family survive. A single-script title
// passes through untouched.
func filterMixedScript(title string) string {
	if !containsLatin(title) || !containsForeignScript(title) {
		return title
	}

	var kept []string
	for _, token := range strings.Fields(title) {
		if !containsForeignScript(token) {
			kept = append(kept, token)
		}
	}
	if len(kept) == 0 {
		return title
	}
	return strings.Join(kept, " ")
}

func containsLatin(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

func containsForeignScript(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) || unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
