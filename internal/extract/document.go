package extract

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kaptinlin/jsonrepair"

	"github.com/yalublugerbl4/shop/internal/fetch"
)

// Candidate provenance, in falling priority order. Extractors consult
// candidates in rank order and stop at the first strategy that succeeds;
// when no candidate exists at all they fall through to markup selectors.
const (
	SourceAppState     = "embedded-app-state"
	SourceLinkedData   = "linked-data"
	SourceInlineScript = "inline-script-variable"
)

// Candidate is one machine-readable payload located inside the page: a
// parsed JSON tree tagged with where it came from.
type Candidate struct {
	Source string
	Rank   int
	Root   any
}

// Locator scans fetched markup for embedded structured data.
type Locator struct {
	logger *slog.Logger
}

func NewLocator(logger *slog.Logger) *Locator {
	return &Locator{logger: logger.With("component", "locator")}
}

// Locate returns candidate documents in priority order: the server-rendered
// app-state blob, then linked-data blocks, then inline script variables.
// A candidate that fails to parse is skipped; it never aborts the others.
func (l *Locator) Locate(page *fetch.Page) []Candidate {
	doc, err := page.Document()
	if err != nil {
		l.logger.Warn("markup not parseable, no structured data", "url", page.URL, "error", err)
		return nil
	}

	var candidates []Candidate
	rank := 0

	if raw := doc.Find("script#__NEXT_DATA__").First().Text(); raw != "" {
		root, err := parseJSON(raw)
		if err != nil {
			l.logger.Warn("app-state blob not parseable", "url", page.URL, "error", err)
		} else {
			candidates = append(candidates, Candidate{Source: SourceAppState, Rank: rank, Root: root})
			rank++
		}
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		root, err := parseJSON(raw)
		if err != nil {
			l.logger.Debug("linked-data block not parseable", "url", page.URL, "error", err)
			return
		}
		// Blocks may wrap the entity in a one-element array.
		if arr, ok := root.([]any); ok && len(arr) > 0 {
			root = arr[0]
		}
		candidates = append(candidates, Candidate{Source: SourceLinkedData, Rank: rank, Root: root})
		rank++
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		raw := s.Text()
		if s.AttrOr("id", "") == "__NEXT_DATA__" || s.AttrOr("type", "") == "application/ld+json" {
			return
		}
		if !strings.Contains(raw, `"name"`) || !strings.Contains(raw, `"price"`) {
			return
		}
		obj := firstObjectLiteral(raw)
		if obj == "" {
			return
		}
		root, err := parseJSON(obj)
		if err != nil {
			l.logger.Debug("inline script variable not parseable", "url", page.URL, "error", err)
			return
		}
		candidates = append(candidates, Candidate{Source: SourceInlineScript, Rank: rank, Root: root})
		rank++
	})

	l.logger.Debug("located structured data", "url", page.URL, "candidates", len(candidates))
	return candidates
}

// parseJSON unmarshals raw JSON, repairing it once when the first attempt
// fails. Inline blobs are frequently truncated or use relaxed syntax.
func parseJSON(raw string) (any, error) {
	var root any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(repaired), &root); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// firstObjectLiteral cuts the first balanced {...} region out of script
// text, so assignment patterns like `window.__STATE__ = {...};` parse.
func firstObjectLiteral(script string) string {
	start := strings.IndexByte(script, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(script); i++ {
		c := script[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return script[start : i+1]
			}
		}
	}
	return ""
}

// The helpers below walk a candidate tree breadth-first so the shallowest
// occurrence of a known key wins, whatever path the page variant nested it
// under.

func findString(root any, keys ...string) (string, bool) {
	v, ok := findValue(root, func(v any) bool {
		s, isStr := v.(string)
		return isStr && strings.TrimSpace(s) != ""
	}, keys...)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v.(string)), true
}

func findNumber(root any, keys ...string) (float64, bool) {
	v, ok := findValue(root, func(v any) bool {
		switch n := v.(type) {
		case float64:
			return true
		case string:
			return strings.TrimSpace(n) != ""
		}
		return false
	}, keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		return parseNumericText(n)
	}
	return 0, false
}

func findSlice(root any, keys ...string) ([]any, bool) {
	v, ok := findValue(root, func(v any) bool {
		arr, isArr := v.([]any)
		return isArr && len(arr) > 0
	}, keys...)
	if !ok {
		return nil, false
	}
	return v.([]any), true
}

func findValue(root any, accept func(any) bool, keys ...string) (any, bool) {
	queue := []any{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		switch n := node.(type) {
		case map[string]any:
			for _, key := range keys {
				if v, ok := n[key]; ok && accept(v) {
					return v, true
				}
			}
			// Children visit in sorted-key order. Map iteration order is
			// randomized, and two same-depth subtrees can both carry a
			// matched key; the result must not vary across runs on
			// identical input.
			childKeys := make([]string, 0, len(n))
			for k := range n {
				switch n[k].(type) {
				case map[string]any, []any:
					childKeys = append(childKeys, k)
				}
			}
			sort.Strings(childKeys)
			for _, k := range childKeys {
				queue = append(queue, n[k])
			}
		case []any:
			for _, v := range n {
				switch v.(type) {
				case map[string]any, []any:
					queue = append(queue, v)
				}
			}
		}
	}
	return nil, false
}

// Exported lookups for callers outside the package (the category crawler
// reuses the locator and walks the same trees).

func FindSlice(root any, keys ...string) ([]any, bool) {
	return findSlice(root, keys...)
}

func FindMap(root any, keys ...string) (map[string]any, bool) {
	v, ok := findValue(root, func(v any) bool {
		m, isMap := v.(map[string]any)
		return isMap && len(m) > 0
	}, keys...)
	if !ok {
		return nil, false
	}
	return v.(map[string]any), true
}

func StringField(m map[string]any, keys ...string) (string, bool) {
	return stringField(m, keys...)
}

func NumberField(m map[string]any, keys ...string) (float64, bool) {
	return numberField(m, keys...)
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case string:
			if n, ok := parseNumericText(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}
