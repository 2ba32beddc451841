package extract

import (
	"strconv"
	"strings"
	"unicode"
)

// Plausibility window for a value already quoted in rubles, and the floor a
// converted yuan quote must clear. Mirrors the bounds the marketplace pages
// have held for years; a value outside both interpretations is noise.
const (
	minPlausibleRub     = 100
	maxPlausibleRub     = 1_000_000
	minConvertedKopecks = 10_000
)

// Money normalizes raw numeric quotes into kopecks. The exchange rate is
// injected configuration, not a constant: its value directly gates which
// quotes are accepted.
type Money struct {
	// Rate converts a foreign-currency (yuan) quote into rubles.
	Rate float64
}

// Kopecks applies the plausibility-gated conversion rule uniformly to every
// strategy's raw value: a quote inside the ruble window is taken as-is, a
// quote below it is treated as yuan and converted, anything else is
// rejected so the caller can try the next strategy.
func (m Money) Kopecks(units float64) (int64, bool) {
	if units <= 0 {
		return 0, false
	}

	if units >= minPlausibleRub && units <= maxPlausibleRub {
		return int64(units * 100), true
	}

	if units < minPlausibleRub {
		converted := int64(units * m.Rate * 100)
		if converted >= minConvertedKopecks {
			return converted, true
		}
	}

	return 0, false
}

// parsePriceText extracts a numeric value from display text such as
// "12 345 ₽" or "1,299.00". Commas and spaces are grouping separators in
// price text; the dot is the decimal mark.
func parsePriceText(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',', r == ' ', unicode.IsSpace(r):
			// grouping separators, dropped
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseNumericText parses free-form numeric text where the comma is a
// decimal mark, as in sizes like "39,5". A leading number followed by junk
// ("39.5 (40.5)") parses to the leading number.
func parseNumericText(text string) (float64, bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))

	end := 0
	seenDot := false
	for end < len(text) {
		c := text[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot && end > 0 {
			seenDot = true
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(text[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
