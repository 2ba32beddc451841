package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SizePrice is one row of a product's per-size price matrix.
type SizePrice struct {
	Size       string `json:"size"`
	PriceCents int64  `json:"price_cents"`
}

// ProductRecord is the normalized result of one product page extraction.
// It is constructed once per extraction and never partially filled: either
// every invariant below holds, or extraction fails with a typed error.
type ProductRecord struct {
	Title        string      `json:"title"`
	PriceCents   int64       `json:"price_cents"`
	Description  string      `json:"description"`
	ImagesBase64 []string    `json:"images_base64"`
	SizePrices   []SizePrice `json:"size_prices,omitempty"`
	SourceURL    string      `json:"source_url"`
}

func (r *ProductRecord) Validate() []string {
	var errors []string

	if strings.TrimSpace(r.Title) == "" {
		errors = append(errors, "title is required")
	}
	if utf8.RuneCountInString(r.Title) > 500 {
		errors = append(errors, "title exceeds 500 characters")
	}
	if r.PriceCents <= 0 {
		errors = append(errors, "price must be positive")
	}
	if len(r.ImagesBase64) > 10 {
		errors = append(errors, "more than 10 images")
	}
	if r.SourceURL == "" {
		errors = append(errors, "source URL is required")
	}

	return errors
}

// DescribeSizes renders the size matrix as the human-readable description
// stored alongside the product, one "size: price" line per entry.
func DescribeSizes(sizes []SizePrice) string {
	if len(sizes) == 0 {
		return ""
	}

	lines := make([]string, len(sizes))
	for i, sp := range sizes {
		lines[i] = fmt.Sprintf("%s: %d ₽", sp.Size, sp.PriceCents/100)
	}
	return strings.Join(lines, "\n")
}
