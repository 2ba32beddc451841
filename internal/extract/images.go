package extract

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yalublugerbl4/shop/internal/fetch"
)

// LeadImagePolicy controls what happens to the first discovered image. On
// this marketplace the lead gallery shot is conventionally a packaging or
// tag photo rather than the product, so the default drops it; callers
// scraping other layouts can keep it.
type LeadImagePolicy int

const (
	DropLeadImage LeadImagePolicy = iota
	KeepLeadImage
)

const (
	defaultMaxImages = 10
	minGenuineImages = 5
)

var imageListKeys = []string{"images", "imageList", "imageUrls", "pics"}

// URL fragments that mark a non-product asset. These are excluded outright.
var excludedImagePatterns = []string{
	"thumbnail", "thumb", "icon", "placeholder", "logo", "avatar", "sprite",
}

// URL fragments that mark machine-generated gallery variants. They are held
// back in a secondary pool and only backfill a sparse genuine set.
var generatedImagePatterns = []string{
	"ai-generated", "ai_generated", "aigc", "generated",
}

var galleryImageSelectors = []string{
	".product-gallery img",
	".product-images img",
	".product-image img",
	".goods-image img",
	".product__image img",
	".swiper-slide img",
	"[class*=\"gallery\"] img",
	"img[src*=\"goods\"]",
	"img[src*=\"product\"]",
}

var imageAttrCandidates = []string{"src", "data-src", "data-original", "data-lazy", "data-url"}

var scriptImageURLPattern = regexp.MustCompile(`https?:[^"'\s\\]+?\.(?:jpe?g|png|webp)`)

type ImageSelector struct {
	Policy    LeadImagePolicy
	MaxImages int
	logger    *slog.Logger
}

func NewImageSelector(logger *slog.Logger) *ImageSelector {
	return &ImageSelector{
		Policy:    DropLeadImage,
		MaxImages: defaultMaxImages,
		logger:    logger.With("component", "image_selector"),
	}
}

// Select returns the ordered, deduplicated image URL list for a product
// page, after applying the lead-image policy, the cap, and backfill from
// the generated pool when too few genuine images remain.
func (e *ImageSelector) Select(candidates []Candidate, page *fetch.Page) []string {
	genuine, generated := e.collect(candidates, page)

	if e.Policy == DropLeadImage && len(genuine) > 0 {
		genuine = genuine[1:]
	}

	if len(genuine) > e.MaxImages {
		genuine = genuine[:e.MaxImages]
	}

	if len(genuine) < minGenuineImages {
		for _, url := range generated {
			if len(genuine) >= e.MaxImages {
				break
			}
			genuine = append(genuine, url)
		}
	}

	return genuine
}

// collect gathers candidate URLs from every source in priority order and
// splits them into the genuine list and the generated backfill pool, both
// deduplicated by resolved absolute URL.
func (e *ImageSelector) collect(candidates []Candidate, page *fetch.Page) (genuine, generated []string) {
	seen := make(map[string]bool)

	add := func(raw string) {
		url := resolveImageURL(raw, page.BaseDomain)
		if url == "" || seen[url] {
			return
		}
		if matchesAny(url, excludedImagePatterns) {
			return
		}
		seen[url] = true
		if matchesAny(url, generatedImagePatterns) {
			generated = append(generated, url)
		} else {
			genuine = append(genuine, url)
		}
	}

	for _, c := range candidates {
		if c.Source == SourceLinkedData {
			continue
		}
		for _, url := range documentImageList(c.Root) {
			add(url)
		}
	}

	for _, c := range candidates {
		if c.Source != SourceLinkedData {
			continue
		}
		m, ok := c.Root.(map[string]any)
		if !ok {
			continue
		}
		switch img := m["image"].(type) {
		case string:
			add(img)
		case []any:
			for _, item := range img {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
	}

	if doc, err := page.Document(); err == nil {
		for _, sel := range galleryImageSelectors {
			doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				for _, attr := range imageAttrCandidates {
					if v := s.AttrOr(attr, ""); v != "" {
						add(v)
						return
					}
				}
			})
		}

		if og := doc.Find(`meta[property="og:image"]`).AttrOr("content", ""); og != "" {
			add(og)
		}

		doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			for _, url := range scriptImageURLPattern.FindAllString(s.Text(), -1) {
				add(url)
			}
		})
	}

	e.logger.Debug("collected image urls", "url", page.URL, "genuine", len(genuine), "generated", len(generated))
	return genuine, generated
}

// documentImageList reads the structured image list, preserving the given
// order unless entries carry an explicit sort key.
func documentImageList(root any) []string {
	list, ok := findSlice(root, imageListKeys...)
	if !ok {
		return nil
	}

	type entry struct {
		url  string
		sort float64
	}
	var entries []entry
	hasSort := false

	for i, item := range list {
		switch v := item.(type) {
		case string:
			entries = append(entries, entry{url: v, sort: float64(i)})
		case map[string]any:
			url, ok := stringField(v, "url", "src", "imageUrl", "image")
			if !ok {
				continue
			}
			sortKey := float64(i)
			if s, ok := numberField(v, "sort", "order", "index"); ok {
				sortKey = s
				hasSort = true
			}
			entries = append(entries, entry{url: url, sort: sortKey})
		}
	}

	if hasSort {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].sort < entries[j].sort })
	}

	urls := make([]string, len(entries))
	for i, en := range entries {
		urls[i] = en.url
	}
	return urls
}

func resolveImageURL(raw, baseDomain string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return baseDomain + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	}
	return ""
}

func matchesAny(url string, patterns []string) bool {
	lower := strings.ToLower(url)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
