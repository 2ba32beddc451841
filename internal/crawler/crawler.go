package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yalublugerbl4/shop/internal/extract"
	"github.com/yalublugerbl4/shop/internal/fetch"
	"github.com/yalublugerbl4/shop/internal/ratelimit"
)

// Hard ceiling on pagination regardless of what the caller asks for.
const maxPageCeiling = 50

var productListKeys = []string{"products", "goodsList", "items", "productList"}

var productLinkKeys = []string{"url", "link", "href", "productUrl"}

var productLinkSelectors = []string{
	"div.GoodsList_goodsList__hPoCW > a",
	"a[href*=\"/product/\"]",
	".goods-item a",
	".product-item a",
	"[class*=\"goods\"] a[href*=\"product\"]",
	"[class*=\"product\"] a[href*=\"product\"]",
}

// Crawler paginates a category listing and collects product URLs, reusing
// the structured-data locator before falling back to anchor selectors.
type Crawler struct {
	client   *fetch.Client
	locator  *extract.Locator
	limiter  *ratelimit.AdaptiveLimiter
	maxLinks int
	logger   *slog.Logger
}

type Options struct {
	// MaxLinks bounds the collected set; 0 means unbounded.
	MaxLinks int
}

func New(client *fetch.Client, limiter *ratelimit.AdaptiveLimiter, opts Options, logger *slog.Logger) *Crawler {
	return &Crawler{
		client:   client,
		locator:  extract.NewLocator(logger),
		limiter:  limiter,
		maxLinks: opts.MaxLinks,
		logger:   logger.With("component", "category_crawler"),
	}
}

// CategoryLinks walks the category's pages until one of the stop conditions
// holds: a page yields no links, no next-page signal exists, the page cap is
// reached, the link cap is reached, or the server answers 404 for the next
// page (the last page was already served; a clean stop, not an error).
func (c *Crawler) CategoryLinks(ctx context.Context, categoryURL string, maxPages int) ([]string, error) {
	if maxPages < 1 || maxPages > maxPageCeiling {
		maxPages = maxPageCeiling
	}

	seen := make(map[string]bool)
	var links []string

	for page := 1; page <= maxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return links, err
		}

		pageURL := withPageParam(categoryURL, page)
		c.logger.Info("fetching category page", "url", pageURL, "page", page)

		fetched, err := c.client.Page(ctx, pageURL)
		if err != nil {
			var te *fetch.TransportError
			if errors.As(err, &te) && te.Status == http.StatusNotFound {
				c.logger.Info("page not found, stopping pagination", "page", page)
				return links, nil
			}
			if ctx.Err() != nil {
				return links, ctx.Err()
			}
			// A single broken page does not abort the crawl.
			c.logger.Warn("category page fetch failed, advancing", "page", page, "error", err)
			c.limiter.RecordError()
			continue
		}
		c.limiter.RecordSuccess()

		candidates := c.locator.Locate(fetched)

		pageLinks := c.structuredLinks(candidates, fetched.BaseDomain)
		if len(pageLinks) == 0 {
			pageLinks = c.markupLinks(fetched)
		}

		found := 0
		for _, link := range pageLinks {
			if seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
			found++
			if c.maxLinks > 0 && len(links) >= c.maxLinks {
				c.logger.Info("link cap reached", "links", len(links))
				return links, nil
			}
		}

		hasMore := c.hasNextPage(candidates, fetched, page)
		c.logger.Info("category page done", "page", page, "new_links", found, "has_more", hasMore)

		if found == 0 || !hasMore {
			break
		}
	}

	return links, nil
}

// structuredLinks reads the product list out of the located documents,
// trying the known list-shaped field names in order.
func (c *Crawler) structuredLinks(candidates []extract.Candidate, baseDomain string) []string {
	var links []string
	for _, cand := range candidates {
		products, ok := extract.FindSlice(cand.Root, productListKeys...)
		if !ok {
			continue
		}
		for _, item := range products {
			product, ok := item.(map[string]any)
			if !ok {
				continue
			}
			raw, ok := extract.StringField(product, productLinkKeys...)
			if !ok {
				continue
			}
			if link := absoluteLink(raw, baseDomain); link != "" {
				links = append(links, link)
			}
		}
		if len(links) > 0 {
			return links
		}
	}
	return links
}

func (c *Crawler) markupLinks(page *fetch.Page) []string {
	doc, err := page.Document()
	if err != nil {
		return nil
	}

	var links []string
	for _, sel := range productLinkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href := s.AttrOr("href", "")
			if !strings.Contains(href, "/product/") {
				return
			}
			if link := absoluteLink(href, page.BaseDomain); link != "" {
				links = append(links, link)
			}
		})
		if len(links) > 0 {
			break
		}
	}
	return links
}

// hasNextPage prefers structured pagination metadata and falls back to the
// presence of an enabled next-page control in markup.
func (c *Crawler) hasNextPage(candidates []extract.Candidate, page *fetch.Page, currentPage int) bool {
	for _, cand := range candidates {
		pagination, ok := extract.FindMap(cand.Root, "pagination", "pageInfo")
		if !ok {
			continue
		}
		current := float64(currentPage)
		if v, ok := extract.NumberField(pagination, "current", "page"); ok {
			current = v
		}
		if total, ok := extract.NumberField(pagination, "total", "totalPages"); ok {
			return current < total
		}
	}

	doc, err := page.Document()
	if err != nil {
		return false
	}
	return doc.Find(`li.ant-pagination-next:not([aria-disabled="true"])`).Length() > 0
}

func withPageParam(categoryURL string, page int) string {
	if strings.Contains(categoryURL, "?") {
		return fmt.Sprintf("%s&page=%d", categoryURL, page)
	}
	return fmt.Sprintf("%s?page=%d", categoryURL, page)
}

func absoluteLink(raw, baseDomain string) string {
	switch {
	case strings.HasPrefix(raw, "/"):
		return baseDomain + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	}
	return ""
}
