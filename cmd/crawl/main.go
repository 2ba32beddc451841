package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yalublugerbl4/shop/internal/config"
	"github.com/yalublugerbl4/shop/internal/crawler"
	"github.com/yalublugerbl4/shop/internal/extract"
	"github.com/yalublugerbl4/shop/internal/fetch"
	"github.com/yalublugerbl4/shop/internal/ratelimit"
)

// One-shot category crawl: discover product links, extract each one, and
// print the results as JSON lines. Useful for checking what a category
// yields before importing it through the API.
func main() {
	var (
		categoryURL = flag.String("url", "", "category URL to crawl")
		maxPages    = flag.Int("pages", 0, "page cap (defaults to SCRAPER_MAX_PAGES)")
		maxLinks    = flag.Int("links", 0, "stop after this many product links (0 = no cap)")
		linksOnly   = flag.Bool("links-only", false, "print discovered links without extracting")
	)
	flag.Parse()

	if *categoryURL == "" {
		fmt.Fprintln(os.Stderr, "usage: crawl -url <category-url> [-pages N] [-links N] [-links-only]")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := fetch.NewClient(fetch.Options{
		BaseDomain:   cfg.Scraper.BaseDomain,
		UserAgent:    cfg.Scraper.UserAgent,
		Timeout:      cfg.Scraper.FetchTimeout,
		ImageTimeout: cfg.Scraper.ImageTimeout,
	})

	limiter := ratelimit.NewAdaptiveLimiter(cfg.Scraper.CrawlDelayMin, cfg.Scraper.CrawlDelayMax)
	linkCrawler := crawler.New(client, limiter, crawler.Options{MaxLinks: *maxLinks}, logger)

	pages := *maxPages
	if pages <= 0 {
		pages = cfg.Scraper.MaxPages
	}

	links, err := linkCrawler.CategoryLinks(ctx, *categoryURL, pages)
	if err != nil {
		logger.Error("crawl failed", "error", err)
		os.Exit(1)
	}
	logger.Info("discovery finished", "links", len(links))

	if *linksOnly {
		for _, link := range links {
			fmt.Println(link)
		}
		return
	}

	extractor := extract.New(client, extract.Options{
		Money:        extract.Money{Rate: cfg.Scraper.ExchangeRateCNYRUB},
		ImageTimeout: cfg.Scraper.ImageTimeout,
		MaxImages:    cfg.Scraper.MaxImages,
	}, logger)

	extracted, failed := 0, 0
	for _, link := range links {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		record, err := extractor.Extract(ctx, link)
		if err != nil {
			logger.Warn("extraction failed", "url", link, "error", err)
			limiter.RecordError()
			failed++
			continue
		}
		limiter.RecordSuccess()
		extracted++

		fmt.Printf("%s\t%d\t%s\n", record.Title, record.PriceCents, record.SourceURL)
	}

	logger.Info("crawl finished", "extracted", extracted, "failed", failed, "links", len(links))
}
