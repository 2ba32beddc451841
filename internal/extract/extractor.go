package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/yalublugerbl4/shop/internal/fetch"
	"github.com/yalublugerbl4/shop/internal/models"
)

// Options configures one Extractor. The exchange rate and the lead-image
// policy are deliberate injection points; see config for their defaults.
type Options struct {
	Money           Money
	ImageTimeout    time.Duration
	LeadImagePolicy LeadImagePolicy
	MaxImages       int
}

// Extractor runs the full product pipeline: fetch, locate structured data,
// extract fields through their strategy chains, reconcile, materialize
// images. One call is independent of every other call; there is no state
// shared across extractions.
type Extractor struct {
	client       *fetch.Client
	locator      *Locator
	title        *TitleExtractor
	price        *PriceExtractor
	sizes        *SizePriceExtractor
	images       *ImageSelector
	materializer *Materializer
	logger       *slog.Logger
}

func New(client *fetch.Client, opts Options, logger *slog.Logger) *Extractor {
	images := NewImageSelector(logger)
	images.Policy = opts.LeadImagePolicy
	if opts.MaxImages > 0 {
		images.MaxImages = opts.MaxImages
	}

	return &Extractor{
		client:       client,
		locator:      NewLocator(logger),
		title:        NewTitleExtractor(logger),
		price:        NewPriceExtractor(opts.Money, logger),
		sizes:        NewSizePriceExtractor(opts.Money, logger),
		images:       images,
		materializer: NewMaterializer(client, opts.ImageTimeout, logger),
		logger:       logger.With("component", "extractor"),
	}
}

// Extract returns the normalized product record for one URL, or a typed
// failure. Title and price are mandatory; the size matrix and images
// degrade to empty values when no strategy resolves them.
func (e *Extractor) Extract(ctx context.Context, url string) (*models.ProductRecord, error) {
	page, err := e.client.Page(ctx, url)
	if err != nil {
		return nil, err
	}

	candidates := e.locator.Locate(page)

	title, err := e.title.Extract(candidates, page)
	if err != nil {
		return nil, err
	}

	priceCents, err := e.price.Extract(candidates, page)
	if err != nil {
		return nil, err
	}

	sizes := e.sizes.Extract(candidates, page)

	// The representative price is the cheapest size when per-size pricing
	// exists; the single-price extraction covers the rest.
	if len(sizes) > 0 {
		priceCents = minPrice(sizes)
	}

	imageURLs := e.images.Select(candidates, page)
	imagesBase64 := e.materializer.Materialize(ctx, imageURLs)

	record := &models.ProductRecord{
		Title:        title,
		PriceCents:   priceCents,
		Description:  models.DescribeSizes(sizes),
		ImagesBase64: imagesBase64,
		SizePrices:   sizes,
		SourceURL:    url,
	}

	e.logger.Info("extracted product",
		"url", url,
		"title", title,
		"price_cents", record.PriceCents,
		"sizes", len(sizes),
		"images", len(imagesBase64),
	)

	return record, nil
}

func minPrice(sizes []models.SizePrice) int64 {
	min := sizes[0].PriceCents
	for _, sp := range sizes[1:] {
		if sp.PriceCents < min {
			min = sp.PriceCents
		}
	}
	return min
}
