package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yalublugerbl4/shop/internal/fetch"
)

const materializeConcurrency = 10

// Materializer downloads the selected image URLs and wraps each payload
// into a self-describing data URI. A failed image is skipped, never fatal:
// a partially filled image list is still a successful extraction.
type Materializer struct {
	client  *fetch.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewMaterializer(client *fetch.Client, timeout time.Duration, logger *slog.Logger) *Materializer {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Materializer{
		client:  client,
		timeout: timeout,
		logger:  logger.With("component", "materializer"),
	}
}

// Materialize fetches up to len(urls) images with bounded concurrency,
// preserving the input order in the output.
func (m *Materializer) Materialize(ctx context.Context, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}

	results := make([]string, len(urls))
	sem := make(chan struct{}, materializeConcurrency)
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, url string) {
			defer wg.Done()
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			body, contentType, err := m.client.Image(fetchCtx, url)
			if err != nil {
				m.logger.Warn("image download failed, skipping", "url", url, "error", err)
				return
			}

			results[i] = fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(body))
		}(i, url)
	}
	wg.Wait()

	materialized := make([]string, 0, len(urls))
	for _, r := range results {
		if r != "" {
			materialized = append(materialized, r)
		}
	}
	return materialized
}
