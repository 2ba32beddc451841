package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yalublugerbl4/shop/internal/events"
	"github.com/yalublugerbl4/shop/internal/models"
	"github.com/yalublugerbl4/shop/internal/queue"
	"github.com/yalublugerbl4/shop/internal/store"
)

type Extractor interface {
	Extract(ctx context.Context, url string) (*models.ProductRecord, error)
}

type ProductWriter interface {
	Upsert(ctx context.Context, record *models.ProductRecord, category, season string) (*store.Product, error)
	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)
}

type EventPublisher interface {
	PublishProductIngested(ctx context.Context, event events.ProductIngested) error
}

type Limiter interface {
	Wait(ctx context.Context) error
}

// Worker drains the ingest queue one task at a time. Single-flight is
// deliberate: the politeness limiter paces page fetches, and a worker pool
// would just pile up behind it.
type Worker struct {
	queue     queue.Queue
	limiter   Limiter
	extractor Extractor
	products  ProductWriter
	publisher EventPublisher
	manager   *Manager
	logger    *slog.Logger
}

func NewWorker(q queue.Queue, limiter Limiter, extractor Extractor, products ProductWriter, publisher EventPublisher, manager *Manager, logger *slog.Logger) *Worker {
	return &Worker{
		queue:     q,
		limiter:   limiter,
		extractor: extractor,
		products:  products,
		publisher: publisher,
		manager:   manager,
		logger:    logger.With("component", "ingest_worker"),
	}
}

// Run processes tasks until the context is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		task, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task *queue.Task) {
	logger := w.logger.With("job_id", task.JobID, "url", task.URL)

	exists, err := w.products.ExistsBySourceURL(ctx, task.URL)
	if err != nil {
		logger.Error("existence check failed", "error", err)
		w.manager.RecordFailed(task.JobID)
		return
	}
	if exists {
		logger.Info("product already ingested, skipping")
		w.manager.RecordSkipped(task.JobID)
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		w.manager.RecordFailed(task.JobID)
		return
	}

	record, err := w.extractor.Extract(ctx, task.URL)
	if err != nil {
		logger.Warn("extraction failed", "error", err)
		w.manager.RecordFailed(task.JobID)
		return
	}

	product, err := w.products.Upsert(ctx, record, task.Category, task.Season)
	if err != nil {
		logger.Error("failed to store product", "error", err)
		w.manager.RecordFailed(task.JobID)
		return
	}

	if w.publisher != nil {
		err := w.publisher.PublishProductIngested(ctx, events.ProductIngested{
			ProductID:  product.ID,
			Title:      product.Title,
			PriceCents: product.PriceCents,
			SourceURL:  product.SourceURL,
			Category:   product.Category,
			IngestedAt: time.Now().UTC(),
		})
		if err != nil {
			// The product is committed; a lost event is recoverable.
			logger.Warn("failed to publish ingest event", "error", err)
		}
	}

	logger.Info("product ingested", "product_id", product.ID, "price_cents", product.PriceCents)
	w.manager.RecordIngested(task.JobID)
}

// Enqueue marks the job running and queues one task per URL.
func (w *Worker) Enqueue(job *Job, urls []string, category, season string) error {
	w.manager.SetFound(job.ID, len(urls))
	w.manager.SetStatus(job.ID, StatusRunning)

	tasks := make([]*queue.Task, len(urls))
	for i, url := range urls {
		tasks[i] = &queue.Task{
			JobID:     job.ID,
			URL:       url,
			Category:  category,
			Season:    season,
			CreatedAt: time.Now().UTC(),
		}
	}
	return w.queue.PushBatch(tasks)
}
