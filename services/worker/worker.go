package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sjsage522/blogworker/internal/crawler"
	"sjsage522/blogworker/logger"
	"sjsage522/blogworker/services/articles"
	"sjsage522/blogworker/services/publisher"
)

// defaultCrawlInterval applies when the configured interval is not positive
const defaultCrawlInterval = 30 * time.Minute

// Store is the part of the article cache the worker keeps fresh
type Store interface {
	Warm(ctx context.Context)
	Refresh(ctx context.Context)
	Append(items []crawler.Article)
	Status() articles.Report
}

// Worker refreshes the article cache on an interval and, when deep crawling
// is enabled, browses the listing and publishes full articles in batches
type Worker struct {
	crawler       crawler.Crawler
	store         Store
	publisher     publisher.Publisher
	log           *logger.Logger
	crawlInterval time.Duration
	deepCrawl     bool

	running atomic.Bool
	warmed  bool
}

// NewWorker creates a new worker
func NewWorker(
	c crawler.Crawler,
	store Store,
	pub publisher.Publisher,
	crawlInterval time.Duration,
	deepCrawl bool,
) *Worker {
	if crawlInterval <= 0 {
		crawlInterval = defaultCrawlInterval
	}
	return &Worker{
		crawler:       c,
		store:         store,
		publisher:     pub,
		log:           logger.ForWorker(),
		crawlInterval: crawlInterval,
		deepCrawl:     deepCrawl,
	}
}

// Start runs a cycle immediately and then every crawl interval until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.crawlInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		if w.RunOnce(ctx) {
			w.log.Info().Dur("elapsed", time.Since(start)).Msg("Crawl cycle completed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one cycle. It returns false when a cycle is already running.
func (w *Worker) RunOnce(ctx context.Context) bool {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn().Msg("Previous crawl cycle still running, skipping")
		return false
	}
	defer w.running.Store(false)

	if !w.warmed {
		w.store.Warm(ctx)
		w.warmed = true
	} else {
		w.store.Refresh(ctx)
	}
	report := w.store.Status()
	w.log.Info().
		Str("status", string(report.Status)).
		Int("articles", report.TotalArticles).
		Str("error", report.ErrorMessage).
		Msg("Article cache rebuilt")

	if w.deepCrawl && ctx.Err() == nil {
		w.crawlAndPublish(ctx)
	}

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(ctx); err != nil {
			logger.LogError("StreamTrimming", err, "failed to trim streams")
		}
	}
	return true
}

// crawlAndPublish forwards every batch to the store and the publisher,
// then flushes whatever the run collected after its last full batch
func (w *Worker) crawlAndPublish(ctx context.Context) {
	var (
		mu        sync.Mutex
		delivered int
	)
	sink := crawler.SinkFunc(func(batch []crawler.Article) {
		mu.Lock()
		delivered += len(batch)
		mu.Unlock()
		w.deliver(ctx, batch)
	})

	collected := w.crawler.Crawl(ctx, sink)

	mu.Lock()
	rest := delivered
	mu.Unlock()
	if rest < len(collected) {
		w.deliver(ctx, collected[rest:])
	}

	w.log.Info().
		Str("crawler", w.crawler.GetName()).
		Str("provider", w.crawler.GetProvider()).
		Int("collected", len(collected)).
		Msg("Deep crawl finished")
}

func (w *Worker) deliver(ctx context.Context, batch []crawler.Article) {
	w.store.Append(batch)
	if w.publisher == nil {
		return
	}
	if err := publisher.PublishArticles(ctx, w.publisher, batch); err != nil {
		w.log.Error().Err(err).Int("batch", len(batch)).Msg("Failed to publish articles")
		return
	}
	w.log.Debug().Int("batch", len(batch)).Str("first", batch[0].Title).Msg("Published articles")
}
