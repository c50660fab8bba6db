package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/blogworker/helpers"
	"sjsage522/blogworker/logger"
	"sjsage522/blogworker/pkg/errors"
	"sjsage522/blogworker/services/cache"

	"github.com/PuerkitoBio/goquery"
)

// RunState is the stage a crawl run has reached
type RunState int

const (
	StateIdle RunState = iota
	StateSessionOpen
	StateListingReady
	StateIterating
	StateDone
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionOpen:
		return "session_open"
	case StateListingReady:
		return "listing_ready"
	case StateIterating:
		return "iterating"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

var _ Crawler = (*BlogCrawler)(nil)

// BlogCrawler drives one browser session through the blog listing per run
type BlogCrawler struct {
	// Cool-down marker set after the site pushed back
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration

	cfg       CrawlerConfig
	launch    SessionLauncher
	pause     PauseFunc
	extractor *Extractor
	now       func() time.Time
	log       *logger.Logger
}

// Option customizes a BlogCrawler
type Option func(*BlogCrawler)

// WithLauncher replaces the rod session launcher
func WithLauncher(l SessionLauncher) Option {
	return func(c *BlogCrawler) { c.launch = l }
}

// WithPause replaces the randomized pause between interactions
func WithPause(p PauseFunc) Option {
	return func(c *BlogCrawler) { c.pause = p }
}

// WithClock replaces the clock used to normalize publish times
func WithClock(now func() time.Time) Option {
	return func(c *BlogCrawler) { c.now = now }
}

// NewBlogCrawler creates a crawler for the configured blog
func NewBlogCrawler(cfg CrawlerConfig, cacheSvc cache.CacheService, opts ...Option) *BlogCrawler {
	cfg = cfg.withDefaults()

	c := &BlogCrawler{
		CacheKey:  cfg.CacheKey,
		CacheSvc:  cacheSvc,
		BlockTime: cfg.BlockTime,
		cfg:       cfg,
		extractor: NewExtractor(cfg.BaseURL, cfg.Selectors.Operations),
		now:       time.Now,
		log:       logger.ForCrawler(cfg.Provider),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pause == nil {
		c.pause = RandomPause(cfg.PauseMin, cfg.PauseMax)
	}
	if c.launch == nil {
		c.launch = NewRodLauncher(cfg, c.pause)
	}
	return c
}

func (cfg CrawlerConfig) withDefaults() CrawlerConfig {
	if cfg.DetailURLPattern == "" {
		cfg.DetailURLPattern = "/blog/topic/"
	}
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = 20
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.ListingTimeout <= 0 {
		cfg.ListingTimeout = 60 * time.Second
	}
	if cfg.CardsTimeout <= 0 {
		cfg.CardsTimeout = 30 * time.Second
	}
	if cfg.DetailTimeout <= 0 {
		cfg.DetailTimeout = 40 * time.Second
	}
	if cfg.Selectors.Card == "" {
		cfg.Selectors = DefaultSelectors()
	}
	if cfg.Browser.UserAgent == "" {
		cfg.Browser.UserAgent = helpers.DesktopUserAgent
	}
	if cfg.Browser.ViewportWidth <= 0 || cfg.Browser.ViewportHeight <= 0 {
		cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight = 1920, 1080
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

// GetName returns the crawler's name
func (c *BlogCrawler) GetName() string {
	return "BlogCrawler"
}

// GetProvider returns the source label of the crawled site
func (c *BlogCrawler) GetProvider() string {
	return c.cfg.Provider
}

// Crawl opens the listing, selects the latest tab and collects up to MaxArticles articles.
// It never fails: whatever was collected before an abort is returned.
func (c *BlogCrawler) Crawl(ctx context.Context, sink BatchSink) (articles []Article) {
	state := StateIdle
	var (
		session   Session
		collected []Article
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("state", state.String()).Msg("Crawl run panicked")
			state = StateAborted
		}
		if session != nil {
			session.Release()
		}
		articles = collected
		c.log.Info().
			Str("state", state.String()).
			Int("collected", len(collected)).
			Dur("elapsed", time.Since(start)).
			Msg("Crawl run finished")
	}()

	abort := func(err error, stage string) {
		state = StateAborted
		c.log.Error().Err(err).Str("stage", stage).Msg("Crawl run aborted")
	}

	if c.crawlBlocked() {
		abort(errors.NewRateLimit(c.cfg.Provider, c.BlockTime), "cooldown")
		return
	}

	s, err := c.launch(ctx)
	if err != nil {
		abort(err, "acquire session")
		return
	}
	session = s
	state = StateSessionOpen

	if err := c.prepareListing(ctx, session); err != nil {
		abort(err, "prepare listing")
		c.startCooldown(c.CacheKey)
		return
	}
	state = StateListingReady
	c.log.Debug().Str("state", state.String()).Msg("Listing ready")

	state = StateIterating
	for index := 0; index < c.cfg.MaxArticles; index++ {
		if err := ctx.Err(); err != nil {
			abort(err, "iterate")
			return
		}
		if err := session.WaitForCards(ctx); err != nil {
			abort(err, "wait for cards")
			return
		}
		count, err := session.CardCount(ctx)
		if err != nil {
			abort(err, "list cards")
			return
		}
		if index >= count {
			c.log.Debug().Int("index", index).Int("cards", count).Msg("Listing exhausted")
			break
		}

		if article := c.openCard(ctx, session, index); article != nil {
			collected = append(collected, *article)
			if len(collected)%c.cfg.BatchSize == 0 && sink != nil {
				batch := make([]Article, c.cfg.BatchSize)
				copy(batch, collected[len(collected)-c.cfg.BatchSize:])
				sink.OnBatch(batch)
			}
		}

		if index+1 < c.cfg.MaxArticles {
			if err := session.SelectLatestTab(ctx); err != nil {
				c.log.Warn().Err(err).Int("index", index).Msg("Failed to re-select latest tab")
			}
		}
	}

	state = StateDone
	return
}

func (c *BlogCrawler) prepareListing(ctx context.Context, session Session) error {
	if err := session.OpenListing(ctx); err != nil {
		return err
	}
	if err := session.SelectLatestTab(ctx); err != nil {
		return err
	}
	return session.WaitForCards(ctx)
}

// openCard contains every per-article fault: the index is skipped, never the run
func (c *BlogCrawler) openCard(ctx context.Context, session Session, index int) *Article {
	article, err := WithRetries(ctx, staleRetryAttempts, c.pause, func(attempt int) (*Article, error) {
		a, err := session.OpenCard(ctx, index)
		if err != nil && errors.IsRetryable(err) {
			c.log.Debug().Err(err).Int("index", index).Int("attempt", attempt).Msg("Card interaction failed, retrying")
		}
		return a, err
	})

	switch {
	case err == nil:
		return article
	case errors.IsType(err, errors.ErrorTypeStaleElement):
		c.log.Error().Err(err).Int("index", index).Msg("Failed to interact with card after retries")
	case errors.IsType(err, errors.ErrorTypeNavigationTimeout):
		c.log.Warn().Err(err).Int("index", index).Msg("Skipping card after navigation timeout")
	default:
		c.log.Warn().Err(err).Int("index", index).Msg("Skipping card")
	}
	return nil
}

// FetchContent extracts a single article. A browser session is preferred; a plain HTTP fetch is the fallback.
func (c *BlogCrawler) FetchContent(ctx context.Context, articleURL string) ([]ContentBlock, error) {
	session, err := c.launch(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("url", articleURL).Msg("Browser unavailable, fetching article statically")
		return c.fetchStatic(ctx, articleURL)
	}
	defer session.Release()

	blocks, err := session.ExtractDetail(ctx, articleURL)
	if err != nil {
		c.log.Warn().Err(err).Str("url", articleURL).Msg("Browser extraction failed, fetching article statically")
		return c.fetchStatic(ctx, articleURL)
	}
	return blocks, nil
}

func (c *BlogCrawler) fetchStatic(ctx context.Context, articleURL string) ([]ContentBlock, error) {
	if c.fetchBlocked() {
		return nil, errors.NewRateLimit(c.cfg.Provider, c.BlockTime)
	}

	reader, err := helpers.FetchWithRandomHeaders(ctx, articleURL)
	if err != nil {
		if strings.Contains(err.Error(), helpers.ErrRateLimited) {
			c.startCooldown(c.rateLimitKey())
			return nil, errors.NewRateLimit(c.cfg.Provider, c.BlockTime)
		}
		return nil, errors.NewNetwork(c.cfg.Provider, "fetch article", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, errors.NewParsing(c.cfg.Provider, "parse article", err)
	}
	return c.extractor.ExtractDocument(doc, c.cfg.Selectors.ContentChain), nil
}

// rateLimitKey marks an HTTP 429/430 answer. It blocks browser runs and HTTP loads alike,
// while CacheKey alone only blocks browser runs.
func (c *BlogCrawler) rateLimitKey() string {
	if c.CacheKey == "" {
		return ""
	}
	return c.CacheKey + ":rate_limited"
}

// crawlBlocked reports whether a browser run must be skipped
func (c *BlogCrawler) crawlBlocked() bool {
	return c.inCooldown(c.CacheKey) || c.inCooldown(c.rateLimitKey())
}

// fetchBlocked reports whether plain HTTP requests must be skipped
func (c *BlogCrawler) fetchBlocked() bool {
	return c.inCooldown(c.rateLimitKey())
}

func (c *BlogCrawler) inCooldown(key string) bool {
	if c.CacheSvc == nil || key == "" {
		return false
	}
	_, err := c.CacheSvc.Get(key)
	return err == nil
}

func (c *BlogCrawler) startCooldown(key string) {
	if c.CacheSvc == nil || key == "" || c.BlockTime <= 0 {
		return
	}
	value := []byte(fmt.Sprintf("%d", c.BlockTime/time.Second))
	if err := c.CacheSvc.Set(key, value, c.BlockTime); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to set cool-down key")
		return
	}
	c.log.Warn().Str("key", key).Dur("block_time", c.BlockTime).Msg("Cool-down started")
}
