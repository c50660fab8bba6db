// Package articles holds the in-process article cache served to readers.
package articles

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sjsage522/blogworker/internal/crawler"
	"sjsage522/blogworker/logger"
)

// Status is the lifecycle state of the cache
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Loader produces listing-only articles
type Loader interface {
	FetchBasic(ctx context.Context) ([]crawler.Article, error)
}

// ContentFetcher extracts the full content of one article
type ContentFetcher interface {
	FetchContent(ctx context.Context, articleURL string) ([]crawler.ContentBlock, error)
}

// Page is one slice of the filtered article list
type Page struct {
	Items    []crawler.Article `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	HasNext  bool              `json:"has_next"`
	HasPrev  bool              `json:"has_prev"`
}

// Report describes the cache for health displays
type Report struct {
	Status        Status `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
	LastUpdate    string `json:"last_update,omitempty"`
	TotalArticles int    `json:"total_articles"`
}

var _ crawler.BatchSink = (*Cache)(nil)

// Cache keeps the ordered article list. Readers never observe a list while it is being rebuilt.
type Cache struct {
	mu         sync.RWMutex
	status     Status
	errMsg     string
	lastUpdate time.Time
	articles   []crawler.Article
	index      map[string]int

	// serializes Warm and Refresh
	rebuildMu sync.Mutex

	loader  Loader
	fetcher ContentFetcher
	now     func() time.Time
	log     *logger.Logger
}

// New creates a cache in the Preparing state
func New(loader Loader, fetcher ContentFetcher) *Cache {
	return &Cache{
		status:  StatusPreparing,
		index:   make(map[string]int),
		loader:  loader,
		fetcher: fetcher,
		now:     time.Now,
		log:     logger.ForCache(),
	}
}

// Warm populates the cache with listing-only articles.
// A loader failure leaves the cache in the Error state; it is not returned.
func (c *Cache) Warm(ctx context.Context) {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()
	c.rebuild(ctx, "warm")
}

// Refresh discards every article and warms the cache again
func (c *Cache) Refresh(ctx context.Context) {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()
	c.rebuild(ctx, "refresh")
}

func (c *Cache) rebuild(ctx context.Context, reason string) {
	c.mu.Lock()
	c.status = StatusPreparing
	c.errMsg = ""
	c.articles = nil
	c.index = make(map[string]int)
	c.mu.Unlock()

	start := c.now()
	loaded, err := c.loader.FetchBasic(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.status = StatusError
		c.errMsg = fmt.Sprintf("initialization failed: %v", err)
		c.log.Error().Err(err).Str("reason", reason).Msg("Article cache initialization failed")
		return
	}

	for _, a := range loaded {
		c.upsertLocked(a)
	}
	c.status = StatusReady
	c.lastUpdate = c.now()
	c.log.Info().
		Str("reason", reason).
		Int("articles", len(c.articles)).
		Dur("elapsed", c.lastUpdate.Sub(start)).
		Msg("Article cache ready")
}

// Query filters by exact category and case-insensitive search on title or summary, then paginates.
// Out-of-range pages are empty, never an error.
func (c *Cache) Query(page, pageSize int, category, search string) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.status == StatusPreparing {
		return Page{Items: []crawler.Article{}, Page: page, PageSize: pageSize}
	}

	search = strings.ToLower(strings.TrimSpace(search))
	filtered := make([]crawler.Article, 0, len(c.articles))
	for _, a := range c.articles {
		if category != "" && a.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Summary), search) {
			continue
		}
		filtered = append(filtered, a)
	}

	total := len(filtered)
	start := total
	// page-1 beyond total/pageSize is past the end; the product could overflow
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := min(start+pageSize, total)

	return Page{
		Items:    filtered[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
	}
}

// Detail returns the article with id. A listing-only article is upgraded in place
// with its full content first; if that fetch fails the listing-only record is returned.
func (c *Cache) Detail(ctx context.Context, id string) (*crawler.Article, bool) {
	c.mu.RLock()
	i, ok := c.index[id]
	var article crawler.Article
	if ok {
		article = c.articles[i]
	}
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if article.IsFull() || c.fetcher == nil {
		return &article, true
	}

	blocks, err := c.fetcher.FetchContent(ctx, article.URL)
	if err != nil {
		c.log.Warn().Err(err).Str("id", id).Str("url", article.URL).Msg("Failed to fetch article content")
		return &article, true
	}
	if len(blocks) == 0 {
		blocks = []crawler.ContentBlock{{Type: crawler.BlockText, Value: crawler.EmptyContentMarker}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[id]; ok {
		if !c.articles[i].IsFull() {
			c.articles[i].Content = blocks
			c.articles[i].Fidelity = crawler.FidelityFull
		}
		article = c.articles[i]
	} else {
		article.Content = blocks
		article.Fidelity = crawler.FidelityFull
	}
	return &article, true
}

// Append adds crawled articles. An article whose id is already cached replaces it,
// except that a listing-only record never replaces a full one.
func (c *Cache) Append(articles []crawler.Article) {
	if len(articles) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range articles {
		c.upsertLocked(a)
	}
	c.lastUpdate = c.now()
	c.log.Debug().Int("appended", len(articles)).Int("total", len(c.articles)).Msg("Articles appended")
}

// OnBatch lets the cache receive crawl batches directly
func (c *Cache) OnBatch(articles []crawler.Article) {
	c.Append(articles)
}

func (c *Cache) upsertLocked(a crawler.Article) {
	if i, ok := c.index[a.ID]; ok {
		if c.articles[i].IsFull() && !a.IsFull() {
			return
		}
		c.articles[i] = a
		return
	}
	c.index[a.ID] = len(c.articles)
	c.articles = append(c.articles, a)
}

// Status reports the cache state for health displays
func (c *Cache) Status() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r := Report{
		Status:        c.status,
		ErrorMessage:  c.errMsg,
		TotalArticles: len(c.articles),
	}
	if !c.lastUpdate.IsZero() {
		r.LastUpdate = c.lastUpdate.Format(time.RFC3339)
	}
	return r
}
