package crawler

import (
	"context"
	"time"
)

// BlockKind is the type of a content block
type BlockKind string

const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
)

// EmptyContentMarker is the value of the single text block emitted for a body with no extractable content
const EmptyContentMarker = "文章内容为空"

// ContentBlock is one unit of article body in reading order
type ContentBlock struct {
	Type  BlockKind `json:"type"`
	Value string    `json:"value"`
}

// Fidelity tells whether an article was built from the listing only or from its detail page
type Fidelity int

const (
	FidelityBasic Fidelity = iota
	FidelityFull
)

// Article represents a normalized blog article
type Article struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	PublishedAt string         `json:"date"`
	Source      string         `json:"source"`
	Summary     string         `json:"summary"`
	Category    string         `json:"category"`
	Content     []ContentBlock `json:"content"`
	Fidelity    Fidelity       `json:"-"`
}

// IsFull reports whether the article content came from its detail page
func (a *Article) IsFull() bool {
	return a.Fidelity == FidelityFull
}

// BatchSink receives every full batch of articles collected during a crawl run
type BatchSink interface {
	OnBatch(articles []Article)
}

// SinkFunc adapts a plain function to BatchSink
type SinkFunc func(articles []Article)

// OnBatch calls f(articles)
func (f SinkFunc) OnBatch(articles []Article) {
	f(articles)
}

// Crawler interface defines the contract for the blog crawler
type Crawler interface {
	// Crawl drives a browser through the listing and returns every article it collected
	Crawl(ctx context.Context, sink BatchSink) []Article

	// FetchBasic loads listing-only records without browsing into detail pages
	FetchBasic(ctx context.Context) ([]Article, error)

	// FetchContent extracts the full content of a single article
	FetchContent(ctx context.Context, articleURL string) ([]ContentBlock, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string

	// GetProvider returns the provider name for the crawler
	GetProvider() string
}

// Selectors contains CSS selectors for various elements in the listing and detail pages
type Selectors struct {
	TabRegion       string
	ActiveTabClass  string
	CardContainer   string
	Card            string
	CardTitle       string
	CardDescription string
	CardContent     string
	CardTime        string
	DetailContent   string
	Operations      string
	// ContentChain is tried in order on a detail page opened directly by URL; first match wins
	ContentChain []string
}

// DefaultSelectors returns the selectors of the Huawei developer blog
func DefaultSelectors() Selectors {
	return Selectors{
		TabRegion:       "div.sort",
		ActiveTabClass:  "active",
		CardContainer:   "div.scroll-container",
		Card:            "div.article-item",
		CardTitle:       "a.title-text",
		CardDescription: "div.article-description div",
		CardContent:     "div.article-content",
		CardTime:        ".topic-time",
		DetailContent:   "div.blog-content",
		Operations:      "div.operations",
		ContentChain: []string{
			"div#blogContent",
			"div.blog-content",
			"div.article-content",
			"div.post-content",
			"article",
			"div.content",
			"div.main-content",
		},
	}
}

// BrowserConfig configures the automated browser
type BrowserConfig struct {
	Bin            string
	Headless       bool
	ProxyURL       string
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// CrawlerConfig contains configuration for a crawler
type CrawlerConfig struct {
	BaseURL          string
	ListURL          string
	ListAPIURL       string
	ListAPIPageSize  int
	DetailURLPattern string
	Provider         string
	Category         string
	LatestTabLabel   string

	MaxArticles int
	BatchSize   int

	ListingTimeout time.Duration
	CardsTimeout   time.Duration
	DetailTimeout  time.Duration
	PauseMin       time.Duration
	PauseMax       time.Duration

	// CacheKey marks a cool-down period in the cache service after the site pushed back
	CacheKey  string
	BlockTime time.Duration

	Selectors Selectors
	Browser   BrowserConfig
}
