package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/blogworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Target site
	BaseURL         string
	ListURL         string
	ListAPIURL      string
	ListAPIPageSize int
	Source          string
	Category        string
	LatestTabLabel  string

	// Crawl run
	MaxArticles    int
	BatchSize      int
	CrawlInterval  time.Duration
	DeepCrawl      bool
	CooldownPeriod time.Duration

	// Per-step timeouts
	ListingTimeout time.Duration
	CardsTimeout   time.Duration
	DetailTimeout  time.Duration

	// Human-like pauses between interactions
	PauseMin time.Duration
	PauseMax time.Duration

	// Browser
	ChromeBin       string
	BrowserHeadless bool
	BrowserProxyURL string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	baseURL := strings.TrimRight(getEnv("BLOG_BASE_URL", "https://developer.huawei.com"), "/")

	return &Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "blogarticles"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 500),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		BaseURL:              baseURL,
		ListURL:              getEnv("BLOG_LIST_URL", baseURL+"/consumer/cn/blog/recommended"),
		ListAPIURL:           getEnv("BLOG_LIST_API_URL", "https://svc-drcn.developer.huawei.com/community/servlet/consumer/partnerblogservice/v1/openblog/getBlogList"),
		ListAPIPageSize:      getEnvInt("BLOG_LIST_API_PAGE_SIZE", 50),
		Source:               getEnv("BLOG_SOURCE", "Huawei Developer Blog"),
		Category:             getEnv("BLOG_CATEGORY", "Huawei Developer"),
		LatestTabLabel:       getEnv("BLOG_LATEST_TAB_LABEL", "最新"),
		MaxArticles:          getEnvInt("CRAWL_MAX_ARTICLES", 20),
		BatchSize:            getEnvInt("CRAWL_BATCH_SIZE", 5),
		CrawlInterval:        time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", 1800)) * time.Second,
		DeepCrawl:            getEnvBool("CRAWL_DEEP_ENABLED", true),
		CooldownPeriod:       time.Duration(getEnvInt("CRAWL_COOLDOWN_SECONDS", 600)) * time.Second,
		ListingTimeout:       time.Duration(getEnvInt("LISTING_TIMEOUT_SECONDS", 60)) * time.Second,
		CardsTimeout:         time.Duration(getEnvInt("CARDS_TIMEOUT_SECONDS", 30)) * time.Second,
		DetailTimeout:        time.Duration(getEnvInt("DETAIL_TIMEOUT_SECONDS", 40)) * time.Second,
		PauseMin:             time.Duration(getEnvInt("PAUSE_MIN_MS", 800)) * time.Millisecond,
		PauseMax:             time.Duration(getEnvInt("PAUSE_MAX_MS", 1600)) * time.Millisecond,
		ChromeBin:            firstNonEmpty(os.Getenv("CHROME_BIN"), os.Getenv("BLOG_CHROME_BINARY")),
		BrowserHeadless:      getEnvBool("BROWSER_HEADLESS", true),
		BrowserProxyURL:      getEnv("BROWSER_PROXY_URL", ""),
		Environment:          getEnv("BLOG_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the crawler cannot run with
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return errors.NewConfiguration(fmt.Sprintf("invalid BLOG_BASE_URL %q", c.BaseURL), err)
	}
	if _, err := url.ParseRequestURI(c.ListURL); err != nil {
		return errors.NewConfiguration(fmt.Sprintf("invalid BLOG_LIST_URL %q", c.ListURL), err)
	}
	if c.MaxArticles <= 0 {
		return errors.NewConfiguration("CRAWL_MAX_ARTICLES must be positive", nil)
	}
	if c.BatchSize <= 0 {
		return errors.NewConfiguration("CRAWL_BATCH_SIZE must be positive", nil)
	}
	if c.CrawlInterval <= 0 {
		return errors.NewConfiguration("CRAWL_INTERVAL_SECONDS must be positive", nil)
	}
	if c.CooldownPeriod < 0 {
		return errors.NewConfiguration("CRAWL_COOLDOWN_SECONDS must not be negative", nil)
	}
	if c.ListingTimeout <= 0 || c.CardsTimeout <= 0 || c.DetailTimeout <= 0 {
		return errors.NewConfiguration("step timeouts must be positive", nil)
	}
	if c.PauseMin < 0 || c.PauseMax < c.PauseMin {
		return errors.NewConfiguration("PAUSE_MIN_MS must be non-negative and not exceed PAUSE_MAX_MS", nil)
	}
	if c.RedisStreamCount <= 0 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	if strings.TrimSpace(c.LatestTabLabel) == "" {
		return errors.NewConfiguration("BLOG_LATEST_TAB_LABEL must not be empty", nil)
	}
	return nil
}

// IsProduction reports whether the worker runs in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
