package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/blogworker/config"
	"sjsage522/blogworker/internal/crawler"
	"sjsage522/blogworker/logger"
	"sjsage522/blogworker/services/articles"
	"sjsage522/blogworker/services/cache"
	"sjsage522/blogworker/services/publisher"
	"sjsage522/blogworker/services/worker"

	"github.com/joho/godotenv"
)

const cooldownKey = "huawei_blog_cooldown"

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("crawl_interval", cfg.CrawlInterval).
		Bool("deep_crawl", cfg.DeepCrawl).
		Msg("Starting application")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	blog := crawler.NewBlogCrawler(crawlerConfig(cfg), services.Cache)
	store := articles.New(blog, blog)

	w := worker.NewWorker(blog, store, services.Publisher, cfg.CrawlInterval, cfg.DeepCrawl)

	log.Info().Str("crawler", blog.GetName()).Str("provider", blog.GetProvider()).Msg("Starting blog worker")
	if err := w.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices connects to memcache and redis. Both are optional:
// without memcache there is no cool-down, without redis nothing is published.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr, "blogworker:")
	if err := memcacheService.Ping(); err != nil {
		logger.Warn("Memcache at %s unavailable, cool-down disabled: %v", cfg.MemcacheAddr, err)
	} else {
		services.Cache = memcacheService
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	redisPublisher := publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(ctx); err != nil {
		logger.Warn("Redis at %s unavailable, publishing disabled: %v", cfg.RedisAddr, err)
		redisPublisher.Close()
	} else {
		services.Publisher = redisPublisher
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services
}

func crawlerConfig(cfg *config.Config) crawler.CrawlerConfig {
	return crawler.CrawlerConfig{
		BaseURL:         cfg.BaseURL,
		ListURL:         cfg.ListURL,
		ListAPIURL:      cfg.ListAPIURL,
		ListAPIPageSize: cfg.ListAPIPageSize,
		Provider:        cfg.Source,
		Category:        cfg.Category,
		LatestTabLabel:  cfg.LatestTabLabel,
		MaxArticles:     cfg.MaxArticles,
		BatchSize:       cfg.BatchSize,
		ListingTimeout:  cfg.ListingTimeout,
		CardsTimeout:    cfg.CardsTimeout,
		DetailTimeout:   cfg.DetailTimeout,
		PauseMin:        cfg.PauseMin,
		PauseMax:        cfg.PauseMax,
		CacheKey:        cooldownKey,
		BlockTime:       cfg.CooldownPeriod,
		Browser: crawler.BrowserConfig{
			Bin:      cfg.ChromeBin,
			Headless: cfg.BrowserHeadless,
			ProxyURL: cfg.BrowserProxyURL,
		},
	}
}
