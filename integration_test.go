package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sjsage522/blogworker/config"
	"sjsage522/blogworker/internal/crawler"
	"sjsage522/blogworker/pkg/errors"
	"sjsage522/blogworker/services/articles"
	"sjsage522/blogworker/services/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listResponse = `{"resultList":[
	{"blogId":"0201","title":"HarmonyOS ArkUI layout","summary":"Flex and grid","publishTime":"20240115103000"},
	{"blogId":"0202","title":"Push Kit quick start","summary":"Server side tokens","publishTime":"20240114090000"},
	{"blogId":"0203","title":"HarmonyOS distributed data","summary":"","publishTime":"20240113080000"}
]}`

const detailHTML = `<!DOCTYPE html>
<html>
<body>
	<div id="blogContent">
		<h2>ArkUI layout</h2>
		<p>Use <b>Flex</b> for one dimension.</p>
		<img data-src="/images/flex.png">
		<div class="operations">Like 12 Share</div>
		<p>Comments</p>
	</div>
</body>
</html>`

func newBlogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/getBlogList", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listResponse))
	})
	mux.HandleFunc("/consumer/cn/blog/topic/0201", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(detailHTML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, server *httptest.Server) *config.Config {
	t.Setenv("BLOG_BASE_URL", server.URL)
	t.Setenv("BLOG_LIST_API_URL", server.URL+"/api/getBlogList")
	t.Setenv("CRAWL_DEEP_ENABLED", "false")

	cfg := config.LoadConfig()
	require.NoError(t, cfg.Validate())
	return cfg
}

// noBrowser forces the single-article fetch onto its static fallback
func noBrowser(ctx context.Context) (crawler.Session, error) {
	return nil, errors.NewSessionInit("test", "launch browser", nil)
}

func TestCrawlerConfigMapping(t *testing.T) {
	server := newBlogServer(t)
	cfg := testConfig(t, server)

	cc := crawlerConfig(cfg)

	assert.Equal(t, server.URL, cc.BaseURL)
	assert.Equal(t, server.URL+"/consumer/cn/blog/recommended", cc.ListURL)
	assert.Equal(t, cfg.Source, cc.Provider)
	assert.Equal(t, cooldownKey, cc.CacheKey)
	assert.Equal(t, cfg.CooldownPeriod, cc.BlockTime)
	assert.Equal(t, "最新", cc.LatestTabLabel)
	assert.True(t, cc.Browser.Headless)
}

func TestWarmQueryAndDetail(t *testing.T) {
	server := newBlogServer(t)
	cfg := testConfig(t, server)

	blog := crawler.NewBlogCrawler(crawlerConfig(cfg), nil,
		crawler.WithLauncher(noBrowser), crawler.WithPause(crawler.NoPause))
	store := articles.New(blog, blog)

	w := worker.NewWorker(blog, store, nil, time.Hour, cfg.DeepCrawl)
	require.True(t, w.RunOnce(context.Background()))

	report := store.Status()
	require.Equal(t, articles.StatusReady, report.Status)
	assert.Equal(t, 3, report.TotalArticles)

	page := store.Query(1, 2, "", "harmonyos")
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.False(t, page.HasNext)
	assert.Equal(t, "HarmonyOS ArkUI layout", page.Items[0].Title)

	article, ok := store.Detail(context.Background(), page.Items[0].ID)
	require.True(t, ok)
	assert.True(t, article.IsFull())
	assert.Equal(t, []crawler.ContentBlock{
		{Type: crawler.BlockText, Value: "ArkUI layout"},
		{Type: crawler.BlockText, Value: "Use Flex for one dimension."},
		{Type: crawler.BlockImage, Value: server.URL + "/images/flex.png"},
	}, article.Content)

	// the upgrade is kept
	again, ok := store.Detail(context.Background(), page.Items[0].ID)
	require.True(t, ok)
	assert.Equal(t, article.Content, again.Content)
}
