package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sjsage522/blogworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPICrawler(t *testing.T, handler http.HandlerFunc) (*BlogCrawler, *MockCacheService) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testCrawlerConfig()
	cfg.ListAPIURL = server.URL
	cfg.ListAPIPageSize = 50

	now := time.Date(2024, 3, 10, 15, 4, 5, 0, time.Local)
	cacheSvc := NewMockCacheService()
	c := NewBlogCrawler(cfg, cacheSvc, WithPause(NoPause), WithClock(func() time.Time { return now }))
	return c, cacheSvc
}

func TestFetchBasic(t *testing.T) {
	c, _ := newAPICrawler(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "https://developer.huawei.com/consumer/cn/blog/recommended", r.Header.Get("Referer"))
		assert.Equal(t, "https://developer.huawei.com", r.Header.Get("Origin"))

		var req blogListRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, blogListRequest{PageSize: 50, PageIndex: 1, Type: 0}, req)

		w.Write([]byte(`{"resultList":[
			{"blogId":"0201","title":" HarmonyOS tips ","summary":"Build  faster\napps","publishTime":"20240115103000"},
			{"blogId":202,"title":"Numeric id","summary":"","publishTime":null},
			{"blogId":"","title":"No id"},
			{"blogId":"0201","title":"Duplicate"}
		]}`))
	})

	articles, err := c.FetchBasic(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "https://developer.huawei.com/consumer/cn/blog/topic/0201", first.URL)
	assert.Equal(t, ArticleID(first.URL), first.ID)
	assert.Equal(t, "HarmonyOS tips", first.Title)
	assert.Equal(t, "Build faster apps", first.Summary)
	assert.Equal(t, "2024-01-15 10:30:00", first.PublishedAt)
	assert.Equal(t, "Huawei Developer Blog", first.Source)
	assert.Equal(t, "Huawei Developer", first.Category)
	assert.Equal(t, []ContentBlock{{Type: BlockText, Value: "Build faster apps"}}, first.Content)
	assert.False(t, first.IsFull())

	second := articles[1]
	assert.Equal(t, "https://developer.huawei.com/consumer/cn/blog/topic/202", second.URL)
	assert.Equal(t, "2024-03-10 15:04:05", second.PublishedAt)
	assert.Equal(t, []ContentBlock{{Type: BlockText, Value: EmptyContentMarker}}, second.Content)
}

func TestFetchBasicRateLimited(t *testing.T) {
	c, cacheSvc := newAPICrawler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchBasic(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))

	_, cacheErr := cacheSvc.Get("blog_cooldown:rate_limited")
	assert.NoError(t, cacheErr)

	// the next call is refused without reaching the server
	_, err = c.FetchBasic(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
}

func TestFetchBasicIgnoresCrawlCooldown(t *testing.T) {
	c, cacheSvc := newAPICrawler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultList":[{"blogId":"0301","title":"Still served"}]}`))
	})
	// set by an aborted browser run, not by the API
	require.NoError(t, cacheSvc.Set("blog_cooldown", []byte("60"), time.Minute))

	articles, err := c.FetchBasic(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Still served", articles[0].Title)
}

func TestFetchBasicErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		c, _ := newAPICrawler(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.FetchBasic(context.Background())
		assert.True(t, errors.IsType(err, errors.ErrorTypeNetwork))
	})

	t.Run("malformed body", func(t *testing.T) {
		c, _ := newAPICrawler(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"resultList":`))
		})
		_, err := c.FetchBasic(context.Background())
		assert.True(t, errors.IsType(err, errors.ErrorTypeParsing))
	})
}
