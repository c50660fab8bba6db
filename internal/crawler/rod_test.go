package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"sjsage522/blogworker/pkg/errors"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<div class="tabs"><div class="sort active">推荐</div><div class="sort" id="latest">最新</div></div>
<div class="scroll-container">
	<div class="article-item">
		<a class="title-text" href="/consumer/cn/blog/topic/1" target="_blank">Tab article</a>
		<div class="article-description"><div>Opens in a new tab</div></div>
		<span class="topic-time">2024-01-15</span>
	</div>
	<div class="article-item">
		<a class="title-text" href="/consumer/cn/blog/topic/2">Same page article</a>
		<div class="article-description"><div>Opens in place</div></div>
		<span class="topic-time">2024-01-14 08:30</span>
	</div>
</div>
<script>
document.getElementById('latest').addEventListener('click', function () {
	window.latestClicks = (window.latestClicks || 0) + 1;
	document.querySelectorAll('div.sort').forEach(function (el) { el.classList.remove('active'); });
	this.classList.add('active');
});
</script>
</body></html>`

const noLatestTabPage = `<!DOCTYPE html>
<html><body>
<div class="tabs"><div class="sort active">推荐</div><div class="sort">热门</div></div>
<div class="scroll-container"><div class="article-item"><a class="title-text" href="#">Only</a></div></div>
</body></html>`

const topicPage = `<!DOCTYPE html>
<html><body>
<div class="blog-content"><p>Body of TOPIC</p><div class="operations">Like 3</div><p>Comments</p></div>
</body></html>`

// the content region shows up only after page scripts ran
const lateContentPage = `<!DOCTYPE html>
<html><body>
<div id="shell">loading</div>
<script>
setTimeout(function () {
	var c = document.createElement('div');
	c.id = 'blogContent';
	c.innerHTML = '<h2>Rendered late</h2><p>Direct body</p><div class="operations">Share</div><p>Footer</p>';
	document.body.appendChild(c);
	document.getElementById('shell').remove();
}, 300);
</script>
</body></html>`

func newBlogPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	html := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(body))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/listing", html(listingPage))
	mux.HandleFunc("/listing-active", html(strings.Replace(listingPage,
		`<div class="sort active">推荐</div><div class="sort" id="latest">`,
		`<div class="sort">推荐</div><div class="sort active" id="latest">`, 1)))
	mux.HandleFunc("/listing-no-latest", html(noLatestTabPage))
	mux.HandleFunc("/consumer/cn/blog/topic/1", html(strings.Replace(topicPage, "TOPIC", "one", 1)))
	mux.HandleFunc("/consumer/cn/blog/topic/2", html(strings.Replace(topicPage, "TOPIC", "two", 1)))
	mux.HandleFunc("/consumer/cn/blog/topic/late", html(lateContentPage))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// These tests require a local Chrome or Chromium
// If none is found, they are skipped
func newRodTestSession(t *testing.T, server *httptest.Server, listPath string) *rodSession {
	t.Helper()

	bin := os.Getenv("CHROME_BIN")
	if bin == "" {
		path, found := launcher.LookPath()
		if !found {
			t.Skip("Chrome is not available, skipping test")
		}
		bin = path
	}

	cfg := testCrawlerConfig()
	cfg.BaseURL = server.URL
	cfg.ListURL = server.URL + listPath
	cfg.LatestTabLabel = "最新"
	cfg.ListingTimeout = 15 * time.Second
	cfg.CardsTimeout = 10 * time.Second
	cfg.DetailTimeout = 15 * time.Second
	cfg.Browser = BrowserConfig{Bin: bin, Headless: true}
	cfg = cfg.withDefaults()

	session, err := NewRodLauncher(cfg, RandomPause(50*time.Millisecond, 100*time.Millisecond))(context.Background())
	if err != nil {
		t.Skipf("Chrome could not be started, skipping test: %v", err)
	}
	t.Cleanup(session.Release)
	return session.(*rodSession)
}

func latestClicks(t *testing.T, s *rodSession) int {
	t.Helper()
	res, err := s.page.Eval(`() => window.latestClicks || 0`)
	require.NoError(t, err)
	return res.Value.Int()
}

func latestTabActive(t *testing.T, s *rodSession) bool {
	t.Helper()
	el, err := s.page.Element("#latest")
	require.NoError(t, err)
	class, err := el.Attribute("class")
	require.NoError(t, err)
	return class != nil && hasClass(*class, "active")
}

func TestRodSelectLatestTab(t *testing.T) {
	server := newBlogPageServer(t)
	s := newRodTestSession(t, server, "/listing")
	ctx := context.Background()

	require.NoError(t, s.OpenListing(ctx))
	require.NoError(t, s.SelectLatestTab(ctx))
	assert.Equal(t, 1, latestClicks(t, s))
	assert.True(t, latestTabActive(t, s))

	// already active: no second click
	require.NoError(t, s.SelectLatestTab(ctx))
	assert.Equal(t, 1, latestClicks(t, s))
}

func TestRodSelectLatestTabAlreadyActive(t *testing.T) {
	server := newBlogPageServer(t)
	s := newRodTestSession(t, server, "/listing-active")
	ctx := context.Background()

	require.NoError(t, s.OpenListing(ctx))
	require.NoError(t, s.SelectLatestTab(ctx))
	assert.Equal(t, 0, latestClicks(t, s))
}

func TestRodSelectLatestTabNotFound(t *testing.T) {
	server := newBlogPageServer(t)
	s := newRodTestSession(t, server, "/listing-no-latest")
	ctx := context.Background()

	require.NoError(t, s.OpenListing(ctx))
	err := s.SelectLatestTab(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTabNotFound))
}

func TestRodOpenCard(t *testing.T) {
	server := newBlogPageServer(t)
	s := newRodTestSession(t, server, "/listing")
	ctx := context.Background()

	require.NoError(t, s.OpenListing(ctx))
	require.NoError(t, s.SelectLatestTab(ctx))
	require.NoError(t, s.WaitForCards(ctx))

	count, err := s.CardCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	open, err := s.browser.Pages()
	require.NoError(t, err)

	t.Run("new tab", func(t *testing.T) {
		article, err := s.OpenCard(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, article)

		assert.Equal(t, "Tab article", article.Title)
		assert.Equal(t, server.URL+"/consumer/cn/blog/topic/1", article.URL)
		assert.Equal(t, ArticleID(article.URL), article.ID)
		assert.Equal(t, "2024-01-15 00:00:00", article.PublishedAt)
		assert.Equal(t, "Opens in a new tab", article.Summary)
		assert.Equal(t, []ContentBlock{{Type: BlockText, Value: "Body of one"}}, article.Content)
		assert.True(t, article.IsFull())

		// the article tab is closed again
		pages, err := s.browser.Pages()
		require.NoError(t, err)
		assert.Len(t, pages, len(open))
	})

	t.Run("same page", func(t *testing.T) {
		article, err := s.OpenCard(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, article)

		assert.Equal(t, "Same page article", article.Title)
		assert.Equal(t, server.URL+"/consumer/cn/blog/topic/2", article.URL)
		assert.Equal(t, "2024-01-14 08:30:00", article.PublishedAt)
		assert.Equal(t, []ContentBlock{{Type: BlockText, Value: "Body of two"}}, article.Content)

		// navigated back to the listing
		info, err := s.page.Info()
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/listing", info.URL)
	})

	t.Run("past the end", func(t *testing.T) {
		article, err := s.OpenCard(ctx, 2)
		assert.NoError(t, err)
		assert.Nil(t, article)
	})
}

func TestRodWaitForURLTimesOut(t *testing.T) {
	server := newBlogPageServer(t)
	s := newRodTestSession(t, server, "/listing")

	require.NoError(t, s.OpenListing(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := waitForURL(ctx, s.page, "/blog/topic/")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	u, err := waitForURL(context.Background(), s.page, "/listing")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/listing", u)
}

func TestRodExtractDetailWaitsForContentRegion(t *testing.T) {
	server := newBlogPageServer(t)
	s := newRodTestSession(t, server, "/listing")

	blocks, err := s.ExtractDetail(context.Background(), server.URL+"/consumer/cn/blog/topic/late")
	require.NoError(t, err)
	assert.Equal(t, []ContentBlock{
		{Type: BlockText, Value: "Rendered late"},
		{Type: BlockText, Value: "Direct body"},
	}, blocks)
}
