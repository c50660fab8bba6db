package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sjsage522/blogworker/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestArticleIDIsStable(t *testing.T) {
	u := "https://developer.huawei.com/consumer/cn/blog/topic/03123456789"
	assert.Equal(t, ArticleID(u), ArticleID(u))
	assert.Equal(t, ArticleID(u), ArticleID(" "+u+"\n"))
	assert.NotEqual(t, ArticleID(u), ArticleID(u+"0"))
	assert.Len(t, ArticleID(u), 32)
}

func TestBuildArticle(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 5, 0, time.Local)
	cfg := testCrawlerConfig()
	u := "https://developer.huawei.com/consumer/cn/blog/topic/1"

	t.Run("card summary wins", func(t *testing.T) {
		a := buildArticle(cfg, cardMeta{Title: "T", Summary: "card summary", TimeLabel: "3小时前"}, u,
			[]ContentBlock{{Type: BlockText, Value: "first paragraph"}}, now)

		assert.Equal(t, ArticleID(u), a.ID)
		assert.Equal(t, "card summary", a.Summary)
		assert.Equal(t, "2024-03-10 12:04:05", a.PublishedAt)
		assert.Equal(t, cfg.Provider, a.Source)
		assert.Equal(t, cfg.Category, a.Category)
		assert.True(t, a.IsFull())
	})

	t.Run("summary derived from the first text block", func(t *testing.T) {
		long := strings.Repeat("鸿", 150)
		a := buildArticle(cfg, cardMeta{Title: "T"}, u, []ContentBlock{{Type: BlockText, Value: long}}, now)
		assert.Equal(t, strings.Repeat("鸿", summaryRunes), a.Summary)
	})

	t.Run("no summary from an image or placeholder", func(t *testing.T) {
		a := buildArticle(cfg, cardMeta{Title: "T"}, u, []ContentBlock{{Type: BlockImage, Value: "x.png"}}, now)
		assert.Empty(t, a.Summary)

		a = buildArticle(cfg, cardMeta{Title: "T"}, u, nil, now)
		assert.Empty(t, a.Summary)
		assert.Equal(t, placeholderContent(), a.Content)
	})
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("p", "m", nil, errors.ErrorTypeExtraction))

	err := classify("p", "wait", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), errors.ErrorTypeExtraction)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNavigationTimeout))

	err = classify("p", "click", cdp.ErrObjNotFound, errors.ErrorTypeExtraction)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStaleElement))
	assert.True(t, errors.IsRetryable(err))

	err = classify("p", "text", fmt.Errorf("read: %w", &rod.ObjectNotFoundError{RuntimeRemoteObject: &proto.RuntimeRemoteObject{}}), errors.ErrorTypeExtraction)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStaleElement))

	err = classify("p", "read", stderrors.New("odd"), errors.ErrorTypeExtraction)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExtraction))

	typed := errors.NewTabNotFound("p", "最新")
	assert.Same(t, typed, classify("p", "tab", typed, errors.ErrorTypeExtraction))
}

func TestHasClass(t *testing.T) {
	assert.True(t, hasClass("sort active", "active"))
	assert.False(t, hasClass("sort inactive", "active"))
	assert.False(t, hasClass("", "active"))
}
