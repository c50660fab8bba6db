package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"sjsage522/blogworker/helpers"
	"sjsage522/blogworker/pkg/errors"
)

// topicPath is the detail page path of a blog id
const topicPath = "/consumer/cn/blog/topic/"

type blogListRequest struct {
	PageSize  int `json:"pageSize"`
	PageIndex int `json:"pageIndex"`
	Type      int `json:"type"`
}

type blogListResponse struct {
	ResultList []blogListItem `json:"resultList"`
}

type blogListItem struct {
	BlogID      looseString `json:"blogId"`
	Title       string      `json:"title"`
	Summary     string      `json:"summary"`
	PublishTime looseString `json:"publishTime"`
}

// looseString accepts both JSON strings and numbers
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*s = looseString(n.String())
	}
	return nil
}

// FetchBasic loads the listing through the blog-list JSON endpoint without opening any article
func (c *BlogCrawler) FetchBasic(ctx context.Context) ([]Article, error) {
	if c.fetchBlocked() {
		return nil, errors.NewRateLimit(c.cfg.Provider, c.BlockTime)
	}

	pageSize := max(c.cfg.ListAPIPageSize, c.cfg.MaxArticles)
	body, err := helpers.PostJSON(ctx, c.cfg.ListAPIURL, map[string]string{
		"Referer":        c.cfg.ListURL,
		"Origin":         c.cfg.BaseURL,
		"Sec-Fetch-Site": "same-site",
		"Sec-Fetch-Mode": "cors",
	}, blogListRequest{PageSize: pageSize, PageIndex: 1, Type: 0})
	if err != nil {
		if strings.Contains(err.Error(), helpers.ErrRateLimited) {
			c.startCooldown(c.rateLimitKey())
			return nil, errors.NewRateLimit(c.cfg.Provider, c.BlockTime)
		}
		return nil, errors.NewNetwork(c.cfg.Provider, "fetch blog list", err)
	}

	var resp blogListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewParsing(c.cfg.Provider, "decode blog list", err)
	}

	now := c.now()
	seen := make(map[string]bool, len(resp.ResultList))
	articles := make([]Article, 0, len(resp.ResultList))
	for _, item := range resp.ResultList {
		blogID := strings.TrimSpace(string(item.BlogID))
		if blogID == "" {
			continue
		}
		articleURL := c.cfg.BaseURL + topicPath + blogID
		article := basicArticle(c.cfg,
			strings.TrimSpace(item.Title),
			articleURL,
			helpers.CollapseSpace(item.Summary),
			FormatCompactTimestamp(string(item.PublishTime), now))
		if seen[article.ID] {
			continue
		}
		seen[article.ID] = true
		articles = append(articles, article)
	}

	c.log.Info().Int("count", len(articles)).Msg("Blog list loaded")
	return articles, nil
}
