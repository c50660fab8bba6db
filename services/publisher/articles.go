package publisher

import (
	"context"
	"encoding/json"

	"sjsage522/blogworker/internal/crawler"
	"sjsage522/blogworker/pkg/errors"
)

// ArticlesKey is the stream field carrying a base64 JSON article batch
const ArticlesKey = "b64_articles"

// PublishArticles encodes a batch of articles and publishes it as one stream entry
func PublishArticles(ctx context.Context, p Publisher, articles []crawler.Article) error {
	if len(articles) == 0 {
		return nil
	}
	payload, err := json.Marshal(articles)
	if err != nil {
		return errors.NewPublisher("", "marshal articles", err)
	}
	return p.Publish(ctx, ArticlesKey, payload)
}
