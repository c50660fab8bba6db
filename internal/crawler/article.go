package crawler

import (
	"time"

	"sjsage522/blogworker/helpers"
)

const summaryRunes = 120

// buildArticle merges card metadata with the extracted body into a full article
func buildArticle(cfg CrawlerConfig, meta cardMeta, articleURL string, blocks []ContentBlock, now time.Time) Article {
	summary := meta.Summary
	if summary == "" {
		summary = deriveSummary(blocks)
	}

	return Article{
		ID:          ArticleID(articleURL),
		Title:       meta.Title,
		URL:         articleURL,
		PublishedAt: NormalizeTime(meta.TimeLabel, now),
		Source:      cfg.Provider,
		Summary:     summary,
		Category:    cfg.Category,
		Content:     orPlaceholder(blocks),
		Fidelity:    FidelityFull,
	}
}

// basicArticle builds a listing-only record whose content is its summary
func basicArticle(cfg CrawlerConfig, title, articleURL, summary, publishedAt string) Article {
	content := placeholderContent()
	if summary != "" {
		content = []ContentBlock{{Type: BlockText, Value: summary}}
	}

	return Article{
		ID:          ArticleID(articleURL),
		Title:       title,
		URL:         articleURL,
		PublishedAt: publishedAt,
		Source:      cfg.Provider,
		Summary:     summary,
		Category:    cfg.Category,
		Content:     content,
		Fidelity:    FidelityBasic,
	}
}

// deriveSummary uses the leading text block when the card had no summary
func deriveSummary(blocks []ContentBlock) string {
	if len(blocks) == 0 || blocks[0].Type != BlockText || blocks[0].Value == EmptyContentMarker {
		return ""
	}
	return helpers.TruncateRunes(blocks[0].Value, summaryRunes)
}
