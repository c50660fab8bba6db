package crawler

import (
	"context"
	"strings"
	"time"

	"sjsage522/blogworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// contentRegionWait bounds the wait for any known content region on a directly opened article
const contentRegionWait = 8 * time.Second

// ExtractDetail opens articleURL in the session tab and extracts its content
func (s *rodSession) ExtractDetail(ctx context.Context, articleURL string) ([]ContentBlock, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DetailTimeout)
	defer cancel()

	page := s.page.Context(dctx)
	if err := page.Navigate(articleURL); err != nil {
		return nil, classify(s.cfg.Provider, "navigate to article", err, errors.ErrorTypeNetwork)
	}
	if err := page.WaitLoad(); err != nil {
		s.log.Debug().Err(err).Str("url", articleURL).Msg("WaitLoad failed, continuing anyway")
	}

	chain := s.cfg.Selectors.ContentChain
	if len(chain) > 0 {
		wctx, wcancel := context.WithTimeout(dctx, contentRegionWait)
		race := page.Context(wctx).Race()
		for _, selector := range chain {
			race = race.Element(selector)
		}
		if _, err := race.Do(); err != nil {
			s.log.Debug().Str("url", articleURL).Msg("No known content region, falling back to page body")
		}
		wcancel()
	}

	html, err := page.HTML()
	if err != nil {
		return nil, classify(s.cfg.Provider, "read article page", err, errors.ErrorTypeExtraction)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing(s.cfg.Provider, "parse article page", err)
	}
	return s.extractor.ExtractDocument(doc, chain), nil
}
