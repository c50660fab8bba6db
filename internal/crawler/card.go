package crawler

import (
	"context"
	"strings"
	"time"

	"sjsage522/blogworker/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	timeoutSnippetBytes = 5000

	// newTabWait bounds how long a click is watched for a spawned tab
	newTabWait = 3 * time.Second
)

// cardMeta is what a listing card tells about its article before it is opened
type cardMeta struct {
	Title     string
	Href      string
	Summary   string
	TimeLabel string
}

// OpenCard performs a single attempt at opening the card at index.
// Staleness surfaces as a retryable error; the caller owns the retry budget.
func (s *rodSession) OpenCard(ctx context.Context, index int) (*Article, error) {
	if err := s.WaitForCards(ctx); err != nil {
		return nil, err
	}
	cards, err := s.cards(ctx)
	if err != nil {
		return nil, err
	}
	if index >= len(cards) {
		return nil, nil
	}

	meta, title, err := s.cardMetadata(cards[index])
	if err != nil {
		return nil, err
	}

	if err := title.ScrollIntoView(); err != nil {
		return nil, classify(s.cfg.Provider, "scroll to card title", err, errors.ErrorTypeStaleElement)
	}
	if err := s.pause(ctx); err != nil {
		return nil, err
	}

	before := s.targetIDs()
	if err := title.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.log.Debug().Err(err).Int("index", index).Msg("Click failed, falling back to pointer click")
		if err := s.pointerClick(title); err != nil {
			return nil, classify(s.cfg.Provider, "click card title", err, errors.ErrorTypeStaleElement)
		}
	}
	if err := s.pause(ctx); err != nil {
		return nil, err
	}

	detail, spawned := s.followClick(ctx, before)

	article, err := s.readDetail(ctx, detail, meta)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNavigationTimeout) {
			s.log.Warn().Int("index", index).Str("title", meta.Title).Msg("Timed out loading article detail")
			s.log.Debug().Str("snippet", snippet(detail, timeoutSnippetBytes)).Msg("Detail page source on timeout")
		}
		if backErr := s.backToListing(ctx, detail, spawned); backErr != nil {
			s.log.Warn().Err(backErr).Msg("Failed to return to listing")
		}
		return nil, err
	}

	if err := s.backToListing(ctx, detail, spawned); err != nil {
		s.log.Warn().Err(err).Msg("Failed to return to listing after article")
	}
	return article, nil
}

// followClick returns the page a card click led to: a newly opened tab, or the listing tab itself
func (s *rodSession) followClick(ctx context.Context, before map[proto.TargetTargetID]bool) (*rod.Page, bool) {
	wctx, cancel := context.WithTimeout(ctx, newTabWait)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if tab := s.newTab(before); tab != nil {
			if _, err := tab.Activate(); err != nil {
				s.log.Warn().Err(err).Msg("Failed to activate article tab")
			}
			return tab, true
		}
		if info, err := s.page.Context(wctx).Info(); err == nil && strings.Contains(info.URL, s.cfg.DetailURLPattern) {
			return s.page, false
		}
		select {
		case <-wctx.Done():
			return s.page, false
		case <-ticker.C:
		}
	}
}

func (s *rodSession) cardMetadata(card *rod.Element) (cardMeta, *rod.Element, error) {
	sel := s.cfg.Selectors

	titles, err := card.Elements(sel.CardTitle)
	if err != nil {
		return cardMeta{}, nil, classify(s.cfg.Provider, "find card title", err, errors.ErrorTypeStaleElement)
	}
	if len(titles) == 0 {
		return cardMeta{}, nil, errors.NewExtraction(s.cfg.Provider, "card has no title link", nil)
	}
	title := titles[0]

	text, err := title.Text()
	if err != nil {
		return cardMeta{}, nil, classify(s.cfg.Provider, "read card title", err, errors.ErrorTypeStaleElement)
	}
	href := "#"
	if h, err := title.Attribute("href"); err == nil && h != nil && *h != "" {
		href = *h
	}

	summary, err := firstText(card, sel.CardDescription)
	if err != nil {
		return cardMeta{}, nil, classify(s.cfg.Provider, "read card summary", err, errors.ErrorTypeStaleElement)
	}
	if summary == "" {
		if summary, err = firstText(card, sel.CardContent); err != nil {
			return cardMeta{}, nil, classify(s.cfg.Provider, "read card content", err, errors.ErrorTypeStaleElement)
		}
	}
	label, err := firstText(card, sel.CardTime)
	if err != nil {
		return cardMeta{}, nil, classify(s.cfg.Provider, "read card time", err, errors.ErrorTypeStaleElement)
	}

	return cardMeta{
		Title:     strings.TrimSpace(text),
		Href:      href,
		Summary:   summary,
		TimeLabel: label,
	}, title, nil
}

// firstText reads the trimmed text of the first match below el, or "" when nothing matches
func firstText(el *rod.Element, selector string) (string, error) {
	found, err := el.Elements(selector)
	if err != nil || len(found) == 0 {
		return "", err
	}
	text, err := found[0].Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// pointerClick moves the mouse over el and clicks at the pointer position
func (s *rodSession) pointerClick(el *rod.Element) error {
	if err := el.Hover(); err != nil {
		return err
	}
	return s.page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// readDetail waits for the detail URL and content region, then extracts the article
func (s *rodSession) readDetail(ctx context.Context, page *rod.Page, meta cardMeta) (*Article, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DetailTimeout)
	defer cancel()

	articleURL, err := waitForURL(dctx, page, s.cfg.DetailURLPattern)
	if err != nil {
		return nil, classify(s.cfg.Provider, "wait for detail url", err, errors.ErrorTypeNavigationTimeout)
	}
	root, err := page.Context(dctx).Element(s.cfg.Selectors.DetailContent)
	if err != nil {
		return nil, classify(s.cfg.Provider, "wait for detail content", err, errors.ErrorTypeNavigationTimeout)
	}
	fragment, err := root.HTML()
	if err != nil {
		return nil, classify(s.cfg.Provider, "read detail content", err, errors.ErrorTypeExtraction)
	}

	blocks, err := s.extractor.ExtractHTML(fragment)
	if err != nil {
		return nil, errors.NewExtraction(s.cfg.Provider, "parse detail content", err)
	}

	s.log.Debug().Str("url", articleURL).Int("blocks", len(blocks)).Msg("Article extracted")
	article := buildArticle(s.cfg, meta, articleURL, blocks, s.now())
	return &article, nil
}

// backToListing closes a spawned tab or navigates back, then waits for the cards again
func (s *rodSession) backToListing(ctx context.Context, detail *rod.Page, spawned bool) error {
	if spawned {
		if err := detail.Close(); err != nil {
			s.log.Debug().Err(err).Msg("Failed to close article tab")
		}
		if _, err := s.page.Activate(); err != nil {
			return classify(s.cfg.Provider, "activate listing tab", err, errors.ErrorTypeNavigationTimeout)
		}
	} else if err := s.page.Context(ctx).NavigateBack(); err != nil {
		return classify(s.cfg.Provider, "navigate back to listing", err, errors.ErrorTypeNavigationTimeout)
	}
	return s.WaitForCards(ctx)
}

// waitForURL polls the page URL until it contains pattern
func waitForURL(ctx context.Context, page *rod.Page, pattern string) (string, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if info, err := page.Context(ctx).Info(); err == nil && strings.Contains(info.URL, pattern) {
			return info.URL, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
