package crawler

import (
	"context"
	"strings"

	"sjsage522/blogworker/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// OpenListing navigates to the listing URL and waits for the tab region
func (s *rodSession) OpenListing(ctx context.Context) error {
	lctx, cancel := context.WithTimeout(ctx, s.cfg.ListingTimeout)
	defer cancel()

	page := s.page.Context(lctx)
	if err := page.Navigate(s.cfg.ListURL); err != nil {
		return classify(s.cfg.Provider, "navigate to listing", err, errors.ErrorTypeNetwork)
	}
	if _, err := page.Element(s.cfg.Selectors.TabRegion); err != nil {
		return classify(s.cfg.Provider, "wait for tab region", err, errors.ErrorTypeNavigationTimeout)
	}

	s.log.Debug().Str("url", s.cfg.ListURL).Msg("Listing opened")
	return nil
}

// SelectLatestTab clicks the tab whose label contains the configured "latest" label
func (s *rodSession) SelectLatestTab(ctx context.Context) error {
	sel := s.cfg.Selectors
	tctx, cancel := context.WithTimeout(ctx, s.cfg.ListingTimeout)
	defer cancel()

	page := s.page.Context(tctx)
	if _, err := page.Element(sel.TabRegion); err != nil {
		return classify(s.cfg.Provider, "wait for tab region", err, errors.ErrorTypeNavigationTimeout)
	}
	tabs, err := page.Elements(sel.TabRegion)
	if err != nil {
		return classify(s.cfg.Provider, "list tabs", err, errors.ErrorTypeNavigationTimeout)
	}

	var latest *rod.Element
	for _, tab := range tabs {
		text, err := tab.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, s.cfg.LatestTabLabel) {
			latest = tab
			break
		}
	}
	if latest == nil {
		return errors.NewTabNotFound(s.cfg.Provider, s.cfg.LatestTabLabel)
	}

	if class, err := latest.Attribute("class"); err == nil && class != nil && hasClass(*class, sel.ActiveTabClass) {
		return nil
	}

	if err := latest.ScrollIntoView(); err != nil {
		return classify(s.cfg.Provider, "scroll to latest tab", err, errors.ErrorTypeNavigationTimeout)
	}
	if err := s.pause(tctx); err != nil {
		return classify(s.cfg.Provider, "pause before tab click", err, errors.ErrorTypeNavigationTimeout)
	}
	if err := latest.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(s.cfg.Provider, "click latest tab", err, errors.ErrorTypeNavigationTimeout)
	}
	s.log.Debug().Str("label", s.cfg.LatestTabLabel).Msg("Latest tab selected")

	if err := s.pause(tctx); err != nil {
		return classify(s.cfg.Provider, "pause after tab click", err, errors.ErrorTypeNavigationTimeout)
	}
	return nil
}

// WaitForCards blocks until the card container holds at least one card
func (s *rodSession) WaitForCards(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CardsTimeout)
	defer cancel()

	sel := s.cfg.Selectors
	if _, err := s.page.Context(cctx).Element(sel.CardContainer + " " + sel.Card); err != nil {
		return classify(s.cfg.Provider, "wait for cards", err, errors.ErrorTypeNavigationTimeout)
	}
	return nil
}

// CardCount re-queries the container and counts its cards
func (s *rodSession) CardCount(ctx context.Context) (int, error) {
	cards, err := s.cards(ctx)
	if err != nil {
		return 0, err
	}
	return len(cards), nil
}

// cards never reuses handles from a previous query since the list re-renders
func (s *rodSession) cards(ctx context.Context) (rod.Elements, error) {
	sel := s.cfg.Selectors
	containers, err := s.page.Context(ctx).Elements(sel.CardContainer)
	if err != nil {
		return nil, classify(s.cfg.Provider, "find card container", err, errors.ErrorTypeNavigationTimeout)
	}
	if len(containers) == 0 {
		return nil, nil
	}
	cards, err := containers[0].Elements(sel.Card)
	if err != nil {
		return nil, classify(s.cfg.Provider, "list cards", err, errors.ErrorTypeStaleElement)
	}
	return cards, nil
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
