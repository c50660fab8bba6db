package crawler

import (
	"context"
	stderrors "errors"

	"sjsage522/blogworker/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

// Session is a single automated browser positioned on the blog listing.
// Implementations are not safe for concurrent use.
type Session interface {
	// OpenListing navigates to the listing and waits for the tab region
	OpenListing(ctx context.Context) error

	// SelectLatestTab activates the "latest" tab unless it already is active
	SelectLatestTab(ctx context.Context) error

	// WaitForCards blocks until at least one card is rendered
	WaitForCards(ctx context.Context) error

	// CardCount re-queries the card container and returns the number of cards
	CardCount(ctx context.Context) (int, error)

	// OpenCard clicks the card at index, extracts the article it leads to and
	// returns to the listing. A nil article with a nil error means the list is exhausted.
	OpenCard(ctx context.Context, index int) (*Article, error)

	// ExtractDetail opens an article URL directly and extracts its content
	ExtractDetail(ctx context.Context, articleURL string) ([]ContentBlock, error)

	// Release closes the browser. It is idempotent and never fails.
	Release()
}

// SessionLauncher acquires a new browser session
type SessionLauncher func(ctx context.Context) (Session, error)

// classify maps raw browser errors onto the crawler error taxonomy
func classify(provider, message string, err error, fallback errors.ErrorType) error {
	if err == nil {
		return nil
	}

	var ce *errors.CrawlerError
	if stderrors.As(err, &ce) {
		return err
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewNavigationTimeout(provider, message, err)
	case isStale(err):
		return errors.NewStaleElement(provider, message, err)
	default:
		return errors.New(fallback, provider, message, err)
	}
}

func isStale(err error) bool {
	var objErr *rod.ObjectNotFoundError
	if stderrors.As(err, &objErr) {
		return true
	}
	for _, target := range []error{cdp.ErrCtxNotFound, cdp.ErrCtxDestroyed, cdp.ErrObjNotFound, cdp.ErrNodeNotFoundAtPos} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}
