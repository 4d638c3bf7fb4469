// Package crawler implements the crawl-and-extract engine: navigation and
// login classification, DOM-heuristic listing extraction, order-preserving
// deduplication, and the orchestrating state machine.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/phuslu/log"

	"github.com/kvasirlabs/mktcrawl/internal/infra/browser"
)

const (
	searchURLBase = "https://www.facebook.com/marketplace/search/"

	// ItemPathMarker identifies item-page anchors in the results DOM. The URL
	// path is far more stable than the obfuscated, rotating CSS class names.
	ItemPathMarker = "/marketplace/item/"

	// loginPathMarker classifies a post-navigation URL as a login redirect.
	loginPathMarker = "login"

	// CookieDomain is the default domain for session cookies that carry none.
	CookieDomain = ".facebook.com"
)

// NavigationOutcome classifies the page reached after navigating to a search
// URL, or the page the browser currently sits on.
type NavigationOutcome int

const (
	// Ready means the search results page loaded under the active session.
	Ready NavigationOutcome = iota
	// LoginRequired means the service redirected to its login flow: the
	// supplied session is missing, expired, or revoked.
	LoginRequired
)

// Navigator opens the search page for a query and issues scroll commands to
// trigger lazy loading of further results.
type Navigator struct {
	b browser.Browser
}

func NewNavigator(b browser.Browser) *Navigator {
	return &Navigator{b: b}
}

// SearchURL builds the marketplace search URL for a query.
func SearchURL(query string) string {
	v := url.Values{"query": {query}}
	return searchURLBase + "?" + v.Encode()
}

// Open navigates to the search page for query and classifies the landing URL.
func (n *Navigator) Open(ctx context.Context, query string) (NavigationOutcome, error) {
	target := SearchURL(query)
	log.Debug().Str("url", target).Msg("opening search page")
	if err := n.b.Navigate(ctx, target); err != nil {
		return Ready, fmt.Errorf("navigate to search page: %w", err)
	}
	return n.CheckSession(ctx)
}

// CheckSession classifies the browser's current URL. It is cheap enough to
// run every round, so mid-crawl session revocation is caught promptly instead
// of presenting as an endless run of idle rounds.
func (n *Navigator) CheckSession(ctx context.Context) (NavigationOutcome, error) {
	current, err := n.b.Location(ctx)
	if err != nil {
		return Ready, fmt.Errorf("read current url: %w", err)
	}
	return ClassifyURL(current), nil
}

// Scroll advances the viewport; distance <= 0 scrolls one full document
// height. New content appearing is not guaranteed, callers must re-check
// extraction results.
func (n *Navigator) Scroll(ctx context.Context, distance int) error {
	if err := n.b.ScrollBy(ctx, distance); err != nil {
		return fmt.Errorf("scroll viewport: %w", err)
	}
	return nil
}

// ClassifyURL decides whether a URL is a login redirect. Matching the URL
// path rather than page content keeps the check robust against markup churn.
func ClassifyURL(raw string) NavigationOutcome {
	u, err := url.Parse(raw)
	if err != nil {
		// Unparsable URL: fall back to a substring check on the whole string.
		if strings.Contains(strings.ToLower(raw), loginPathMarker) {
			return LoginRequired
		}
		return Ready
	}
	if strings.Contains(strings.ToLower(u.Path), loginPathMarker) {
		return LoginRequired
	}
	return Ready
}
