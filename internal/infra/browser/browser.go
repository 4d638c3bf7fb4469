// Package browser wraps the headless browser behind the small capability the
// crawl engine needs: navigate, read the current URL, evaluate a script in
// page context, scroll, and seed/read cookies. Two implementations exist,
// chromedp and rod, selected by configuration.
package browser

import (
	"context"
	"time"

	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
)

// Browser is one exclusive browsing context. A crawl owns exactly one Browser
// for its whole lifetime and must Close it on every exit path. Every call
// completes before returning; there are no partial or streaming results.
type Browser interface {
	// SetCookies installs cookies into the context. Must be called before the
	// first Navigate for the session to be authenticated from the start.
	SetCookies(ctx context.Context, cookies []session.Cookie) error

	// Cookies reads the context's current cookie set.
	Cookies(ctx context.Context) ([]session.Cookie, error)

	Navigate(ctx context.Context, url string) error

	// Location returns the current page URL after any redirects.
	Location(ctx context.Context) (string, error)

	// Evaluate runs js, a JavaScript arrow-function expression such as
	// "() => document.title", in page context and decodes the result into out.
	// A nil out discards the result.
	Evaluate(ctx context.Context, js string, out any) error

	// ScrollBy advances the viewport by pixels; pixels <= 0 means one full
	// document height. Best effort: new content appearing is not guaranteed.
	ScrollBy(ctx context.Context, pixels int) error

	Close() error
}

// Options configures a browsing context. Lifetime bounds the whole context so
// a wedged page cannot hang a crawl forever.
type Options struct {
	Headless             bool
	UserAgent            string
	UserDataDir          string
	NoSandbox            bool
	DisableDevShmUsage   bool
	Incognito            bool
	DisableBlinkFeatures string
	SlowMo               time.Duration
	Lifetime             time.Duration
	Leakless             bool // rod only
	Bin                  string // rod only: browser binary override
}

const (
	viewportWidth  = 1366
	viewportHeight = 900
)

// DefaultUserAgent is used when configuration supplies none; a desktop Chrome
// string keeps the marketplace from serving the stripped mobile markup.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
