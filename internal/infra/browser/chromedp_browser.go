package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
)

type chromedpBrowser struct {
	pageCtx     context.Context
	pageCancel  context.CancelFunc
	allocCancel context.CancelFunc
	lifeCancel  context.CancelFunc
	slowMo      time.Duration
}

// NewChromedp launches a Chrome instance via chromedp and opens one page
// context bound to ctx. Closing the returned Browser tears the process down.
func NewChromedp(ctx context.Context, opts Options) (Browser, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", opts.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", opts.DisableDevShmUsage),
		chromedp.Flag("incognito", opts.Incognito),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)
	if opts.DisableBlinkFeatures != "" {
		allocOpts = append(allocOpts, chromedp.Flag("disable-blink-features", opts.DisableBlinkFeatures))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	lifeCtx := ctx
	lifeCancel := context.CancelFunc(func() {})
	if opts.Lifetime > 0 {
		lifeCtx, lifeCancel = context.WithTimeout(ctx, opts.Lifetime)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(lifeCtx, allocOpts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	b := &chromedpBrowser{
		pageCtx:     pageCtx,
		pageCancel:  pageCancel,
		allocCancel: allocCancel,
		lifeCancel:  lifeCancel,
		slowMo:      opts.SlowMo,
	}

	// Starts the browser process eagerly so launch failures surface here, not
	// on the first navigation.
	if err := chromedp.Run(pageCtx, network.Enable()); err != nil {
		b.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return b, nil
}

func (b *chromedpBrowser) Close() error {
	b.pageCancel()
	b.allocCancel()
	b.lifeCancel()
	return nil
}

// run executes actions on the page context, honoring the caller's ctx and the
// optional slow-motion delay.
func (b *chromedpBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(b.pageCtx, actions...); err != nil {
		return err
	}
	if b.slowMo > 0 {
		select {
		case <-time.After(b.slowMo):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *chromedpBrowser) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	actions := make([]chromedp.Action, 0, len(cookies))
	for _, c := range cookies {
		p := network.SetCookie(c.Name, c.Value).
			WithDomain(c.Domain).
			WithPath(c.Path).
			WithHTTPOnly(c.HTTPOnly).
			WithSecure(c.Secure)
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p = p.WithExpires(&exp)
		}
		if ss := sameSiteParam(c.SameSite); ss != "" {
			p = p.WithSameSite(ss)
		}
		actions = append(actions, p)
	}
	return b.run(ctx, actions...)
}

func (b *chromedpBrowser) Cookies(ctx context.Context) ([]session.Cookie, error) {
	var cookies []session.Cookie
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]session.Cookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, session.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: c.SameSite.String(),
			})
		}
		return nil
	}))
	return cookies, err
}

func (b *chromedpBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *chromedpBrowser) Location(ctx context.Context) (string, error) {
	var url string
	err := b.run(ctx, chromedp.Location(&url))
	return url, err
}

func (b *chromedpBrowser) Evaluate(ctx context.Context, js string, out any) error {
	// js is a function expression; chromedp evaluates plain expressions, so
	// invoke it in place.
	expr := fmt.Sprintf("(%s)()", js)
	return b.run(ctx, chromedp.Evaluate(expr, out))
}

func (b *chromedpBrowser) ScrollBy(ctx context.Context, pixels int) error {
	js := "window.scrollBy(0, document.body.scrollHeight); true"
	if pixels > 0 {
		js = fmt.Sprintf("window.scrollBy(0, %d); true", pixels)
	}
	return b.run(ctx, chromedp.Evaluate(js, nil))
}

func sameSiteParam(s string) network.CookieSameSite {
	switch s {
	case "Lax", "lax":
		return network.CookieSameSiteLax
	case "Strict", "strict":
		return network.CookieSameSiteStrict
	case "None", "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}
