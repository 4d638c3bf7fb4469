package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
)

type rodBrowser struct {
	browser *rod.Browser
	page    *rod.Page
	cancel  context.CancelFunc
}

// NewRod launches a browser through rod and opens a stealth page, which
// patches the usual headless fingerprints anti-bot checks look for.
func NewRod(ctx context.Context, opts Options) (Browser, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	l := launcher.New().
		Headless(opts.Headless).
		Leakless(opts.Leakless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	if opts.NoSandbox {
		l = l.NoSandbox(true)
	}
	if opts.DisableDevShmUsage {
		l = l.Set("disable-dev-shm-usage")
	}
	if opts.DisableBlinkFeatures != "" {
		l = l.Set("disable-blink-features", opts.DisableBlinkFeatures)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	lifeCtx := ctx
	cancel := context.CancelFunc(func() {})
	if opts.Lifetime > 0 {
		lifeCtx, cancel = context.WithTimeout(ctx, opts.Lifetime)
	}

	b := rod.New().ControlURL(controlURL).Context(lifeCtx)
	if opts.SlowMo > 0 {
		b = b.SlowMotion(opts.SlowMo)
	}
	if err := b.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		cancel()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
		_ = b.Close()
		cancel()
		return nil, fmt.Errorf("set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = b.Close()
		cancel()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return &rodBrowser{browser: b, page: page, cancel: cancel}, nil
}

func (r *rodBrowser) Close() error {
	defer r.cancel()
	return r.browser.Close()
}

func (r *rodBrowser) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return r.page.Context(ctx).SetCookies(params)
}

func (r *rodBrowser) Cookies(ctx context.Context) ([]session.Cookie, error) {
	raw, err := r.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	cookies := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return cookies, nil
}

func (r *rodBrowser) Navigate(ctx context.Context, url string) error {
	page := r.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (r *rodBrowser) Location(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (r *rodBrowser) Evaluate(ctx context.Context, js string, out any) error {
	res, err := r.page.Context(ctx).Eval(js)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(res.Value)
	if err != nil {
		return fmt.Errorf("marshal eval result: %w", err)
	}
	return json.Unmarshal(data, out)
}

func (r *rodBrowser) ScrollBy(ctx context.Context, pixels int) error {
	js := "() => window.scrollBy(0, document.body.scrollHeight)"
	if pixels > 0 {
		js = fmt.Sprintf("() => window.scrollBy(0, %d)", pixels)
	}
	_, err := r.page.Context(ctx).Eval(js)
	return err
}
