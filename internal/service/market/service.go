// Package market wires the crawl engine together: it owns the browsing
// context for the duration of one crawl (acquired up front, released on every
// exit path) and runs independent crawls for multiple queries concurrently.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/kvasirlabs/mktcrawl/internal/config"
	"github.com/kvasirlabs/mktcrawl/internal/crawler"
	"github.com/kvasirlabs/mktcrawl/internal/infra/browser"
	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
	"github.com/kvasirlabs/mktcrawl/param"
)

// Driver selects the browser implementation.
type Driver string

const (
	DriverChromedp Driver = "chromedp"
	DriverRod      Driver = "rod"
)

// cookieOrigin is where refreshed session cookies belong.
const cookieOrigin = "https://www.facebook.com"

// Service runs crawls. Safe for concurrent use; every crawl gets its own
// browsing context and accumulator, nothing mutable is shared between them.
type Service struct {
	cfg           *config.Config
	driver        Driver
	saveCookiesTo string

	// injectable in tests
	newBrowser func(ctx context.Context, opts browser.Options) (browser.Browser, error)

	cookieSaveMu sync.Mutex
}

// InitService validates the driver choice and prepares a Service. An empty
// saveCookiesTo disables cookie save-back.
func InitService(cfg *config.Config, driver Driver, saveCookiesTo string) (*Service, error) {
	s := &Service{cfg: cfg, driver: driver, saveCookiesTo: saveCookiesTo}
	switch driver {
	case DriverChromedp:
		s.newBrowser = browser.NewChromedp
	case DriverRod:
		s.newBrowser = browser.NewRod
	default:
		return nil, fmt.Errorf("unknown browser driver %q", driver)
	}
	return s, nil
}

func (s *Service) browserOptions(req *param.Crawl) browser.Options {
	opts := browser.Options{
		Headless: req.Headless,
		SlowMo:   req.SlowMo,
	}
	switch s.driver {
	case DriverRod:
		opts.UserAgent = s.cfg.Rod.UserAgent
		opts.UserDataDir = s.cfg.Rod.UserDataDir
		opts.NoSandbox = s.cfg.Rod.NoSandbox
		opts.DisableDevShmUsage = s.cfg.Rod.DisableDevShmUsage
		opts.Incognito = s.cfg.Rod.Incognito
		opts.DisableBlinkFeatures = s.cfg.Rod.DisableBlinkFeatures
		opts.Leakless = s.cfg.Rod.Leakless
		opts.Bin = s.cfg.Rod.Bin
		opts.Lifetime = time.Duration(s.cfg.Rod.LifeTime) * time.Second
	default:
		opts.UserAgent = s.cfg.Chromedp.UserAgent
		opts.UserDataDir = s.cfg.Chromedp.UserDataDir
		opts.NoSandbox = s.cfg.Chromedp.NoSandbox
		opts.DisableDevShmUsage = s.cfg.Chromedp.DisableDevShmUsage
		opts.Incognito = s.cfg.Chromedp.Incognito
		opts.DisableBlinkFeatures = s.cfg.Chromedp.DisableBlinkFeatures
		opts.Lifetime = time.Duration(s.cfg.Chromedp.LifeTime) * time.Second
	}
	return opts
}

// Crawl runs one crawl end to end: acquire a browsing context, seed the
// session cookies, run the orchestrator, apply the optional location filter,
// and save refreshed cookies back on success. The context is always released.
func (s *Service) Crawl(ctx context.Context, req *param.Crawl, cookies []session.Cookie) crawler.Result {
	b, err := s.newBrowser(ctx, s.browserOptions(req))
	if err != nil {
		return crawler.Result{Status: crawler.StatusAborted, Err: fmt.Errorf("acquire browsing context: %w", err)}
	}
	defer b.Close()

	if err := session.Seed(ctx, b, cookies, crawler.CookieDomain); err != nil {
		return crawler.Result{Status: crawler.StatusAborted, Err: err}
	}

	nav := crawler.NewNavigator(b)
	ext := crawler.NewExtractor(b, crawler.DefaultLocators())
	res := crawler.NewOrchestrator(nav, ext).Crawl(ctx, req)

	if len(req.LocationContains) > 0 {
		before := len(res.Listings)
		res.Listings = crawler.FilterByLocation(res.Listings, req.LocationContains)
		log.Info().Int("before", before).Int("after", len(res.Listings)).Msg("location filter applied")
	}

	if s.saveCookiesTo != "" && res.Status == crawler.StatusDone {
		s.saveCookies(ctx, b)
	}
	return res
}

// saveCookies is best effort: a failed save-back never fails the crawl.
func (s *Service) saveCookies(ctx context.Context, b browser.Browser) {
	current, err := b.Cookies(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("read session cookies for save-back")
		return
	}
	s.cookieSaveMu.Lock()
	defer s.cookieSaveMu.Unlock()
	if err := session.Save(s.saveCookiesTo, current); err != nil {
		log.Warn().Err(err).Str("path", s.saveCookiesTo).Msg("save session cookies")
		return
	}
	log.Info().Str("path", s.saveCookiesTo).Int("cookies", len(current)).Msg("session cookies saved")
}

// CrawlAll runs one crawl per request concurrently, at most maxParallel at a
// time, and returns results in request order. Each crawl owns an independent
// browsing context and accumulator; one crawl failing does not cancel the
// others.
func (s *Service) CrawlAll(ctx context.Context, reqs []*param.Crawl, cookies []session.Cookie, maxParallel int) []crawler.Result {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	results := make([]crawler.Result, len(reqs))
	g := &errgroup.Group{}
	g.SetLimit(maxParallel)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = s.Crawl(ctx, req, cookies)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
