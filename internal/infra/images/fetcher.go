// Package images downloads listing thumbnails after a crawl. It reuses the
// session cookies over plain HTTP, rate-limited so the image CDN sees nothing
// resembling a burst.
package images

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/phuslu/log"

	"github.com/kvasirlabs/mktcrawl/internal/config"
	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
)

// Fetcher saves listing thumbnails into one directory, one file per item id.
type Fetcher struct {
	c   *colly.Collector
	dir string
}

// InitFetcher builds the collector. cookieOrigin is the https origin the
// session cookies belong to, e.g. "https://www.facebook.com".
func InitFetcher(cfg *config.Config, dir, cookieOrigin string, cookies []session.Cookie) (*Fetcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	opts := []colly.CollectorOption{
		colly.Async(cfg.Colly.Async),
	}
	if cfg.Colly.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.Colly.UserAgent))
	}
	c := colly.NewCollector(opts...)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Colly.Parallelism,
		Delay:       time.Duration(cfg.Colly.Delay) * time.Second,
		RandomDelay: time.Duration(cfg.Colly.RandomDelay) * time.Second,
	}); err != nil {
		return nil, fmt.Errorf("configure limit rule: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c.SetCookieJar(jar)
	if len(cookies) > 0 && cookieOrigin != "" {
		if err := c.SetCookies(cookieOrigin, toHTTPCookies(cookies)); err != nil {
			return nil, fmt.Errorf("seed cookie jar: %w", err)
		}
	}

	f := &Fetcher{c: c, dir: dir}

	c.OnResponse(func(r *colly.Response) {
		itemID := r.Ctx.Get("item_id")
		if itemID == "" {
			return
		}
		name := itemID + extensionFor(r)
		path := filepath.Join(f.dir, name)
		if err := os.WriteFile(path, r.Body, 0o644); err != nil {
			log.Warn().Err(err).Str("item_id", itemID).Msg("write thumbnail")
			return
		}
		log.Debug().Str("item_id", itemID).Str("file", name).Msg("thumbnail saved")
	})
	c.OnError(func(r *colly.Response, err error) {
		log.Warn().Err(err).Str("url", r.Request.URL.String()).Msg("thumbnail fetch failed")
	})

	return f, nil
}

// FetchAll downloads the thumbnail of every listing that has one. Individual
// failures only cost that one image.
func (f *Fetcher) FetchAll(listings []model.Listing) {
	requested := 0
	for _, l := range listings {
		if l.ImageURL == "" {
			continue
		}
		rctx := colly.NewContext()
		rctx.Put("item_id", l.ItemID)
		if err := f.c.Request(http.MethodGet, l.ImageURL, nil, rctx, nil); err != nil {
			log.Warn().Err(err).Str("item_id", l.ItemID).Msg("request thumbnail")
			continue
		}
		requested++
	}
	f.c.Wait()
	log.Info().Int("requested", requested).Str("dir", f.dir).Msg("thumbnail fetch finished")
}

func toHTTPCookies(cookies []session.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

// extensionFor picks a file extension from the response content type, falling
// back to the URL path, then to .jpg.
func extensionFor(r *colly.Response) string {
	switch ct := r.Headers.Get("Content-Type"); {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "webp"):
		return ".webp"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	}
	if u, err := url.Parse(r.Request.URL.String()); err == nil {
		if ext := filepath.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".jpg"
}
