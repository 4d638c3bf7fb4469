package market

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlabs/mktcrawl/internal/config"
	"github.com/kvasirlabs/mktcrawl/internal/crawler"
	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
	"github.com/kvasirlabs/mktcrawl/internal/infra/browser"
	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
	"github.com/kvasirlabs/mktcrawl/param"
)

// stubBrowser serves one batch of anchors on the first Evaluate and nothing
// after, so a crawl with IdleLimit 1 terminates in two rounds.
type stubBrowser struct {
	mu       sync.Mutex
	seeded   []session.Cookie
	current  []session.Cookie
	location string
	batch    []model.RawAnchor
	served   bool
	closed   bool
}

func (b *stubBrowser) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seeded = cookies
	return nil
}

func (b *stubBrowser) Cookies(ctx context.Context) ([]session.Cookie, error) {
	return b.current, nil
}

func (b *stubBrowser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.location = url
	return nil
}

func (b *stubBrowser) Location(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.location, nil
}

func (b *stubBrowser) Evaluate(ctx context.Context, js string, out any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	recs, ok := out.(*[]model.RawAnchor)
	if !ok {
		return nil
	}
	if b.served {
		*recs = nil
		return nil
	}
	b.served = true
	*recs = b.batch
	return nil
}

func (b *stubBrowser) ScrollBy(ctx context.Context, pixels int) error { return nil }

func (b *stubBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func anchorFor(id, text string) model.RawAnchor {
	return model.RawAnchor{
		Href: "https://www.facebook.com/marketplace/item/" + id + "/?ref=search",
		Text: text,
		Img:  "https://scontent.example.com/" + id + ".jpg",
	}
}

func quickReq(query string) *param.Crawl {
	return &param.Crawl{
		Query:       query,
		MaxItems:    50,
		ScrollDelay: time.Millisecond,
		IdleLimit:   1,
	}
}

func stubService(t *testing.T, saveCookiesTo string, mk func() *stubBrowser) (*Service, *[]*stubBrowser) {
	t.Helper()
	svc, err := InitService(&config.Config{}, DriverChromedp, saveCookiesTo)
	require.NoError(t, err)

	var made []*stubBrowser
	var mu sync.Mutex
	svc.newBrowser = func(ctx context.Context, opts browser.Options) (browser.Browser, error) {
		b := mk()
		mu.Lock()
		made = append(made, b)
		mu.Unlock()
		return b, nil
	}
	return svc, &made
}

func TestInitServiceRejectsUnknownDriver(t *testing.T) {
	_, err := InitService(&config.Config{}, Driver("firefox"), "")
	assert.Error(t, err)

	_, err = InitService(&config.Config{}, DriverRod, "")
	assert.NoError(t, err)
}

func TestCrawlSeedsCookiesAndReleasesBrowser(t *testing.T) {
	svc, made := stubService(t, "", func() *stubBrowser {
		return &stubBrowser{batch: []model.RawAnchor{
			anchorFor("11", "Camry\n$7,500\nSpringfield, IL"),
		}}
	})

	cookies := []session.Cookie{{Name: "xs", Value: "abc"}}
	res := svc.Crawl(context.Background(), quickReq("camry"), cookies)

	assert.Equal(t, crawler.StatusDone, res.Status)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, "11", res.Listings[0].ItemID)

	require.Len(t, *made, 1)
	b := (*made)[0]
	assert.True(t, b.closed)
	require.Len(t, b.seeded, 1)
	// cookies are normalized before install
	assert.Equal(t, crawler.CookieDomain, b.seeded[0].Domain)
}

func TestCrawlAppliesLocationFilter(t *testing.T) {
	svc, _ := stubService(t, "", func() *stubBrowser {
		return &stubBrowser{batch: []model.RawAnchor{
			anchorFor("11", "Camry\n$7,500\nSpringfield, IL"),
			anchorFor("22", "Corolla\n$6,000\nPortland, OR"),
		}}
	})

	req := quickReq("camry")
	req.LocationContains = []string{"springfield"}
	res := svc.Crawl(context.Background(), req, nil)

	assert.Equal(t, crawler.StatusDone, res.Status)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, "11", res.Listings[0].ItemID)
}

func TestCrawlBrowserAcquisitionFailure(t *testing.T) {
	svc, err := InitService(&config.Config{}, DriverChromedp, "")
	require.NoError(t, err)
	boom := errors.New("chrome not found")
	svc.newBrowser = func(ctx context.Context, opts browser.Options) (browser.Browser, error) {
		return nil, boom
	}

	res := svc.Crawl(context.Background(), quickReq("camry"), nil)
	assert.Equal(t, crawler.StatusAborted, res.Status)
	assert.ErrorIs(t, res.Err, boom)
}

func TestCrawlSavesCookiesOnSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	refreshed := []session.Cookie{{Name: "xs", Value: "rotated", Domain: ".facebook.com"}}
	svc, _ := stubService(t, path, func() *stubBrowser {
		return &stubBrowser{current: refreshed}
	})

	res := svc.Crawl(context.Background(), quickReq("camry"), nil)
	require.Equal(t, crawler.StatusDone, res.Status)

	saved, err := session.Load(path)
	require.NoError(t, err)
	assert.Equal(t, refreshed, saved)
}

func TestCrawlSkipsCookieSaveOnExpiredSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	svc, err := InitService(&config.Config{}, DriverChromedp, path)
	require.NoError(t, err)
	svc.newBrowser = func(ctx context.Context, opts browser.Options) (browser.Browser, error) {
		b := &stubBrowser{}
		b.location = "https://www.facebook.com/login/?next=x"
		// Navigate would overwrite location; pin it
		return loginPinned{b}, nil
	}

	res := svc.Crawl(context.Background(), quickReq("camry"), nil)
	assert.Equal(t, crawler.StatusSessionExpired, res.Status)

	_, err = session.Load(path)
	assert.Error(t, err)
}

// loginPinned keeps the location at the login redirect regardless of Navigate.
type loginPinned struct{ *stubBrowser }

func (b loginPinned) Navigate(ctx context.Context, url string) error { return nil }

func TestCrawlAllPreservesRequestOrder(t *testing.T) {
	svc, made := stubService(t, "", func() *stubBrowser {
		return &stubBrowser{batch: []model.RawAnchor{
			anchorFor("7", "Desk\n$40\nAustin, TX"),
		}}
	})

	reqs := []*param.Crawl{quickReq("camry"), quickReq("dresser"), quickReq("desk")}
	results := svc.CrawlAll(context.Background(), reqs, nil, 2)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, crawler.StatusDone, res.Status, "request %d", i)
		assert.Len(t, res.Listings, 1)
	}
	// one browsing context per crawl, all released
	require.Len(t, *made, 3)
	for _, b := range *made {
		assert.True(t, b.closed)
	}
}

func TestCrawlAllOneFailureDoesNotCancelOthers(t *testing.T) {
	svc, err := InitService(&config.Config{}, DriverChromedp, "")
	require.NoError(t, err)
	var calls int
	var mu sync.Mutex
	svc.newBrowser = func(ctx context.Context, opts browser.Options) (browser.Browser, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("chrome crashed")
		}
		return &stubBrowser{batch: []model.RawAnchor{anchorFor("9", "Sofa\n$120\nDenver, CO")}}, nil
	}

	results := svc.CrawlAll(context.Background(), []*param.Crawl{quickReq("a"), quickReq("b")}, nil, 1)

	require.Len(t, results, 2)
	assert.Equal(t, crawler.StatusAborted, results[0].Status)
	assert.Equal(t, crawler.StatusDone, results[1].Status)
}
