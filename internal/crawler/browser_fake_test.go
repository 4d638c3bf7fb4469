package crawler

import (
	"context"

	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
)

// fakeBrowser scripts the browser capability for engine tests. Locations are
// consumed one per Location call and batches one per Evaluate call; the last
// entry of each repeats once exhausted.
type fakeBrowser struct {
	navigated   []string
	navigateErr error

	locations   []string
	locIdx      int
	locationErr error

	batches   [][]model.RawAnchor
	evalIdx   int
	evalCalls int
	evalErr   error
	evalErrAt int // 1-based Evaluate call at which evalErr fires
	onEval    func(call int)

	scrollCalls int
	scrollErr   error

	closed bool
}

const readyURL = "https://www.facebook.com/marketplace/search/?query=camry"

func (f *fakeBrowser) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	return nil
}

func (f *fakeBrowser) Cookies(ctx context.Context) ([]session.Cookie, error) {
	return nil, nil
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navigateErr
}

func (f *fakeBrowser) Location(ctx context.Context) (string, error) {
	if f.locationErr != nil {
		return "", f.locationErr
	}
	if len(f.locations) == 0 {
		return readyURL, nil
	}
	i := f.locIdx
	if i >= len(f.locations) {
		i = len(f.locations) - 1
	}
	f.locIdx++
	return f.locations[i], nil
}

func (f *fakeBrowser) Evaluate(ctx context.Context, js string, out any) error {
	f.evalCalls++
	if f.onEval != nil {
		f.onEval(f.evalCalls)
	}
	if f.evalErr != nil && (f.evalErrAt == 0 || f.evalCalls == f.evalErrAt) {
		return f.evalErr
	}
	recs, ok := out.(*[]model.RawAnchor)
	if !ok {
		return nil
	}
	if len(f.batches) == 0 {
		*recs = nil
		return nil
	}
	i := f.evalIdx
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	f.evalIdx++
	*recs = f.batches[i]
	return nil
}

func (f *fakeBrowser) ScrollBy(ctx context.Context, pixels int) error {
	f.scrollCalls++
	return f.scrollErr
}

func (f *fakeBrowser) Close() error {
	f.closed = true
	return nil
}

func anchor(id, title, price, location string) model.RawAnchor {
	text := title
	if price != "" {
		text += "\n" + price
	}
	if location != "" {
		text += "\n" + location
	}
	return model.RawAnchor{
		Href: "https://www.facebook.com/marketplace/item/" + id + "/?ref=search",
		Text: text,
		Img:  "https://scontent.example.com/" + id + ".jpg",
	}
}
