package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
	"github.com/kvasirlabs/mktcrawl/internal/infra/browser"
)

// anchorScript collects every item-page anchor with its rendered text and
// first thumbnail. It runs against whatever the page currently shows; field
// interpretation happens on the Go side so the heuristics stay testable.
const anchorScript = `() => Array.from(document.querySelectorAll('a[href*="` + ItemPathMarker + `"]')).map(a => ({
	href: a.href,
	text: a.innerText || '',
	img: (a.querySelector('img') || {}).src || ''
}))`

// Extractor harvests listing candidates from the current page state.
type Extractor struct {
	b   browser.Browser
	loc Locators
	now func() time.Time
}

func NewExtractor(b browser.Browser, loc Locators) *Extractor {
	return &Extractor{b: b, loc: loc, now: time.Now}
}

// Extract runs the anchor script and applies the field locators to each
// record. Candidates without a derivable item id are discarded; any other
// missing field yields an empty string and the listing is still emitted.
// Duplicate anchors for one item (thumbnail and title both link to it) pass
// through untouched, uniqueness is the accumulator's job.
func (e *Extractor) Extract(ctx context.Context) ([]model.Listing, error) {
	var recs []model.RawAnchor
	if err := e.b.Evaluate(ctx, anchorScript, &recs); err != nil {
		return nil, fmt.Errorf("evaluate extraction script: %w", err)
	}
	scrapedAt := e.now().UTC()
	listings := make([]model.Listing, 0, len(recs))
	for _, rec := range recs {
		id := e.loc.ItemID(rec)
		if id == "" {
			continue
		}
		listings = append(listings, model.Listing{
			ItemID:       id,
			URL:          rec.Href,
			Title:        e.loc.Title(rec),
			PriceText:    e.loc.Price(rec),
			LocationText: e.loc.Location(rec),
			ImageURL:     e.loc.Image(rec),
			ScrapedAt:    scrapedAt,
		})
	}
	return listings, nil
}
