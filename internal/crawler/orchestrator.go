package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
	"github.com/kvasirlabs/mktcrawl/param"
)

// Orchestrator drives one crawl through its states: open the search page,
// then scroll, pause, extract, and merge until the requested maximum is
// reached, the idle-round limit signals end of results, the session dies, or
// the caller cancels. Strictly sequential: navigation, scroll, pause, and
// extraction never overlap within one crawl, each step must observe a settled
// page state or the new-listings-per-round termination signal is corrupted.
type Orchestrator struct {
	nav *Navigator
	ext *Extractor
}

func NewOrchestrator(nav *Navigator, ext *Extractor) *Orchestrator {
	return &Orchestrator{nav: nav, ext: ext}
}

// Crawl runs the loop to a terminal status. The browsing context must already
// be seeded with session cookies; Crawl does not close it.
func (o *Orchestrator) Crawl(ctx context.Context, req *param.Crawl) Result {
	req.Normalize()
	acc := NewAccumulator(req.MaxItems)

	outcome, err := o.nav.Open(ctx, req.Query)
	if err != nil {
		return Result{Status: StatusAborted, Listings: acc.Items(), Err: err}
	}
	if outcome == LoginRequired {
		log.Warn().Str("query", req.Query).Msg("login redirect on open, session rejected")
		return Result{Status: StatusSessionExpired, Listings: acc.Items()}
	}

	// The limiter is the loop's only voluntary suspension point. Burning the
	// initial token makes every post-scroll wait span the full pacing delay.
	limiter := rate.NewLimiter(rate.Every(req.ScrollDelay), 1)
	limiter.Allow()

	idle := 0
	round := 0
	for {
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusAborted, Listings: acc.Items(), Err: err}
		}
		round++

		if err := o.nav.Scroll(ctx, 0); err != nil {
			return Result{Status: StatusAborted, Listings: acc.Items(), Err: err}
		}
		if err := limiter.Wait(ctx); err != nil {
			return Result{Status: StatusAborted, Listings: acc.Items(), Err: err}
		}

		// Session revocation can occur mid-crawl; catching it here turns an
		// endless idle tail into a prompt SessionExpired with partial data.
		outcome, err := o.nav.CheckSession(ctx)
		if err != nil {
			return Result{Status: StatusAborted, Listings: acc.Items(), Err: err}
		}
		if outcome == LoginRequired {
			log.Warn().Str("query", req.Query).Int("round", round).Msg("session revoked mid-crawl")
			return Result{Status: StatusSessionExpired, Listings: acc.Items()}
		}

		batch, err := o.ext.Extract(ctx)
		if err != nil {
			return Result{Status: StatusAborted, Listings: acc.Items(), Err: fmt.Errorf("round %d: %w", round, err)}
		}
		added := acc.Merge(batch)
		log.Info().
			Str("query", req.Query).
			Int("round", round).
			Int("added", added).
			Int("total", acc.Len()).
			Msg("extraction round")

		if acc.Full() {
			return Result{Status: StatusDone, Listings: acc.Items()}
		}
		if added == 0 {
			idle++
			if idle >= req.IdleLimit {
				// Infinite scroll has no end-of-list marker; a run of idle
				// rounds is the "no more results" signal.
				log.Info().Str("query", req.Query).Int("idle_rounds", idle).Msg("no new listings, stopping")
				return Result{Status: StatusDone, Listings: acc.Items()}
			}
		} else {
			idle = 0
		}
	}
}

// FilterByLocation keeps listings whose location text contains any needle,
// case-insensitively. An empty needle set keeps everything.
func FilterByLocation(listings []model.Listing, needles []string) []model.Listing {
	cleaned := make([]string, 0, len(needles))
	for _, n := range needles {
		if t := strings.TrimSpace(strings.ToLower(n)); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return listings
	}
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		loc := strings.ToLower(l.LocationText)
		for _, n := range cleaned {
			if strings.Contains(loc, n) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
