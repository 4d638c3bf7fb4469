package crawler

import "github.com/kvasirlabs/mktcrawl/internal/domain/model"

// Status is the terminal condition of a crawl. It is a value, not an error:
// "zero results because the session expired" and "zero results because the
// query has none" need different user guidance, so callers must be able to
// tell them apart without string inspection.
type Status int

const (
	// StatusDone means the crawl finished normally: either the requested
	// maximum was reached or the idle-round limit signalled end of results.
	StatusDone Status = iota
	// StatusSessionExpired means the service rejected the session. Expected
	// outcome, not an exception; callers should prompt for fresh cookies.
	StatusSessionExpired
	// StatusAborted means a transport failure or cancellation ended the crawl
	// early. Result.Err carries the reason; errors.Is(err, context.Canceled)
	// identifies cancellation.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusSessionExpired:
		return "session_expired"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the outcome of one crawl. Listings holds whatever was accumulated
// up to the terminal condition; aborted and cancelled crawls keep their
// partial results.
type Result struct {
	Status   Status
	Listings []model.Listing
	Err      error
}
