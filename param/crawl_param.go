package param

import "time"

// Crawl holds the immutable inputs for one crawl run. Zero values are filled
// in by Normalize, so a literal with only Query set is a valid request.
type Crawl struct {
	Query            string        `json:"query"`
	MaxItems         int           `json:"max_items"`
	ScrollDelay      time.Duration `json:"scroll_delay"`
	IdleLimit        int           `json:"idle_limit"`
	Headless         bool          `json:"headless"`
	SlowMo           time.Duration `json:"slow_mo"`
	LocationContains []string      `json:"location_contains,omitempty"`
}

const (
	DefaultMaxItems    = 50
	DefaultIdleLimit   = 8
	DefaultScrollDelay = 800 * time.Millisecond
)

// Normalize replaces unset or non-positive fields with the defaults.
func (c *Crawl) Normalize() {
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultMaxItems
	}
	if c.IdleLimit <= 0 {
		c.IdleLimit = DefaultIdleLimit
	}
	if c.ScrollDelay <= 0 {
		c.ScrollDelay = DefaultScrollDelay
	}
}
