package crawler

import "github.com/kvasirlabs/mktcrawl/internal/domain/model"

// Accumulator is the sole authority on item-id uniqueness for a crawl. It
// appends first-seen listings in order up to a fixed maximum and never
// reorders or removes what it has accepted.
type Accumulator struct {
	max   int
	seen  map[string]struct{}
	items []model.Listing
}

func NewAccumulator(max int) *Accumulator {
	return &Accumulator{
		max:  max,
		seen: make(map[string]struct{}, max),
	}
}

// Merge folds a batch in, in batch order, skipping ids already present and
// anything past the maximum. The returned count of actually added listings is
// the orchestrator's primary termination signal.
func (a *Accumulator) Merge(batch []model.Listing) int {
	added := 0
	for _, l := range batch {
		if len(a.items) >= a.max {
			break
		}
		if _, ok := a.seen[l.ItemID]; ok {
			continue
		}
		a.seen[l.ItemID] = struct{}{}
		a.items = append(a.items, l)
		added++
	}
	return added
}

func (a *Accumulator) Len() int {
	return len(a.items)
}

func (a *Accumulator) Full() bool {
	return len(a.items) >= a.max
}

// Items returns the accumulated listings in first-seen order. The caller gets
// a copy; the accumulator's state cannot be mutated from outside.
func (a *Accumulator) Items() []model.Listing {
	out := make([]model.Listing, len(a.items))
	copy(out, a.items)
	return out
}
