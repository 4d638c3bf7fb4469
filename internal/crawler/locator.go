package crawler

import (
	"regexp"
	"strings"

	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
)

// FieldLocator pulls one listing field out of a raw anchor record. Each field
// is located independently, so markup drift breaks one locator, not the whole
// extractor. A locator that finds nothing returns "".
type FieldLocator func(rec model.RawAnchor) string

// Locators bundles the per-field heuristics the extractor runs on every
// candidate anchor.
type Locators struct {
	ItemID   FieldLocator
	Title    FieldLocator
	Price    FieldLocator
	Location FieldLocator
	Image    FieldLocator
}

var itemIDPattern = regexp.MustCompile(regexp.QuoteMeta(ItemPathMarker) + `(\d+)`)

// currencyMarkers flag a text line as a rendered price. No normalization is
// attempted, the raw line is kept as-is.
var currencyMarkers = []string{"$", "€", "£", "CAD", "AUD", "₹", "Price"}

// DefaultLocators returns the positional/structural heuristics for the
// marketplace card markup: the anchor's inner text renders as short lines,
// title first, price within the next two, location after those when the list
// view renders it at all.
func DefaultLocators() Locators {
	return Locators{
		ItemID:   LocateItemID,
		Title:    locateTitle,
		Price:    locatePrice,
		Location: locateLocation,
		Image:    func(rec model.RawAnchor) string { return rec.Img },
	}
}

// LocateItemID derives the stable item identifier from the path segment that
// follows the item marker. An empty result means the candidate cannot be
// deduplicated or referenced and must be discarded.
func LocateItemID(rec model.RawAnchor) string {
	m := itemIDPattern.FindStringSubmatch(rec.Href)
	if m == nil {
		return ""
	}
	return m[1]
}

// textLines splits the anchor's rendered text into trimmed, non-empty lines.
func textLines(rec model.RawAnchor) []string {
	raw := strings.Split(rec.Text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

func locateTitle(rec model.RawAnchor) string {
	if lines := textLines(rec); len(lines) > 0 {
		return lines[0]
	}
	return ""
}

func locatePrice(rec model.RawAnchor) string {
	lines := textLines(rec)
	for i := 1; i < len(lines) && i < 3; i++ {
		for _, marker := range currencyMarkers {
			if strings.Contains(lines[i], marker) {
				return lines[i]
			}
		}
	}
	return ""
}

// locateLocation takes the first meaningful line after the price. The list
// view frequently renders no location at all, so empty is a legitimate value.
func locateLocation(rec model.RawAnchor) string {
	lines := textLines(rec)
	price := locatePrice(rec)
	if price == "" {
		return ""
	}
	for i := 1; i < len(lines); i++ {
		if lines[i] == price {
			if i+1 < len(lines) {
				return lines[i+1]
			}
			return ""
		}
	}
	return ""
}
