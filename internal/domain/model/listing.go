package model

import (
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// DefaultIndex is the Elasticsearch index listings are written to when no
// override is configured.
const DefaultIndex = "marketplace-listings"

// Listing is one marketplace search result. All text fields are raw page
// values; a field that could not be located is an empty string, never omitted.
type Listing struct {
	ItemID       string    `json:"item_id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	PriceText    string    `json:"price_text"`
	LocationText string    `json:"location_text"`
	ImageURL     string    `json:"image_url"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

func (l Listing) GetID() string {
	return l.ItemID
}

func (l Listing) GetIndex() string {
	return DefaultIndex
}

func (l Listing) GetTypeMapping() *types.TypeMapping {
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"item_id":       types.NewKeywordProperty(),
			"url":           types.NewKeywordProperty(),
			"title":         types.NewTextProperty(),
			"price_text":    types.NewKeywordProperty(),
			"location_text": types.NewTextProperty(),
			"image_url":     types.NewKeywordProperty(),
			"scraped_at":    types.NewDateProperty(),
		},
	}
}

// RawAnchor is the record the in-page extraction script returns for each
// candidate anchor element, before any field location runs on it.
type RawAnchor struct {
	Href string `json:"href"`
	Text string `json:"text"`
	Img  string `json:"img"`
}
