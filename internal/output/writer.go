// Package output serializes final listing records: a compact JSON array for
// stdout, an indented JSON mirror, and a fixed-column CSV.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
)

// csvHeader fixes the column order to the listing field order.
var csvHeader = []string{"item_id", "url", "title", "price_text", "location_text", "image_url", "scraped_at"}

// WriteJSON writes the listings as one compact JSON array. A nil slice is
// written as an empty array, never as null: downstream consumers always get
// an array.
func WriteJSON(w io.Writer, listings []model.Listing) error {
	if listings == nil {
		listings = []model.Listing{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(listings)
}

// WriteJSONFile mirrors the listings to a file, indented for reading, creating
// parent directories as needed.
func WriteJSONFile(path string, listings []model.Listing) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json output: %w", err)
	}
	defer f.Close()

	if listings == nil {
		listings = []model.Listing{}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(listings); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}

// WriteCSV writes a header row followed by one row per listing in the given
// order.
func WriteCSV(w io.Writer, listings []model.Listing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range listings {
		row := []string{
			l.ItemID,
			l.URL,
			l.Title,
			l.PriceText,
			l.LocationText,
			l.ImageURL,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the tabular form to a file, creating parent directories
// as needed.
func WriteCSVFile(path string, listings []model.Listing) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv output: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, listings)
}
