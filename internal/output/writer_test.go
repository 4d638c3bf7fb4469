package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
)

func sampleListings() []model.Listing {
	return []model.Listing{
		{
			ItemID:       "123456789",
			URL:          "https://www.facebook.com/marketplace/item/123456789/",
			Title:        "2011 Toyota Camry",
			PriceText:    "$7,500",
			LocationText: "Springfield, IL",
			ImageURL:     "https://scontent.example.com/1.jpg",
			ScrapedAt:    time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			ItemID:    "987654321",
			URL:       "https://www.facebook.com/marketplace/item/987654321/",
			Title:     "Dresser, solid oak",
			ScrapedAt: time.Date(2026, 8, 29, 12, 0, 5, 0, time.UTC),
		},
	}
}

func TestWriteJSONEmitsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleListings()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "123456789", decoded[0]["item_id"])
	assert.Equal(t, "$7,500", decoded[0]["price_text"])
	assert.Equal(t, "Springfield, IL", decoded[0]["location_text"])
}

func TestWriteJSONNilIsEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestWriteJSONFileRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.json")
	in := sampleListings()

	require.NoError(t, WriteJSONFile(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []model.Listing
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestWriteCSVHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleListings()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "item_id,url,title,price_text,location_text,image_url,scraped_at", lines[0])
	assert.Contains(t, lines[1], "2011 Toyota Camry")
	assert.Contains(t, lines[1], `"$7,500"`)
	assert.Contains(t, lines[1], "2026-08-29T12:00:00Z")
	// absent fields stay empty, columns still line up
	assert.Contains(t, lines[2], ",,,")
}

func TestWriteCSVEmptySetIsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "item_id,url,title,price_text,location_text,image_url,scraped_at", strings.TrimSpace(buf.String()))
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")
	require.NoError(t, WriteCSVFile(path, sampleListings()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "item_id,"))
}
