package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/ports"
)

// ErrMalformedPage marks a page body that is not a valid feed document.
var ErrMalformedPage = errors.New("malformed feed page")

// Codec parses feed pages and decodes staged entry sources.
type Codec struct{}

var _ ports.FeedCodec = Codec{}

type textNode struct {
	Content string `json:"content"`
}

type rawEntry struct {
	ID       textNode `json:"id"`
	Title    textNode `json:"title"`
	Content  textNode `json:"content"`
	Category []struct {
		Label string `json:"label"`
	} `json:"category"`
	Thumbnail struct {
		URL string `json:"url"`
	} `json:"media:thumbnail"`
	HTML5 struct {
		URL      string  `json:"url"`
		Duration flexInt `json:"duration"`
	} `json:"media:html5"`
	Updated    textNode `json:"updated"`
	Published  textNode `json:"published"`
	ExternalID textNode `json:"magnify:externalid"`
}

// ParsePage splits a page into staging records, one per entry with an id.
// The raw JSON of each entry is kept byte-for-byte as the record source.
func (Codec) ParsePage(raw []byte) ([]domain.StagingRecord, error) {
	var page struct {
		Entries []json.RawMessage `json:"entry"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	records := make([]domain.StagingRecord, 0, len(page.Entries))
	for _, source := range page.Entries {
		var head struct {
			ID textNode `json:"id"`
		}
		if err := json.Unmarshal(source, &head); err != nil || strings.TrimSpace(head.ID.Content) == "" {
			continue
		}
		records = append(records, domain.StagingRecord{
			ExternalID: head.ID.Content,
			Source:     bytes.Clone(source),
		})
	}
	return records, nil
}

// DecodeEntry maps a staged source document to a feed entry.
func (Codec) DecodeEntry(source []byte) (domain.FeedEntry, error) {
	var raw rawEntry
	if err := json.Unmarshal(source, &raw); err != nil {
		return domain.FeedEntry{}, fmt.Errorf("decode entry: %w", err)
	}

	labels := make([]string, 0, len(raw.Category))
	for _, c := range raw.Category {
		labels = append(labels, c.Label)
	}

	return domain.FeedEntry{
		ExternalID:      raw.ID.Content,
		Title:           raw.Title.Content,
		Description:     plainText(raw.Content.Content),
		ThumbnailURL:    raw.Thumbnail.URL,
		VideoURL:        domain.SecureURL(raw.HTML5.URL),
		Duration:        int64(raw.HTML5.Duration),
		PublishedAt:     raw.Published.Content,
		UpdatedAt:       raw.Updated.Content,
		Labels:          labels,
		ProviderVideoID: raw.ExternalID.Content,
	}, nil
}

// plainText strips HTML markup from descriptions; plain strings pass through.
func plainText(value string) string {
	if !strings.Contains(value, "<") {
		return strings.TrimSpace(value)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// flexInt accepts numbers, numeric strings, empty strings and null.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	*f = flexInt(value)
	return nil
}
