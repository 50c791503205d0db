// Package recommend looks up movie and series recommendations for a search term,
// serving them from a relational cache before asking the recommendation webhook.
package recommend

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// MediaType is the kind of a recommended item.
type MediaType string

const (
	MediaMovie  MediaType = "movie"
	MediaSeries MediaType = "series"
)

// NoImage is the literal the webhook uses when an item has no poster.
const NoImage = "N/A"

// Recommendation is one suggested media item, field names follow the webhook payload.
type Recommendation struct {
	Title          string     `json:"Title"`
	Year           FlexString `json:"Year,omitempty"`
	Creator        string     `json:"Creator,omitempty"`
	Type           MediaType  `json:"Type,omitempty"`
	Description    string     `json:"Description,omitempty"`
	Reason         string     `json:"Reason,omitempty"`
	ImageURL       string     `json:"imageUrl,omitempty"`
	Rating         *float64   `json:"Rating,omitempty"`
	PlacesFeatured []string   `json:"PlacesFeatured,omitempty"`
	WhereToWatch   []string   `json:"WhereToWatch,omitempty"`
}

// HasImage reports whether the item carries a usable poster URL.
func (r Recommendation) HasImage() bool {
	url := strings.TrimSpace(r.ImageURL)
	return url != "" && url != NoImage
}

// SearchResult is the outcome of one recommendation lookup.
type SearchResult struct {
	BannerURL                 string           `json:"bannerUrl,omitempty"`
	Recommendations           []Recommendation `json:"Recommendations"`
	AdditionalRecommendations []Recommendation `json:"AdditionalRecommendations"`
}

// CacheRecord associates a canonical term with an encoded SearchResult.
type CacheRecord struct {
	ID        uuid.UUID
	Term      string
	Payload   string
	CreatedAt time.Time
}

// FlexString accepts a JSON string or number and always holds a string.
// The webhook is inconsistent about how it sends years.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return errors.Wrap(err, "unmarshal string")
		}
		*s = FlexString(str)
		return nil
	}

	raw := string(data)
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return errors.Errorf("value %s is neither string nor number", raw)
	}
	*s = FlexString(raw)
	return nil
}

// String returns the held value.
func (s FlexString) String() string {
	return string(s)
}
