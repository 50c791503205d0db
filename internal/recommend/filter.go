package recommend

import "strings"

// MediaFilter narrows a SearchResult to one media type.
type MediaFilter string

const (
	FilterAll    MediaFilter = "All"
	FilterMovie  MediaFilter = "Movie"
	FilterSeries MediaFilter = "Series"
)

// ParseMediaFilter maps user input onto a filter, empty input means FilterAll.
// Unknown values are kept as-is and matched case-insensitively against item types.
func ParseMediaFilter(raw string) MediaFilter {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "", "all":
		return FilterAll
	case string(MediaMovie):
		return FilterMovie
	case string(MediaSeries):
		return FilterSeries
	default:
		return MediaFilter(trimmed)
	}
}

// Match reports whether item passes the filter.
func (f MediaFilter) Match(item Recommendation) bool {
	if f == FilterAll || f == "" {
		return true
	}
	return strings.EqualFold(string(item.Type), string(f))
}

// Apply returns a copy of r holding only matching items, order preserved.
func (f MediaFilter) Apply(r *SearchResult) *SearchResult {
	if r == nil {
		return nil
	}

	return &SearchResult{
		BannerURL:                 r.BannerURL,
		Recommendations:           f.filter(r.Recommendations),
		AdditionalRecommendations: f.filter(r.AdditionalRecommendations),
	}
}

func (f MediaFilter) filter(items []Recommendation) []Recommendation {
	out := make([]Recommendation, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}
