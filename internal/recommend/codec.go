package recommend

import (
	"bytes"

	errors "github.com/Laisky/errors/v2"
	"github.com/goccy/go-json"
)

// wireResult is the shape shared by the webhook response and the cache payload.
// Both recommendation lists arrive either as plain arrays of objects or as
// sequences of strings, each string holding a JSON-encoded array.
type wireResult struct {
	BannerURL                 string          `json:"bannerUrl,omitempty"`
	Recommendations           json.RawMessage `json:"Recommendations"`
	AdditionalRecommendations json.RawMessage `json:"AdditionalRecommendations"`
}

// encodedResult is what EncodeResult writes, always the double-encoded form.
type encodedResult struct {
	BannerURL                 string   `json:"bannerUrl,omitempty"`
	Recommendations           []string `json:"Recommendations"`
	AdditionalRecommendations []string `json:"AdditionalRecommendations"`
}

// DecodeResult parses a webhook body or cache payload into a SearchResult.
// Any parse failure is returned as an *Error with ErrCodeDecode.
func DecodeResult(data []byte) (*SearchResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, decodeError("empty payload", nil)
	}

	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeError("unmarshal payload", err)
	}

	primary, err := decodeList("Recommendations", wire.Recommendations)
	if err != nil {
		return nil, err
	}
	additional, err := decodeList("AdditionalRecommendations", wire.AdditionalRecommendations)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		BannerURL:                 wire.BannerURL,
		Recommendations:           primary,
		AdditionalRecommendations: additional,
	}, nil
}

// EncodeResult serializes r into the cache payload, re-creating the double encoding.
func EncodeResult(r *SearchResult) (string, error) {
	if r == nil {
		return "", errors.New("search result is nil")
	}

	primary, err := encodeList(r.Recommendations)
	if err != nil {
		return "", errors.Wrap(err, "encode Recommendations")
	}
	additional, err := encodeList(r.AdditionalRecommendations)
	if err != nil {
		return "", errors.Wrap(err, "encode AdditionalRecommendations")
	}

	payload, err := json.Marshal(encodedResult{
		BannerURL:                 r.BannerURL,
		Recommendations:           []string{primary},
		AdditionalRecommendations: []string{additional},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal payload")
	}

	return string(payload), nil
}

func encodeList(items []Recommendation) (string, error) {
	if items == nil {
		items = []Recommendation{}
	}

	inner, err := json.Marshal(items)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(inner), nil
}

type elementKind int

const (
	kindUnknown elementKind = iota
	kindString
	kindObject
)

func kindOf(raw json.RawMessage) elementKind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return kindUnknown
	}
	switch trimmed[0] {
	case '"':
		return kindString
	case '{':
		return kindObject
	default:
		return kindUnknown
	}
}

// decodeList handles one recommendation field in either wire shape.
func decodeList(field string, raw json.RawMessage) ([]Recommendation, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Recommendation{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, decodeError(field+" is not an array", err)
	}
	if len(elements) == 0 {
		return []Recommendation{}, nil
	}

	shape := kindOf(elements[0])
	for _, el := range elements[1:] {
		if kindOf(el) != shape {
			return nil, decodeError(field+" mixes element shapes", nil)
		}
	}

	switch shape {
	case kindObject:
		items := make([]Recommendation, 0, len(elements))
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, decodeError("unmarshal "+field, err)
		}
		return items, nil
	case kindString:
		items := make([]Recommendation, 0)
		for _, el := range elements {
			var encoded string
			if err := json.Unmarshal(el, &encoded); err != nil {
				return nil, decodeError("unmarshal "+field+" element", err)
			}

			var inner []Recommendation
			if err := json.Unmarshal([]byte(encoded), &inner); err != nil {
				return nil, decodeError("unmarshal encoded "+field, err)
			}
			items = append(items, inner...)
		}
		return items, nil
	default:
		return nil, decodeError(field+" holds neither objects nor encoded strings", nil)
	}
}
