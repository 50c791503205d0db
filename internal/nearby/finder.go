package nearby

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/goccy/go-json"

	"github.com/Laisky/reel-places/library/log"
)

// Finder looks up places around a coordinate.
type Finder interface {
	Find(ctx context.Context, at Coordinate) ([]Place, error)
}

const (
	defaultFinderTimeout = 30 * time.Second
	logBodyLimit         = 2048

	// GooglePlacesEndpoint is the Places API (New) nearby search endpoint.
	GooglePlacesEndpoint = "https://places.googleapis.com/v1/places:searchNearby"
	googleMediaBase      = "https://places.googleapis.com/v1/"
	googleFieldMask      = "places.displayName,places.photos"
	googleMaxResults     = 5
	googleRadiusMeters   = 1000.0
	googlePhotoMaxPx     = 400
)

// googleIncludedTypes are the place categories worth showing to a traveller.
var googleIncludedTypes = []string{
	"cultural_landmark",
	"historical_place",
	"monument",
	"beach",
	"stadium",
	"museum",
	"park",
	"locality",
}

// FinderOption customises a finder during construction.
type FinderOption func(*finderBase)

type finderBase struct {
	client *http.Client
	logger logSDK.Logger
}

// WithFinderHTTPClient replaces the http client.
func WithFinderHTTPClient(client *http.Client) FinderOption {
	return func(b *finderBase) {
		if client != nil {
			b.client = client
		}
	}
}

// WithFinderLogger overrides the finder logger.
func WithFinderLogger(logger logSDK.Logger) FinderOption {
	return func(b *finderBase) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func newFinderBase(name string, opts ...FinderOption) finderBase {
	b := finderBase{
		client: &http.Client{Timeout: defaultFinderTimeout},
		logger: log.Logger.Named(name),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// postJSON sends payload to endpoint and decodes a 2xx answer into out.
func (b finderBase) postJSON(ctx context.Context, endpoint string, headers http.Header, payload, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	startAt := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close() // nolint: errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	logged := body
	if len(logged) > logBodyLimit {
		logged = logged[:logBodyLimit]
	}
	b.logger.Debug("incoming http response",
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", logged),
		zap.Duration("cost", time.Since(startAt)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("unexpected status %d: %s", resp.StatusCode, logged)
	}
	if err = json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode response")
	}

	return nil
}

// WebhookFinder asks the nearby-places webhook.
type WebhookFinder struct {
	finderBase
	url string
}

var _ Finder = (*WebhookFinder)(nil)

// NewWebhookFinder builds a finder posting coordinates to webhookURL.
func NewWebhookFinder(webhookURL string, opts ...FinderOption) (*WebhookFinder, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, errors.New("nearby webhook url is not configured")
	}

	return &WebhookFinder{
		finderBase: newFinderBase("nearby_webhook", opts...),
		url:        webhookURL,
	}, nil
}

type webhookResponse struct {
	Nearby []Place `json:"nearby"`
}

// Find posts {latitude, longitude} and returns the webhook's nearby list.
func (f *WebhookFinder) Find(ctx context.Context, at Coordinate) ([]Place, error) {
	var resp webhookResponse
	if err := f.postJSON(ctx, f.url, nil, at, &resp); err != nil {
		return nil, errors.Wrap(err, "query nearby webhook")
	}

	if resp.Nearby == nil {
		return []Place{}, nil
	}
	return resp.Nearby, nil
}

// PlacesFinder queries the Google Places nearby search.
type PlacesFinder struct {
	finderBase
	apiKey   string
	endpoint string
}

var _ Finder = (*PlacesFinder)(nil)

// NewPlacesFinder builds a Google Places finder. endpoint may be empty to use
// GooglePlacesEndpoint.
func NewPlacesFinder(apiKey, endpoint string, opts ...FinderOption) (*PlacesFinder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("google places api key is not configured")
	}
	if endpoint == "" {
		endpoint = GooglePlacesEndpoint
	}

	return &PlacesFinder{
		finderBase: newFinderBase("nearby_google", opts...),
		apiKey:     apiKey,
		endpoint:   endpoint,
	}, nil
}

type placesCircle struct {
	Center Coordinate `json:"center"`
	Radius float64    `json:"radius"`
}

type placesRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle placesCircle `json:"circle"`
	} `json:"locationRestriction"`
}

type placesResponse struct {
	Places []struct {
		DisplayName *struct {
			Text string `json:"text"`
		} `json:"displayName"`
		Photos []struct {
			Name string `json:"name"`
		} `json:"photos"`
	} `json:"places"`
}

// Find returns up to five named places within a kilometre of at.
func (f *PlacesFinder) Find(ctx context.Context, at Coordinate) ([]Place, error) {
	payload := placesRequest{
		IncludedTypes:  googleIncludedTypes,
		MaxResultCount: googleMaxResults,
	}
	payload.LocationRestriction.Circle = placesCircle{Center: at, Radius: googleRadiusMeters}

	headers := http.Header{}
	headers.Set("X-Goog-Api-Key", f.apiKey)
	headers.Set("X-Goog-FieldMask", googleFieldMask)

	var resp placesResponse
	if err := f.postJSON(ctx, f.endpoint, headers, payload, &resp); err != nil {
		return nil, errors.Wrap(err, "query google places")
	}

	places := make([]Place, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.DisplayName == nil || p.DisplayName.Text == "" {
			continue
		}

		place := Place{LocationName: p.DisplayName.Text}
		if len(p.Photos) > 0 && p.Photos[0].Name != "" {
			place.ImageURL = f.photoURL(p.Photos[0].Name)
		}
		places = append(places, place)
	}

	return places, nil
}

func (f *PlacesFinder) photoURL(photoName string) string {
	q := url.Values{}
	q.Set("key", f.apiKey)
	q.Set("maxHeightPx", fmt.Sprint(googlePhotoMaxPx))
	q.Set("maxWidthPx", fmt.Sprint(googlePhotoMaxPx))
	return googleMediaBase + photoName + "/media?" + q.Encode()
}
