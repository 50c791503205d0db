package recommend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/goccy/go-json"

	"github.com/Laisky/reel-places/library/log"
)

// Fetcher computes recommendations for a display term.
type Fetcher interface {
	Fetch(ctx context.Context, displayTerm string) (*SearchResult, error)
}

const (
	// DefaultWebhookTimeout bounds one webhook call, the upstream automation is slow.
	DefaultWebhookTimeout = 120 * time.Second
	// logBodyLimit caps the number of response bytes logged for debugging.
	logBodyLimit = 4096
)

// WebhookFetcher asks the recommendation webhook for results.
type WebhookFetcher struct {
	url    string
	client *http.Client
	logger logSDK.Logger
}

var _ Fetcher = (*WebhookFetcher)(nil)

// FetcherOption customises a WebhookFetcher during construction.
type FetcherOption func(*WebhookFetcher)

// WithHTTPClient replaces the http client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *WebhookFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithFetcherLogger overrides the fetcher logger.
func WithFetcherLogger(logger logSDK.Logger) FetcherOption {
	return func(f *WebhookFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewWebhookFetcher builds a fetcher posting to webhookURL.
// timeout <= 0 leaves the http client without a deadline.
func NewWebhookFetcher(webhookURL string, timeout time.Duration, opts ...FetcherOption) (*WebhookFetcher, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, errors.New("recommendation webhook url is not configured")
	}
	if timeout < 0 {
		timeout = 0
	}

	f := &WebhookFetcher{
		url:    webhookURL,
		client: &http.Client{Timeout: timeout},
		logger: log.Logger.Named("recommend_webhook"),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

type fetchRequest struct {
	Term string `json:"term"`
}

// Fetch posts displayTerm to the webhook once and decodes its answer.
// Every failure is returned as an *Error with ErrCodeFetch.
func (f *WebhookFetcher) Fetch(ctx context.Context, displayTerm string) (*SearchResult, error) {
	reqBody, err := json.Marshal(fetchRequest{Term: displayTerm})
	if err != nil {
		return nil, NewError(ErrCodeFetch, "marshal webhook request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, NewError(ErrCodeFetch, "create webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger := f.logger.With(zap.String("term", displayTerm))
	logger.Debug("outgoing http request",
		zap.String("method", req.Method),
		zap.String("url", f.url),
		zap.ByteString("body", reqBody),
	)

	startAt := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewError(ErrCodeFetch, "send webhook request", err)
	}
	defer resp.Body.Close() // nolint: errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(ErrCodeFetch, "read webhook response", err)
	}

	truncatedBody, truncated := truncateForLog(body, logBodyLimit)
	logger.Debug("incoming http response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncatedBody),
		zap.Bool("body_truncated", truncated),
		zap.Duration("cost", time.Since(startAt)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Code:       ErrCodeFetch,
			Message:    "recommendation webhook returned status " + http.StatusText(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("status %d: %s", resp.StatusCode, truncatedBody),
		}
	}

	result, err := DecodeResult(body)
	if err != nil {
		return nil, &Error{
			Code:       ErrCodeFetch,
			Message:    "decode webhook response",
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	return result, nil
}

func truncateForLog(body []byte, limit int) (string, bool) {
	if len(body) <= limit {
		return string(body), false
	}
	return string(body[:limit]), true
}
