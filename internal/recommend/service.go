package recommend

import (
	"context"
	"fmt"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Laisky/reel-places/library/log"
)

// State is a step of one lookup.
type State int

const (
	StateIdle State = iota
	StateLookingUp
	StateSuccess
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLookingUp:
		return "looking_up"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateObserver is told about every state transition of a lookup.
// It may be called from a goroutine other than the caller's.
type StateObserver func(displayTerm string, state State)

// Source tells where a result came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourceWebhook Source = "webhook"
)

// Lookup is a successful lookup outcome.
type Lookup struct {
	// Term is the display term as the caller typed it.
	Term string
	// Canonical is the cache key derived from Term.
	Canonical string
	Source    Source
	Result    *SearchResult
}

// Service serves recommendations cache-first and fills the cache on a miss.
type Service struct {
	store    Store
	fetcher  Fetcher
	logger   logSDK.Logger
	observer StateObserver
	coalesce bool
	flights  singleflight.Group
}

// ServiceOption customises a Service during construction.
type ServiceOption func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger logSDK.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStateObserver registers a state transition callback.
func WithStateObserver(observer StateObserver) ServiceOption {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithCoalescing collapses concurrent lookups of the same canonical term
// into a single store read and webhook call. Off by default, in which case
// concurrent misses each fetch and each insert a record.
func WithCoalescing(enabled bool) ServiceOption {
	return func(s *Service) {
		s.coalesce = enabled
	}
}

// NewService constructs a Service over store and fetcher.
func NewService(store Store, fetcher Fetcher, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	s := &Service{
		store:   store,
		fetcher: fetcher,
		logger:  log.Logger.Named("recommend_service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

type lookupOutcome struct {
	lookup *Lookup
	err    error
}

// Lookup returns recommendations for displayTerm.
//
// Blank terms fail with ErrEmptyTerm before anything is contacted. When ctx is
// done before the lookup finishes, Lookup returns ErrCanceled right away while
// the store and webhook calls keep running in the background.
func (s *Service) Lookup(ctx context.Context, displayTerm string) (*Lookup, error) {
	if isBlank(displayTerm) {
		return nil, ErrEmptyTerm
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	canonical := Normalize(displayTerm)
	s.notify(displayTerm, StateLookingUp)

	workCtx := context.WithoutCancel(ctx)
	done := make(chan lookupOutcome, 1)
	go func() {
		lookup, err := s.run(workCtx, displayTerm, canonical)
		if err != nil {
			s.notify(displayTerm, StateFailed)
		} else {
			s.notify(displayTerm, StateSuccess)
		}
		s.notify(displayTerm, StateIdle)
		done <- lookupOutcome{lookup: lookup, err: err}
	}()

	select {
	case out := <-done:
		return out.lookup, out.err
	case <-ctx.Done():
		s.logger.Info("caller stopped waiting for lookup",
			zap.String("term", displayTerm),
			zap.Error(ctx.Err()))
		return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
}

func (s *Service) run(ctx context.Context, displayTerm, canonical string) (*Lookup, error) {
	if !s.coalesce {
		return s.resolve(ctx, displayTerm, canonical)
	}

	v, err, shared := s.flights.Do(canonical, func() (any, error) {
		return s.resolve(ctx, displayTerm, canonical)
	})
	if err != nil {
		return nil, err
	}

	lookup := *(v.(*Lookup))
	lookup.Term = displayTerm
	if shared {
		s.logger.Debug("joined in-flight lookup",
			zap.String("term", displayTerm),
			zap.String("canonical", canonical))
	}
	return &lookup, nil
}

// resolve is the cache-first policy: read, fall back to the webhook, fill.
func (s *Service) resolve(ctx context.Context, displayTerm, canonical string) (*Lookup, error) {
	logger := s.logger.With(
		zap.String("term", displayTerm),
		zap.String("canonical", canonical),
	)

	record, err := s.store.FindLatest(ctx, canonical)
	switch {
	case err == nil:
		result, decodeErr := DecodeResult([]byte(record.Payload))
		if decodeErr == nil {
			logger.Debug("cache hit", zap.String("record_id", record.ID.String()))
			return &Lookup{
				Term:      displayTerm,
				Canonical: canonical,
				Source:    SourceCache,
				Result:    result,
			}, nil
		}
		logger.Warn("discard undecodable cache record",
			zap.String("record_id", record.ID.String()),
			zap.Error(decodeErr))
	case errors.Is(err, ErrNotFound):
		logger.Debug("cache miss")
	default:
		logger.Warn("read cache, treat as miss", zap.Error(err))
	}

	result, err := s.fetcher.Fetch(ctx, displayTerm)
	if err != nil {
		if _, ok := AsError(err); !ok {
			err = NewError(ErrCodeFetch, "fetch recommendations", err)
		}
		logger.Warn("fetch recommendations", zap.Error(err))
		return nil, err
	}
	if result == nil {
		return nil, NewError(ErrCodeFetch, "webhook returned no result", nil)
	}

	// the cache fill never changes what the caller gets back
	if payload, encodeErr := EncodeResult(result); encodeErr != nil {
		logger.Error("encode fetched result, skip cache write", zap.Error(encodeErr))
	} else if insertErr := s.store.Insert(ctx, canonical, payload); insertErr != nil {
		logger.Warn("write cache record", zap.Error(insertErr))
	}

	logger.Info("fetched recommendations",
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Int("additional", len(result.AdditionalRecommendations)))
	return &Lookup{
		Term:      displayTerm,
		Canonical: canonical,
		Source:    SourceWebhook,
		Result:    result,
	}, nil
}

func (s *Service) notify(displayTerm string, state State) {
	if s.observer != nil {
		s.observer(displayTerm, state)
	}
}
