package nearby

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/reel-places/library/log"
)

// ErrEmptySession is returned when no session id is given.
var ErrEmptySession = errors.New("session id is empty")

// Result is the answer to a nearby request.
type Result struct {
	Places []Place
	// Cached is true when Places were reused from the session.
	Cached bool
}

// Service answers nearby requests per session.
type Service struct {
	finder Finder
	cache  SessionCache
	logger logSDK.Logger
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

// NewService constructs a Service.
func NewService(finder Finder, cache SessionCache, opts ...ServiceOption) (*Service, error) {
	if finder == nil {
		return nil, errors.New("finder is required")
	}
	if cache == nil {
		return nil, errors.New("session cache is required")
	}

	s := &Service{
		finder: finder,
		cache:  cache,
		logger: log.Logger.Named("nearby_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Nearby returns places around at for the session.
//
// Places found for the session are reused while it stays within ReuseRadiusKm
// of the coordinate it last asked about. Otherwise the new coordinate is
// remembered first, then the finder is queried. When the finder fails the
// session keeps its previous places.
func (s *Service) Nearby(ctx context.Context, sessionID string, at Coordinate) (*Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	if err := at.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid coordinate")
	}

	logger := s.logger.With(zap.String("session", sessionID))
	entry, err := s.cache.Get(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound):
		entry = &Entry{}
	default:
		logger.Warn("load nearby session, treat as new", zap.Error(err))
		entry = &Entry{}
	}

	if len(entry.Places) > 0 {
		moved := Distance(entry.Last, at)
		if moved < ReuseRadiusKm {
			logger.Debug("reuse nearby places", zap.Float64("moved_km", moved))
			return &Result{Places: entry.Places, Cached: true}, nil
		}
	}

	entry.Last = at
	if err = s.cache.Set(ctx, sessionID, *entry); err != nil {
		logger.Warn("save nearby coordinate", zap.Error(err))
	}

	places, err := s.finder.Find(ctx, at)
	if err != nil {
		return nil, errors.Wrap(err, "find nearby places")
	}

	entry.Places = places
	if err = s.cache.Set(ctx, sessionID, *entry); err != nil {
		logger.Warn("save nearby places", zap.Error(err))
	}

	logger.Info("found nearby places", zap.Int("count", len(places)))
	return &Result{Places: places}, nil
}

// Clear forgets the session, used on sign-out.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrEmptySession
	}
	if err := s.cache.Clear(ctx, sessionID); err != nil {
		return errors.Wrap(err, "clear nearby session")
	}
	return nil
}
