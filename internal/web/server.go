// Package web serves the recommendation and nearby-places HTTP API.
package web

import (
	"context"
	"net/http"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/reel-places/internal/nearby"
	"github.com/Laisky/reel-places/internal/recommend"
	"github.com/Laisky/reel-places/library/log"
)

const shutdownTimeout = 10 * time.Second

// Recommender is what the recommendation handlers need.
type Recommender interface {
	Lookup(ctx context.Context, displayTerm string) (*recommend.Lookup, error)
}

// NearbyService is what the nearby handlers need.
type NearbyService interface {
	Nearby(ctx context.Context, sessionID string, at nearby.Coordinate) (*nearby.Result, error)
	Clear(ctx context.Context, sessionID string) error
}

// Server is the gin API server.
type Server struct {
	engine      *gin.Engine
	recommender Recommender
	nearby      NearbyService
	corsOrigins []string
	logger      logSDK.Logger
}

// Option customises a Server during construction.
type Option func(*Server)

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithNearby enables the nearby-places routes.
func WithNearby(svc NearbyService) Option {
	return func(s *Server) {
		s.nearby = svc
	}
}

// WithServerLogger overrides the request logger.
func WithServerLogger(logger logSDK.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer builds the router.
func NewServer(recommender Recommender, opts ...Option) (*Server, error) {
	if recommender == nil {
		return nil, errors.New("recommender is required")
	}

	s := &Server{
		recommender: recommender,
		logger:      log.Logger.Named("gin"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLogger(s.logger),
		),
		newCORS(s.corsOrigins),
	)
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	s.engine.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	api := s.engine.Group("/api")
	api.GET("/recommendations", s.getRecommendations)
	api.POST("/recommendations", s.postRecommendations)
	if s.nearby != nil {
		api.POST("/nearby", s.postNearby)
		api.DELETE("/nearby/:session", s.deleteNearby)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info("listening on http", zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server exit")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}

	log.Logger.Info("http server stopped")
	return nil
}
