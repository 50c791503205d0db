package web

import (
	"net/http"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/reel-places/internal/recommend"
)

// statusClientClosedRequest is the nginx convention for a client that hung up.
const statusClientClosedRequest = 499

type recommendationRequest struct {
	Term string `json:"term" form:"term"`
	Type string `json:"type" form:"type"`
}

type recommendationResponse struct {
	Term                      string                     `json:"term"`
	Canonical                 string                     `json:"canonical"`
	Source                    recommend.Source           `json:"source"`
	BannerURL                 string                     `json:"bannerUrl,omitempty"`
	Recommendations           []recommend.Recommendation `json:"recommendations"`
	AdditionalRecommendations []recommend.Recommendation `json:"additionalRecommendations"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

func (s *Server) getRecommendations(ctx *gin.Context) {
	req := new(recommendationRequest)
	if err := ctx.ShouldBindQuery(req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, errors.Wrap(err, "parse query"))
		return
	}
	s.lookup(ctx, req)
}

func (s *Server) postRecommendations(ctx *gin.Context) {
	req := new(recommendationRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, errors.Wrap(err, "parse body"))
		return
	}
	s.lookup(ctx, req)
}

func (s *Server) lookup(ctx *gin.Context, req *recommendationRequest) {
	logger := gmw.GetLogger(ctx)

	got, err := s.recommender.Lookup(ctx.Request.Context(), req.Term)
	if err != nil {
		status := lookupStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Warn("lookup recommendations", zap.String("term", req.Term), zap.Error(err))
		}
		abortWithError(ctx, status, err)
		return
	}

	result := recommend.ParseMediaFilter(req.Type).Apply(got.Result)
	ctx.JSON(http.StatusOK, recommendationResponse{
		Term:                      got.Term,
		Canonical:                 got.Canonical,
		Source:                    got.Source,
		BannerURL:                 result.BannerURL,
		Recommendations:           result.Recommendations,
		AdditionalRecommendations: result.AdditionalRecommendations,
	})
}

func lookupStatus(err error) int {
	switch {
	case errors.Is(err, recommend.ErrEmptyTerm):
		return http.StatusBadRequest
	case errors.Is(err, recommend.ErrCanceled):
		return statusClientClosedRequest
	case recommend.IsCode(err, recommend.ErrCodeFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(ctx *gin.Context, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	if typed, ok := recommend.AsError(err); ok {
		resp.Code = string(typed.Code)
		resp.Retryable = typed.Retryable()
	}
	ctx.AbortWithStatusJSON(status, resp)
}
