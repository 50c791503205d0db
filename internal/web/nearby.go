package web

import (
	"net/http"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/reel-places/internal/nearby"
)

type nearbyRequest struct {
	Session   string   `json:"session"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type nearbyResponse struct {
	Nearby []nearby.Place `json:"nearby"`
	Cached bool           `json:"cached"`
}

func (s *Server) postNearby(ctx *gin.Context) {
	req := new(nearbyRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, errors.Wrap(err, "parse body"))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		abortWithError(ctx, http.StatusBadRequest, errors.New("latitude and longitude are required"))
		return
	}

	at := nearby.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	got, err := s.nearby.Nearby(ctx.Request.Context(), req.Session, at)
	if err != nil {
		if errors.Is(err, nearby.ErrEmptySession) || at.Validate() != nil {
			abortWithError(ctx, http.StatusBadRequest, err)
			return
		}

		gmw.GetLogger(ctx).Warn("find nearby places",
			zap.String("session", req.Session), zap.Error(err))
		abortWithError(ctx, http.StatusBadGateway, err)
		return
	}

	places := got.Places
	if places == nil {
		places = []nearby.Place{}
	}
	ctx.JSON(http.StatusOK, nearbyResponse{Nearby: places, Cached: got.Cached})
}

func (s *Server) deleteNearby(ctx *gin.Context) {
	if err := s.nearby.Clear(ctx.Request.Context(), ctx.Param("session")); err != nil {
		if errors.Is(err, nearby.ErrEmptySession) {
			abortWithError(ctx, http.StatusBadRequest, err)
			return
		}

		gmw.GetLogger(ctx).Error("clear nearby session", zap.Error(err))
		abortWithError(ctx, http.StatusInternalServerError, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
