package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
	"github.com/sitskillbridge/skillbridge-backend/internal/upstream"
)

const maxAnalysisBody = 1 << 20

// AnalysisHandler proxies the AI analyses to the upstream backend.
type AnalysisHandler struct {
	analysis *service.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysis *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis}
}

// Run returns the handler for one analysis kind:
//
//	POST /api/career/match
//	POST /api/skill-gap/calculate
//	POST /api/swot/analyze
//	POST /api/roadmap/generate
func (h *AnalysisHandler) Run(kind model.AnalysisKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := middleware.GetSession(c)
		if session == nil {
			response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxAnalysisBody))
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}

		result, err := h.analysis.Run(c.Request.Context(), kind, session.CurrentUser().ID, body)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidPayload):
				response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			case errors.Is(err, service.ErrUnknownAnalysis):
				response.Fail(c, http.StatusNotFound, response.ErrUnknownAnalysis)
			case errors.Is(err, upstream.ErrUnavailable):
				response.Fail(c, http.StatusBadGateway, response.ErrUpstreamUnavailable)
			default:
				response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			}
			return
		}

		response.Success(c, http.StatusOK, result)
	}
}
