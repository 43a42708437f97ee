package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
)

// DocumentHandler exposes the caller's stored documents.
type DocumentHandler struct {
	docs *service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(docs *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// Get godoc
// GET /api/documents/:collection
func (h *DocumentHandler) Get(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	collection := model.Collection(c.Param("collection"))
	if !collection.Valid() {
		response.Fail(c, http.StatusNotFound, response.ErrUnknownCollection)
		return
	}

	doc, err := h.docs.Get(c.Request.Context(), collection, session.CurrentUser().ID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, doc)
}
