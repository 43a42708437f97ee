package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/resume"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
)

// ResumeHandler handles resume upload and retrieval.
type ResumeHandler struct {
	resumes *service.ResumeService
}

// NewResumeHandler creates a new ResumeHandler.
func NewResumeHandler(resumes *service.ResumeService) *ResumeHandler {
	return &ResumeHandler{resumes: resumes}
}

// Parse godoc
// POST /api/resume/parse
// Accepts a PDF or DOCX under the multipart key "resume" and returns the
// extracted skills, experience and projects.
func (h *ResumeHandler) Parse(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	header, err := c.FormFile("resume")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}

	result, err := h.resumes.ParseUpload(c.Request.Context(), session.CurrentUser().ID, header)
	if err != nil {
		switch {
		case errors.Is(err, resume.ErrUnsupportedType):
			response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		default:
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrResumeUnreadable)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Get godoc
// GET /api/resume
// Returns the caller's last parsed resume.
func (h *ResumeHandler) Get(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	doc, err := h.resumes.Get(c.Request.Context(), session.CurrentUser().ID)
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
