package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitskillbridge/skillbridge-backend/internal/github"
	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
	"github.com/sitskillbridge/skillbridge-backend/internal/validator"
)

// GitHubHandler handles repository scraping.
type GitHubHandler struct {
	github *service.GitHubService
}

// NewGitHubHandler creates a new GitHubHandler.
func NewGitHubHandler(github *service.GitHubService) *GitHubHandler {
	return &GitHubHandler{github: github}
}

// Scrape godoc
// POST /api/github/scrape
// Summarises a public repository. API failures yield a partial result.
func (h *GitHubHandler) Scrape(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GitHubScrapeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.github.Scrape(c.Request.Context(), session.CurrentUser().ID, req.URL)
	if err != nil {
		if errors.Is(err, github.ErrInvalidURL) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidRepoURL)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}
