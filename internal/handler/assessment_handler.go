package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/assessment"
	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
	"github.com/sitskillbridge/skillbridge-backend/internal/upstream"
	"github.com/sitskillbridge/skillbridge-backend/internal/validator"
)

// AssessmentHandler serves the REST side of skill assessments.
type AssessmentHandler struct {
	assessments *service.AssessmentService
	log         zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessments *service.AssessmentService, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		log:         log.With().Str("component", "assessment_handler").Logger(),
	}
}

// GetUserTest godoc
// GET /api/mcq/user-test?domain=&skills=
// Fetches a personalised question set and makes it the caller's active test.
// Answers are never included.
func (h *AssessmentHandler) GetUserTest(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var query model.UserTestQuery
	if fields := validator.BindQuery(c, &query); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	query.Skills = splitSkills(c.QueryArray("skills"))

	userID := session.CurrentUser().ID
	test, err := h.assessments.LoadTest(c.Request.Context(), userID, query.Domain, query.Skills)
	if err != nil {
		if questionsUnavailable(err) {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("Question set unavailable")
			response.Fail(c, http.StatusBadGateway, response.ErrQuestionsUnavailable)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"domain":    test.Domain,
		"skills":    test.Skills,
		"questions": test.Public(),
	})
}

// GetActiveTest godoc
// GET /api/mcq/active
// Returns the caller's active test and autosaved answers, for resuming.
func (h *AssessmentHandler) GetActiveTest(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ctx := c.Request.Context()
	userID := session.CurrentUser().ID
	test, err := h.assessments.ActiveTest(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveTest) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveTest)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	answers, err := h.assessments.SavedAnswers(ctx, userID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"domain":    test.Domain,
		"skills":    test.Skills,
		"questions": test.Public(),
		"answers":   answers,
	})
}

// Submit godoc
// POST /api/mcq/submit
// Grades a complete answer set against the active test.
func (h *AssessmentHandler) Submit(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.assessments.SubmitAnswers(c.Request.Context(), session.CurrentUser().ID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveTest):
			response.Fail(c, http.StatusConflict, response.ErrNoActiveTest)
		case errors.Is(err, assessment.ErrIndexOutOfRange), errors.Is(err, assessment.ErrUnknownOption):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswer)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

func questionsUnavailable(err error) bool {
	return errors.Is(err, upstream.ErrUnavailable) ||
		errors.Is(err, upstream.ErrEmptyQuestionSet) ||
		errors.Is(err, service.ErrInvalidQuestionSet)
}

// splitSkills accepts both ?skills=a,b and ?skills=a&skills=b.
func splitSkills(values []string) []string {
	skills := []string{}
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
	}
	return skills
}
