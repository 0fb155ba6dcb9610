package handlers

import (
	"net/http"

	"github.com/ngbao12/GoPass-sub000/internal/services"
	"github.com/ngbao12/GoPass-sub000/internal/utils"
	"github.com/ngbao12/GoPass-sub000/internal/validator"
	"github.com/gin-gonic/gin"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	validator      *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		validator:      validator,
	}
}

// GradeAnswer applies a manual grade to an answer
// @Summary Grade answer manually
// @Description Records a grader's score for an answer pending manual review
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Answer ID"
// @Param grade body services.ManualGradeRequest true "Grade data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /grading/answers/{id} [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	answerID := h.parseIDParam(c, "id")
	if answerID == 0 {
		return
	}

	h.LogRequest(c, "Grading answer manually", "answer_id", answerID)

	var req services.ManualGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	graderID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.gradingService.GradeAnswerManual(c.Request.Context(), answerID, graderID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Answer graded successfully",
	})
}

// RecalculateSubmission re-derives the total score and status of a submission
// @Summary Recalculate submission
// @Description Re-sums answer scores and promotes the submission to graded when nothing is pending
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} services.FinalizeResult
// @Failure 404 {object} ErrorResponse
// @Router /grading/submissions/{id}/recalculate [post]
func (h *GradingHandler) RecalculateSubmission(c *gin.Context) {
	submissionID := h.parseIDParam(c, "id")
	if submissionID == 0 {
		return
	}

	result, err := h.gradingService.RecalculateSubmission(c.Request.Context(), submissionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SuggestEssayScore returns an advisory score for an essay answer
// @Summary Suggest essay score
// @Description Returns a suggested score for an essay answer; never writes the grade
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Answer ID"
// @Success 200 {object} services.EssaySuggestion
// @Failure 404 {object} ErrorResponse
// @Router /grading/answers/{id}/suggest [get]
func (h *GradingHandler) SuggestEssayScore(c *gin.Context) {
	answerID := h.parseIDParam(c, "id")
	if answerID == 0 {
		return
	}

	suggestion, err := h.gradingService.SuggestEssayScore(c.Request.Context(), answerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, suggestion)
}
