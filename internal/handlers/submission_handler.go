package handlers

import (
	"net/http"

	"github.com/ngbao12/GoPass-sub000/internal/services"
	"github.com/ngbao12/GoPass-sub000/internal/utils"
	"github.com/ngbao12/GoPass-sub000/internal/validator"
	"github.com/gin-gonic/gin"
)

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
	validator         *validator.Validator
}

func NewSubmissionHandler(
	submissionService services.SubmissionService,
	validator *validator.Validator,
	logger utils.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
		validator:         validator,
	}
}

// StartExam starts a new exam session or resumes the existing one
// @Summary Start exam session
// @Description Starts a new submission for an assignment, or returns the existing in_progress one
// @Tags submissions
// @Accept json
// @Produce json
// @Param request body services.StartExamRequest true "Start exam data"
// @Success 201 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /submissions/start [post]
func (h *SubmissionHandler) StartExam(c *gin.Context) {
	h.LogRequest(c, "Starting exam session")

	var req services.StartExamRequest
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

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.StartExam(c.Request.Context(), req.AssignmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if submission.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, submission)
}

// SaveAnswer saves a single answer
// @Summary Save answer
// @Description Saves or replaces the answer for one question
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Param answer body services.SaveAnswerRequest true "Answer data"
// @Success 200 {object} models.ExamAnswer
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /submissions/{id}/answers [put]
func (h *SubmissionHandler) SaveAnswer(c *gin.Context) {
	submissionID := h.parseIDParam(c, "id")
	if submissionID == 0 {
		return
	}

	var req services.SaveAnswerRequest
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

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	answer, err := h.submissionService.SaveAnswer(c.Request.Context(), submissionID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, answer)
}

// AutoSave persists a progress snapshot with a batch of answers
// @Summary Auto-save progress
// @Description Saves answers plus navigation state for session recovery
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Param progress body services.AutoSaveRequest true "Progress data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /submissions/{id}/autosave [post]
func (h *SubmissionHandler) AutoSave(c *gin.Context) {
	submissionID := h.parseIDParam(c, "id")
	if submissionID == 0 {
		return
	}

	var req services.AutoSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.submissionService.AutoSave(c.Request.Context(), submissionID, userID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Progress saved",
	})
}

// SubmitExam finalizes a submission and grades it
// @Summary Submit exam
// @Description Finalizes the submission, runs auto-grading and returns the result
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Param submission body services.SubmitExamRequest true "Final answers"
// @Success 200 {object} services.FinalizeResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /submissions/{id}/submit [post]
func (h *SubmissionHandler) SubmitExam(c *gin.Context) {
	submissionID := h.parseIDParam(c, "id")
	if submissionID == 0 {
		return
	}

	h.LogRequest(c, "Submitting exam", "submission_id", submissionID)

	var req services.SubmitExamRequest
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

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.submissionService.SubmitExam(c.Request.Context(), submissionID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSubmission retrieves a submission with its questions and answers
// @Summary Get submission detail
// @Description Retrieves a submission with per-question review rows
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} services.SubmissionDetail
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	submissionID := h.parseIDParam(c, "id")
	if submissionID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	detail, err := h.submissionService.GetSubmissionDetail(c.Request.Context(), submissionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetMySubmissions lists the caller's submissions for an assignment
// @Summary List my submissions
// @Description Lists the authenticated student's submissions for an assignment
// @Tags submissions
// @Accept json
// @Produce json
// @Param assignment_id path uint true "Assignment ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /assignments/{assignment_id}/my-submissions [get]
func (h *SubmissionHandler) GetMySubmissions(c *gin.Context) {
	assignmentID := h.parseIDParam(c, "assignment_id")
	if assignmentID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	submissions, err := h.submissionService.GetMySubmissions(c.Request.Context(), assignmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions": submissions,
		"total":       len(submissions),
	})
}

// ResumeState reconciles the saved client snapshot against the server clock
// @Summary Get resume state
// @Description Returns the saved progress snapshot with reconciled remaining time
// @Tags submissions
// @Accept json
// @Produce json
// @Param assignment_id path uint true "Assignment ID"
// @Success 200 {object} services.ResumeStateResponse
// @Failure 404 {object} ErrorResponse
// @Router /assignments/{assignment_id}/resume-state [get]
func (h *SubmissionHandler) ResumeState(c *gin.Context) {
	assignmentID := h.parseIDParam(c, "assignment_id")
	if assignmentID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	state, err := h.submissionService.ResumeState(c.Request.Context(), assignmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}
