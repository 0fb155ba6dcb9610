package handlers

import (
	"fmt"
	"net/http"

	"github.com/ngbao12/GoPass-sub000/internal/services"
	"github.com/ngbao12/GoPass-sub000/internal/utils"
	"github.com/gin-gonic/gin"
)

type ContestHandler struct {
	BaseHandler
	contestService services.ContestService
	exportService  services.ExportService
}

func NewContestHandler(
	contestService services.ContestService,
	exportService services.ExportService,
	logger utils.Logger,
) *ContestHandler {
	return &ContestHandler{
		BaseHandler:    NewBaseHandler(logger),
		contestService: contestService,
		exportService:  exportService,
	}
}

// GetStandings returns the contest leaderboard
// @Summary Get contest standings
// @Description Returns the ranked leaderboard for a contest
// @Tags contests
// @Accept json
// @Produce json
// @Param id path uint true "Contest ID"
// @Param limit query int false "Max rows (default: 50)"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /contests/{id}/standings [get]
func (h *ContestHandler) GetStandings(c *gin.Context) {
	contestID := h.parseIDParam(c, "id")
	if contestID == 0 {
		return
	}

	limit := h.parseIntQuery(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	standings, err := h.contestService.Standings(c.Request.Context(), contestID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contest_id": contestID,
		"standings":  standings,
		"total":      len(standings),
	})
}

// ExportResults streams an xlsx result sheet for an assignment
// @Summary Export assignment results
// @Description Exports all submissions for an assignment as an Excel file
// @Tags assignments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param assignment_id path uint true "Assignment ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /assignments/{assignment_id}/export [get]
func (h *ContestHandler) ExportResults(c *gin.Context) {
	assignmentID := h.parseIDParam(c, "assignment_id")
	if assignmentID == 0 {
		return
	}

	h.LogRequest(c, "Exporting assignment results", "assignment_id", assignmentID)

	data, err := h.exportService.ExportAssignmentResults(c.Request.Context(), assignmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("assignment_%d_results.xlsx", assignmentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
