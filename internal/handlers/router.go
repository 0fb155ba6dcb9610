package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ngbao12/GoPass-sub000/internal/config"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/ngbao12/GoPass-sub000/internal/services"
	"github.com/ngbao12/GoPass-sub000/internal/utils"
	"github.com/ngbao12/GoPass-sub000/internal/validator"
)

type HandlerManager struct {
	submissionHandler *SubmissionHandler
	gradingHandler    *GradingHandler
	contestHandler    *ContestHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), validator, logger),
		gradingHandler:    NewGradingHandler(serviceManager.Grading(), validator, logger),
		contestHandler:    NewContestHandler(serviceManager.Contest(), serviceManager.Export(), logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam session routes - the student-facing lifecycle
		submissions := v1.Group("/submissions")
		{
			submissions.POST("/start", hm.submissionHandler.StartExam)
			submissions.GET("/:id", hm.submissionHandler.GetSubmission)
			submissions.PUT("/:id/answers", hm.submissionHandler.SaveAnswer)
			submissions.POST("/:id/autosave", hm.submissionHandler.AutoSave)
			submissions.POST("/:id/submit", hm.submissionHandler.SubmitExam)
		}

		// Assignment-scoped student views
		assignments := v1.Group("/assignments")
		{
			assignments.GET("/:assignment_id/my-submissions", hm.submissionHandler.GetMySubmissions)
			assignments.GET("/:assignment_id/resume-state", hm.submissionHandler.ResumeState)

			// Result export - Teachers and Admins only
			assignments.GET("/:assignment_id/export",
				hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin),
				hm.contestHandler.ExportResults)
		}

		// Grading routes - Teachers and Admins only
		grading := v1.Group("/grading")
		grading.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			grading.POST("/answers/:id", hm.gradingHandler.GradeAnswer)
			grading.GET("/answers/:id/suggest", hm.gradingHandler.SuggestEssayScore)
			grading.POST("/submissions/:id/recalculate", hm.gradingHandler.RecalculateSubmission)
		}

		// Contest routes
		contests := v1.Group("/contests")
		{
			contests.GET("/:id/standings", hm.contestHandler.GetStandings)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-session-service",
		})
	})
}
