package services

import (
	"context"

	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/session"
	"gorm.io/datatypes"
)

// ===== REQUEST/RESPONSE DTOs =====

type StartExamRequest struct {
	AssignmentID uint `json:"assignment_id" validate:"required"`
}

type SaveAnswerRequest struct {
	QuestionID uint        `json:"question_id" validate:"required"`
	Answer     interface{} `json:"answer"`
}

type AutoSaveRequest struct {
	Answers              []SaveAnswerRequest `json:"answers" validate:"dive"`
	CurrentIndex         int                 `json:"current_index"`
	FlaggedQuestions     []uint              `json:"flagged_questions"`
	TimeRemainingSeconds *int                `json:"time_remaining_seconds"`
}

type SubmitExamRequest struct {
	Answers          []SaveAnswerRequest `json:"answers" validate:"dive"`
	TimeSpentSeconds int                 `json:"time_spent_seconds" validate:"min=0"`
}

// SubmissionResponse wraps a submission with derived flags for the client.
type SubmissionResponse struct {
	*models.ExamSubmission
	Resumed              bool `json:"resumed"`
	TimeRemainingSeconds int  `json:"time_remaining_seconds"`
	AttemptsRemaining    int  `json:"attempts_remaining"`
}

// FinalizeResult is returned by SubmitExam. Warnings carries secondary
// failures (contest accumulation, event publishing) that do not undo the
// grading transition.
type FinalizeResult struct {
	SubmissionID         uint                    `json:"submission_id"`
	Status               models.SubmissionStatus `json:"status"`
	TotalScore           float64                 `json:"total_score"`
	MaxScore             float64                 `json:"max_score"`
	GradedCount          int                     `json:"graded_count"`
	PendingManualGrading int                     `json:"pending_manual_grading"`
	IsLate               bool                    `json:"is_late"`
	Warnings             []string                `json:"warnings,omitempty"`
}

// QuestionReview is one row of the enriched review payload. CorrectAnswer is
// only populated once the submission is finalized.
type QuestionReview struct {
	QuestionID    uint                `json:"question_id"`
	Type          models.QuestionType `json:"type"`
	Text          string              `json:"text"`
	Content       datatypes.JSON      `json:"content"`
	MaxScore      float64             `json:"max_score"`
	Answer        *models.ExamAnswer  `json:"answer,omitempty"`
	CorrectAnswer datatypes.JSON      `json:"correct_answer,omitempty"`
}

type SubmissionDetail struct {
	Submission *models.ExamSubmission `json:"submission"`
	Questions  []QuestionReview       `json:"questions"`
}

type ManualGradeRequest struct {
	Score    float64 `json:"score" validate:"min=0"`
	Feedback *string `json:"feedback"`
}

type ResumeStateResponse struct {
	Snapshot      *session.ProgressSnapshot `json:"snapshot,omitempty"`
	TimeRemaining int                       `json:"time_remaining_seconds"`
	Expired       bool                      `json:"expired"`
	Discarded     bool                      `json:"discarded"`
}

// ===== SERVICE INTERFACES =====

// SubmissionService owns the exam-taking session lifecycle.
type SubmissionService interface {
	StartExam(ctx context.Context, assignmentID uint, studentID string) (*SubmissionResponse, error)
	SaveAnswer(ctx context.Context, submissionID uint, studentID string, req *SaveAnswerRequest) (*models.ExamAnswer, error)
	AutoSave(ctx context.Context, submissionID uint, studentID string, req *AutoSaveRequest) error
	SubmitExam(ctx context.Context, submissionID uint, studentID string, req *SubmitExamRequest) (*FinalizeResult, error)
	FinalizeExpired(ctx context.Context, submissionID uint) error
	GetSubmissionDetail(ctx context.Context, submissionID uint, studentID string) (*SubmissionDetail, error)
	GetMySubmissions(ctx context.Context, assignmentID uint, studentID string) ([]*models.ExamSubmission, error)
	ResumeState(ctx context.Context, assignmentID uint, studentID string) (*ResumeStateResponse, error)
}

// GradingService covers manual grading on top of the pure engine.
type GradingService interface {
	GradeAnswerManual(ctx context.Context, answerID uint, graderID string, req *ManualGradeRequest) error
	RecalculateSubmission(ctx context.Context, submissionID uint) (*FinalizeResult, error)
	SuggestEssayScore(ctx context.Context, answerID uint) (*EssaySuggestion, error)
}

// ContestService folds finalized exam scores into contest standings.
type ContestService interface {
	AddExamScore(ctx context.Context, contestID uint, studentID string, examID uint, score float64) error
	Standings(ctx context.Context, contestID uint, limit int) ([]*models.ContestStanding, error)
}

// ExportService renders teacher-facing result sheets.
type ExportService interface {
	ExportAssignmentResults(ctx context.Context, assignmentID uint) ([]byte, error)
}

// EssayScorer is the external AI scoring collaborator. Its output is a
// suggestion for human review only.
type EssayScorer interface {
	Score(ctx context.Context, answerText, prompt string) (float64, string, error)
}

type EssaySuggestion struct {
	AnswerID       uint    `json:"answer_id"`
	SuggestedScore float64 `json:"suggested_score"`
	Feedback       string  `json:"feedback"`
}

// ServiceManager provides access to all services with lifecycle management.
type ServiceManager interface {
	Submission() SubmissionService
	Grading() GradingService
	Contest() ContestService
	Export() ExportService

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
