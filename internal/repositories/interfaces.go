package repositories

import (
	"context"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type SubmissionFilters struct {
	Status    *models.SubmissionStatus `json:"status"`
	StudentID *string                  `json:"student_id"`
	DateFrom  *time.Time               `json:"date_from"`
	DateTo    *time.Time               `json:"date_to"`
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
	SortBy    string                   `json:"sort_by"`    // "created_at", "submitted_at", "total_score"
	SortOrder string                   `json:"sort_order"` // "asc", "desc"
}

// ===== SHARED HELPER STRUCTS =====

// SubmissionFinal carries the values written by the atomic finalize
// transition.
type SubmissionFinal struct {
	Status           models.SubmissionStatus `json:"status"`
	TotalScore       float64                 `json:"total_score"`
	SubmittedAt      time.Time               `json:"submitted_at"`
	IsLate           bool                    `json:"is_late"`
	TimeSpentSeconds int                     `json:"time_spent_seconds"`
}

// AnswerGrade carries a manual grade for a single answer.
type AnswerGrade struct {
	AnswerID uint    `json:"answer_id"`
	Score    float64 `json:"score"`
	Feedback *string `json:"feedback"`
	GraderID string  `json:"grader_id"`
}

// ===== REPOSITORY INTERFACES =====

// AssignmentRepository reads exam assignments and the exams they schedule.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.ExamAssignment, error)
	GetWithExam(ctx context.Context, id uint) (*models.ExamAssignment, error)
}

// QuestionRepository is the read-only question reference used by grading.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.ExamQuestion, error)
	GetByExam(ctx context.Context, examID uint) ([]*models.ExamQuestion, error)
}

// MembershipRepository answers the group membership precondition.
type MembershipRepository interface {
	IsMember(ctx context.Context, groupID uint, studentID string) (bool, error)
}

// SubmissionRepository owns the submission lifecycle rows.
type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.ExamSubmission) error
	GetByID(ctx context.Context, id uint) (*models.ExamSubmission, error)
	GetWithAnswers(ctx context.Context, id uint) (*models.ExamSubmission, error)
	GetInProgress(ctx context.Context, assignmentID uint, studentID string) (*models.ExamSubmission, error)
	CountByStudent(ctx context.Context, assignmentID uint, studentID string) (int64, error)
	List(ctx context.Context, assignmentID uint, filters SubmissionFilters) ([]*models.ExamSubmission, int64, error)

	// FinalizeInProgress performs the conditional transition out of
	// in_progress. Returns false when the row was not in_progress anymore, so
	// concurrent finalize calls resolve to exactly one winner.
	FinalizeInProgress(ctx context.Context, tx *gorm.DB, id uint, final SubmissionFinal) (bool, error)

	// UpdateStatus moves submitted -> graded after manual grading completes.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.SubmissionStatus, totalScore float64) error

	// ListOverdue returns in_progress submissions whose assignment window has
	// closed, for the timeout sweeper.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.ExamSubmission, error)
}

// AnswerRepository stores exactly one answer per (submission, question).
type AnswerRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.ExamAnswer) (*models.ExamAnswer, error)
	GetBySubmission(ctx context.Context, submissionID uint) ([]*models.ExamAnswer, error)
	GetBySubmissionAndQuestion(ctx context.Context, submissionID, questionID uint) (*models.ExamAnswer, error)
	GetByID(ctx context.Context, id uint) (*models.ExamAnswer, error)
	UpdateGrades(ctx context.Context, tx *gorm.DB, answers []*models.ExamAnswer) error
	ApplyManualGrade(ctx context.Context, tx *gorm.DB, grade AnswerGrade) error
	CountPendingManual(ctx context.Context, submissionID uint) (int64, error)
}

// ContestRepository tracks contest participations and standings.
type ContestRepository interface {
	GetParticipation(ctx context.Context, contestID uint, studentID string) (*models.ContestParticipation, error)
	CreateParticipation(ctx context.Context, participation *models.ContestParticipation) error
	Update(ctx context.Context, tx *gorm.DB, participation *models.ContestParticipation) error
	Standings(ctx context.Context, contestID uint, limit int) ([]*models.ContestStanding, error)
}

// Repository aggregates all sub-repositories.
type Repository interface {
	Assignment() AssignmentRepository
	Question() QuestionRepository
	Membership() MembershipRepository
	Submission() SubmissionRepository
	Answer() AnswerRepository
	Contest() ContestRepository

	// User domain (read-only, backed by the identity provider)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}
