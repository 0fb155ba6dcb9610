package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionSubmitted  SubmissionStatus = "submitted"
	SubmissionGraded     SubmissionStatus = "graded"
	SubmissionLate       SubmissionStatus = "late"
)

// IsFinalized reports whether the submission left in_progress. No transition
// leads back.
func (s SubmissionStatus) IsFinalized() bool {
	return s != SubmissionInProgress
}

// ExamSubmission is one attempt of a student at an assignment.
//
// At most one in_progress submission exists per (assignment, student).
// AttemptNumber is 1-based and never exceeds the assignment's MaxAttempts.
type ExamSubmission struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	AssignmentID uint   `json:"assignment_id" gorm:"not null;index:idx_assignment_student"`
	ExamID       uint   `json:"exam_id" gorm:"not null;index"`
	StudentID    string `json:"student_id" gorm:"not null;index:idx_assignment_student;size:255"`

	Status        SubmissionStatus `json:"status" gorm:"default:in_progress;index"`
	AttemptNumber int              `json:"attempt_number" gorm:"not null"`

	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	// Wall-clock seconds the client reports having spent, informational only
	TimeSpentSeconds int `json:"time_spent_seconds"`

	// Scoring. MaxScore and QuestionWeights are computed once at creation from
	// the exam's per-question weights and never re-read from the live exam.
	TotalScore      float64        `json:"total_score"`
	MaxScore        float64        `json:"max_score"`
	QuestionWeights datatypes.JSON `json:"question_weights" gorm:"type:jsonb"` // map[questionID]weight
	IsLate          bool           `json:"is_late" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assignment ExamAssignment `json:"assignment" gorm:"foreignKey:AssignmentID"`
	Answers    []ExamAnswer   `json:"answers" gorm:"foreignKey:SubmissionID"`
}

func (ExamSubmission) TableName() string {
	return "exam_submissions"
}
