package models

import (
	"time"
)

// Exam is the question container referenced by assignments. Exam CRUD lives
// outside this service; submissions only read it.
type Exam struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:255" validate:"required"`
	Description *string `json:"description" gorm:"type:text"`
	CreatedBy   string  `json:"created_by" gorm:"not null;index;size:255"`

	// DurationMinutes bounds one attempt; the assignment window bounds the
	// whole schedule
	DurationMinutes int `json:"duration_minutes" gorm:"not null;default:60" validate:"min=1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []ExamQuestion `json:"questions" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamAssignment schedules an exam for a group within a time window.
// Must not be edited in ways that retroactively invalidate existing
// submissions once attempts exist against it.
type ExamAssignment struct {
	ID      uint `json:"id" gorm:"primaryKey"`
	ExamID  uint `json:"exam_id" gorm:"not null;index"`
	GroupID uint `json:"group_id" gorm:"not null;index"`

	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`

	AllowLateSubmission bool `json:"allow_late_submission" gorm:"default:false"`
	MaxAttempts         int  `json:"max_attempts" gorm:"not null;default:1" validate:"min=1,max=10"`

	// Set when the assignment is part of a contest
	ContestID *uint `json:"contest_id" gorm:"index"`

	CreatedBy string    `json:"created_by" gorm:"not null;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Exam Exam `json:"exam" gorm:"foreignKey:ExamID"`
}

func (ExamAssignment) TableName() string {
	return "exam_assignments"
}

// GroupMember records class membership. Managed by the class service; this
// service only reads it for the membership precondition.
type GroupMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	GroupID   uint      `json:"group_id" gorm:"not null;uniqueIndex:idx_group_student"`
	StudentID string    `json:"student_id" gorm:"not null;uniqueIndex:idx_group_student;size:255"`
	JoinedAt  time.Time `json:"joined_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
