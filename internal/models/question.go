package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// ExamQuestion is one slot of an exam. Read-only to the submission core: the
// grading path consumes its type, correct-answer payload and weight.
type ExamQuestion struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	ExamID uint         `json:"exam_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Order  int          `json:"order" gorm:"default:0"`

	// Weight of this question within the exam
	MaxScore float64 `json:"max_score" gorm:"not null;default:1" validate:"min=0"`

	// Content stored as JSONB for flexibility
	Content       datatypes.JSON `json:"content" gorm:"type:jsonb"`
	CorrectAnswer datatypes.JSON `json:"correct_answer" gorm:"type:jsonb"`

	Explanation *string   `json:"explanation" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// ===== QUESTION CONTENT SCHEMAS =====

// MultipleChoiceContent is the JSONB document for multiple_choice questions.
type MultipleChoiceContent struct {
	Options []MCOption `json:"options" validate:"required,min=2"`
}

type MCOption struct {
	ID        string `json:"id" validate:"required"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// TrueFalseAnswer is the correct-answer document for true_false questions.
// Either a single statement (Value) or a map of sub-item id to expected value.
type TrueFalseAnswer struct {
	Value    *bool           `json:"value,omitempty"`
	SubItems map[string]bool `json:"sub_items,omitempty"`
}

// ShortAnswerKey is the correct-answer document for short_answer questions.
type ShortAnswerKey struct {
	Text string `json:"text" validate:"required"`
}
