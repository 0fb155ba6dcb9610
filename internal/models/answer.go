package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ExamAnswer is the single stored answer per (submission, question). Repeated
// autosaves replace this row, never duplicate it.
type ExamAnswer struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	SubmissionID uint `json:"submission_id" gorm:"not null;uniqueIndex:idx_submission_question"`
	QuestionID   uint `json:"question_id" gorm:"not null;uniqueIndex:idx_submission_question"`

	// Exactly one of these holds the payload, depending on its shape
	AnswerText      *string        `json:"answer_text" gorm:"type:text"`
	SelectedOptions datatypes.JSON `json:"selected_options" gorm:"type:jsonb"`

	// Grading. MaxScore is copied from the submission's frozen weight map,
	// never from the live question bank.
	Score            float64    `json:"score"`
	MaxScore         float64    `json:"max_score"`
	IsAutoGraded     bool       `json:"is_auto_graded"`
	IsManuallyGraded bool       `json:"is_manually_graded"`
	Feedback         *string    `json:"feedback" gorm:"type:text"`
	GradedBy         *string    `json:"graded_by" gorm:"size:255"`
	GradedAt         *time.Time `json:"graded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamAnswer) TableName() string {
	return "exam_answers"
}

// ===== ANSWER PAYLOAD =====

type PayloadKind string

const (
	PayloadText         PayloadKind = "text"
	PayloadSelection    PayloadKind = "selection"
	PayloadTrueFalseMap PayloadKind = "true_false_map"
)

// AnswerPayload is the tagged variant an incoming answer is resolved into at
// the API boundary. Downstream code switches on Kind instead of re-inspecting
// raw JSON shapes.
type AnswerPayload struct {
	Kind         PayloadKind       `json:"kind"`
	Text         string            `json:"text,omitempty"`
	Selection    []string          `json:"selection,omitempty"`
	TrueFalseMap map[string]string `json:"true_false_map,omitempty"`
}

// ResolveAnswerPayload normalizes a decoded JSON value into a tagged payload:
// scalars become Text, arrays become Selection, keyed maps become
// TrueFalseMap. Map and slice elements are stringified so the grading engine
// can compare "true", true and "TRUE" uniformly.
func ResolveAnswerPayload(raw interface{}) (AnswerPayload, error) {
	switch v := raw.(type) {
	case nil:
		return AnswerPayload{Kind: PayloadText}, nil
	case string:
		return AnswerPayload{Kind: PayloadText, Text: v}, nil
	case bool, float64, json.Number:
		return AnswerPayload{Kind: PayloadText, Text: stringify(v)}, nil
	case []interface{}:
		selection := make([]string, 0, len(v))
		for _, item := range v {
			selection = append(selection, stringify(item))
		}
		return AnswerPayload{Kind: PayloadSelection, Selection: selection}, nil
	case map[string]interface{}:
		entries := make(map[string]string, len(v))
		for key, item := range v {
			entries[key] = stringify(item)
		}
		return AnswerPayload{Kind: PayloadTrueFalseMap, TrueFalseMap: entries}, nil
	default:
		return AnswerPayload{}, fmt.Errorf("unsupported answer payload type %T", raw)
	}
}

// IsEmpty reports whether the payload carries no answer at all.
func (p AnswerPayload) IsEmpty() bool {
	switch p.Kind {
	case PayloadText:
		return p.Text == ""
	case PayloadSelection:
		return len(p.Selection) == 0
	case PayloadTrueFalseMap:
		return len(p.TrueFalseMap) == 0
	}
	return true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// JSON numbers decode as float64; integral values print without a
		// fractional part
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
