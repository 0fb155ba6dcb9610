package session

import (
	"time"
)

// ProgressSnapshot mirrors the in-flight exam UI state for one (student,
// exam). Every write replaces the whole document; there is no partial merge.
type ProgressSnapshot struct {
	ExamID    uint   `json:"exam_id"`
	StudentID string `json:"student_id"`

	CurrentIndex         int                    `json:"current_index"`
	Answers              map[uint]interface{}   `json:"answers"`
	FlaggedQuestions     []uint                 `json:"flagged_questions"`
	TimeRemainingSeconds int                    `json:"time_remaining_seconds"`
	LastSaved            time.Time              `json:"last_saved"`
	Meta                 map[string]interface{} `json:"meta,omitempty"`
}

// IsFlagged reports whether a question is in the flagged set.
func (s *ProgressSnapshot) IsFlagged(questionID uint) bool {
	for _, id := range s.FlaggedQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}

// ToggleFlag adds or removes a question from the flagged set.
func (s *ProgressSnapshot) ToggleFlag(questionID uint) {
	for i, id := range s.FlaggedQuestions {
		if id == questionID {
			s.FlaggedQuestions = append(s.FlaggedQuestions[:i], s.FlaggedQuestions[i+1:]...)
			return
		}
	}
	s.FlaggedQuestions = append(s.FlaggedQuestions, questionID)
}
