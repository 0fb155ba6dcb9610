package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSubmissionFinalized  EventType = "submission.finalized"
	EventContestScoreUpdated  EventType = "contest.score_updated"
	EventSubmissionGradedFull EventType = "submission.graded"
)

// SubmissionEvent is the envelope published to the event stream after a
// submission changes state.
type SubmissionEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	SubmissionID  uint    `json:"submission_id,omitempty"`
	AssignmentID  uint    `json:"assignment_id,omitempty"`
	ExamID        uint    `json:"exam_id,omitempty"`
	StudentID     string  `json:"student_id"`
	Status        string  `json:"status,omitempty"`
	TotalScore    float64 `json:"total_score,omitempty"`
	MaxScore      float64 `json:"max_score,omitempty"`
	PendingManual int     `json:"pending_manual,omitempty"`

	ContestID *uint `json:"contest_id,omitempty"`
}

// NewSubmissionEvent builds an event envelope with identity and timestamps
// filled in.
func NewSubmissionEvent(eventType EventType) *SubmissionEvent {
	return &SubmissionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "exam-session-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
	}
}
