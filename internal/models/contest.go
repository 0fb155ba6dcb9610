package models

import (
	"time"

	"gorm.io/datatypes"
)

// ContestParticipation tracks a student's running score across the exams of a
// contest. CompletedExams is the idempotency guard for score accumulation: an
// exam already in the set is never counted twice.
type ContestParticipation struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ContestID uint   `json:"contest_id" gorm:"not null;uniqueIndex:idx_contest_student"`
	StudentID string `json:"student_id" gorm:"not null;uniqueIndex:idx_contest_student;size:255"`

	TotalScore     float64        `json:"total_score" gorm:"default:0"`
	CompletedExams datatypes.JSON `json:"completed_exams" gorm:"type:jsonb"` // []uint exam IDs

	Rank       int     `json:"rank" gorm:"default:0"`
	Percentile float64 `json:"percentile" gorm:"default:0"`

	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ContestParticipation) TableName() string {
	return "contest_participations"
}

// ContestStanding is a leaderboard row, computed on read.
type ContestStanding struct {
	Rank       int     `json:"rank"`
	StudentID  string  `json:"student_id"`
	TotalScore float64 `json:"total_score"`
	Completed  int     `json:"completed"`
}
