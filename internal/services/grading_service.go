package services

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ngbao12/GoPass-sub000/internal/models"
)

// PendingManualFeedback is attached to answers the engine cannot resolve.
const PendingManualFeedback = "Pending manual grading"

// GradeResult is the outcome of grading one answer.
type GradeResult struct {
	Score        float64 `json:"score"`
	IsAutoGraded bool    `json:"is_auto_graded"`
	Feedback     string  `json:"feedback"`
}

// AggregateResult sums a submission's answers.
type AggregateResult struct {
	TotalScore           float64 `json:"total_score"`
	PendingManualGrading int     `json:"pending_manual_grading"`
}

// Grade is the pure scoring function. It maps (question type, submitted
// payload, reference answer, max score) to a score with no side effects:
//
//   - multiple_choice: the single selected option id against the correct id,
//     case and whitespace insensitive, full score or zero
//   - true_false: map references earn linear partial credit per matching
//     sub-item; scalar references are all-or-nothing
//   - short_answer: trimmed case-folded exact match earns full score, any
//     mismatch defers to manual grading with zero
//   - essay: always deferred to manual grading with zero
//
// Scores are not rounded here; rounding happens once at aggregation.
func Grade(questionType models.QuestionType, submitted models.AnswerPayload, reference json.RawMessage, maxScore float64) (GradeResult, error) {
	switch questionType {
	case models.MultipleChoice:
		return gradeMultipleChoice(submitted, reference, maxScore)
	case models.TrueFalse:
		return gradeTrueFalse(submitted, reference, maxScore)
	case models.ShortAnswer:
		return gradeShortAnswer(submitted, reference, maxScore)
	case models.Essay:
		return GradeResult{Score: 0, IsAutoGraded: false, Feedback: PendingManualFeedback}, nil
	default:
		return GradeResult{}, fmt.Errorf("%w: %s", ErrUnknownQuestionType, questionType)
	}
}

// Aggregate sums per-answer scores into the submission total, rounding the
// sum to 2 decimal places. PendingManualGrading counts answers the engine
// deferred; it decides whether the submission lands on submitted or graded.
func Aggregate(results []GradeResult) AggregateResult {
	var total float64
	pending := 0
	for _, r := range results {
		total += r.Score
		if !r.IsAutoGraded {
			pending++
		}
	}
	return AggregateResult{
		TotalScore:           roundScore(total),
		PendingManualGrading: pending,
	}
}

// roundScore rounds to 2 decimal places.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
