package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ngbao12/GoPass-sub000/internal/events"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"gorm.io/gorm"
)

// manualGradingService applies teacher grades to answers the automatic pass
// left pending, and promotes submissions to graded once nothing is pending.
type manualGradingService struct {
	repo        repositories.Repository
	logger      *slog.Logger
	publisher   events.EventPublisher
	essayScorer EssayScorer
}

func NewManualGradingService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher, essayScorer EssayScorer) GradingService {
	return &manualGradingService{
		repo:        repo,
		logger:      logger,
		publisher:   publisher,
		essayScorer: essayScorer,
	}
}

// GradeAnswerManual records a grader's score for one answer. The submission
// total and status are recalculated afterwards.
func (m *manualGradingService) GradeAnswerManual(ctx context.Context, answerID uint, graderID string, req *ManualGradeRequest) error {
	answer, err := m.repo.Answer().GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to load answer: %w", err)
	}

	if answer.IsAutoGraded {
		return fmt.Errorf("%w: answer %d was auto-graded", ErrGradingNotManual, answerID)
	}
	if req.Score < 0 || req.Score > answer.MaxScore {
		return fmt.Errorf("%w: score %.2f outside [0, %.2f]", ErrInvalidScore, req.Score, answer.MaxScore)
	}

	submission, err := m.repo.Submission().GetByID(ctx, answer.SubmissionID)
	if err != nil {
		return fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.Status == models.SubmissionInProgress {
		return fmt.Errorf("%w: submission %d is still in progress", ErrSubmissionFinalized, submission.ID)
	}

	grade := repositories.AnswerGrade{
		AnswerID: answerID,
		Score:    roundScore(req.Score),
		Feedback: req.Feedback,
		GraderID: graderID,
	}

	err = m.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		return m.repo.Answer().ApplyManualGrade(ctx, tx, grade)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to apply manual grade: %w", err)
	}

	m.logger.InfoContext(ctx, "Manual grade applied",
		"answer_id", answerID, "grader_id", graderID, "score", grade.Score)

	if _, err := m.RecalculateSubmission(ctx, answer.SubmissionID); err != nil {
		return fmt.Errorf("grade applied but recalculation failed: %w", err)
	}
	return nil
}

// RecalculateSubmission re-sums the answer scores for a finalized submission
// and promotes it to graded when no answers remain pending manual review.
func (m *manualGradingService) RecalculateSubmission(ctx context.Context, submissionID uint) (*FinalizeResult, error) {
	submission, err := m.repo.Submission().GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.Status == models.SubmissionInProgress {
		return nil, fmt.Errorf("%w: submission %d not finalized yet", ErrSubmissionFinalized, submissionID)
	}

	answers, err := m.repo.Answer().GetBySubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}

	var total float64
	gradedCount := 0
	for _, answer := range answers {
		total += answer.Score
		if answer.IsAutoGraded || answer.IsManuallyGraded {
			gradedCount++
		}
	}
	total = roundScore(total)

	pending, err := m.repo.Answer().CountPendingManual(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending answers: %w", err)
	}

	status := models.SubmissionSubmitted
	if pending == 0 {
		status = models.SubmissionGraded
	}

	err = m.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		return m.repo.Submission().UpdateStatus(ctx, tx, submissionID, status, total)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update submission status: %w", err)
	}

	result := &FinalizeResult{
		SubmissionID:         submissionID,
		Status:               status,
		TotalScore:           total,
		MaxScore:             submission.MaxScore,
		GradedCount:          gradedCount,
		PendingManualGrading: int(pending),
		IsLate:               submission.IsLate,
	}

	if status == models.SubmissionGraded && submission.Status != models.SubmissionGraded {
		m.publishGraded(ctx, submission, total)
	}
	return result, nil
}

// SuggestEssayScore asks the external scorer for a suggested grade. The
// suggestion is advisory; it never writes to the answer row.
func (m *manualGradingService) SuggestEssayScore(ctx context.Context, answerID uint) (*EssaySuggestion, error) {
	answer, err := m.repo.Answer().GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to load answer: %w", err)
	}
	if answer.AnswerText == nil || *answer.AnswerText == "" {
		return &EssaySuggestion{AnswerID: answerID, SuggestedScore: 0, Feedback: "No answer text to score"}, nil
	}

	question, err := m.repo.Question().GetByID(ctx, answer.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}

	if m.essayScorer != nil {
		score, feedback, err := m.essayScorer.Score(ctx, *answer.AnswerText, question.Text)
		if err == nil {
			if score > answer.MaxScore {
				score = answer.MaxScore
			}
			return &EssaySuggestion{
				AnswerID:       answerID,
				SuggestedScore: roundScore(score),
				Feedback:       feedback,
			}, nil
		}
		m.logger.WarnContext(ctx, "Essay scorer unavailable, falling back to similarity hint",
			"answer_id", answerID, "error", err)
	}

	// Fallback: similarity against the model answer, scaled to max score.
	reference, err := parseShortAnswerKey(json.RawMessage(question.CorrectAnswer))
	if err != nil || reference == "" {
		return &EssaySuggestion{AnswerID: answerID, SuggestedScore: 0,
			Feedback: "No model answer available for comparison"}, nil
	}

	similarity := calculateStringSimilarity(*answer.AnswerText, reference)
	return &EssaySuggestion{
		AnswerID:       answerID,
		SuggestedScore: roundScore(similarity * answer.MaxScore),
		Feedback:       fmt.Sprintf("Similarity to model answer: %.0f%%", similarity*100),
	}, nil
}

func (m *manualGradingService) publishGraded(ctx context.Context, submission *models.ExamSubmission, total float64) {
	if m.publisher == nil {
		return
	}

	event := events.NewSubmissionEvent(events.EventSubmissionGradedFull)
	event.SubmissionID = submission.ID
	event.AssignmentID = submission.AssignmentID
	event.ExamID = submission.ExamID
	event.StudentID = submission.StudentID
	event.Status = string(models.SubmissionGraded)
	event.TotalScore = total
	event.MaxScore = submission.MaxScore

	if err := m.publisher.PublishSubmissionEvent(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish submission graded event",
			"submission_id", submission.ID, "error", err)
	}
}
