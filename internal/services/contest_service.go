package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/events"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// contestService accumulates finalized exam scores into contest
// participations. Accumulation is idempotent per (contest, student, exam).
type contestService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	publisher events.EventPublisher
}

func NewContestService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher) ContestService {
	return &contestService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
	}
}

// AddExamScore folds a finalized exam score into the student's contest total.
// Calling it again for the same exam is a no-op, so finalize retries never
// double-count.
func (c *contestService) AddExamScore(ctx context.Context, contestID uint, studentID string, examID uint, score float64) error {
	participation, err := c.getOrCreateParticipation(ctx, contestID, studentID)
	if err != nil {
		return err
	}

	completed, err := decodeCompletedExams(participation.CompletedExams)
	if err != nil {
		return fmt.Errorf("failed to decode completed exams for participation %d: %w", participation.ID, err)
	}

	for _, id := range completed {
		if id == examID {
			c.logger.DebugContext(ctx, "Exam already counted for contest, skipping",
				"contest_id", contestID, "student_id", studentID, "exam_id", examID)
			return nil
		}
	}

	completed = append(completed, examID)
	encoded, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("failed to encode completed exams: %w", err)
	}

	participation.CompletedExams = datatypes.JSON(encoded)
	participation.TotalScore = roundScore(participation.TotalScore + score)

	err = c.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		return c.repo.Contest().Update(ctx, tx, participation)
	})
	if err != nil {
		return fmt.Errorf("failed to update contest participation: %w", err)
	}

	c.logger.InfoContext(ctx, "Contest score accumulated",
		"contest_id", contestID, "student_id", studentID,
		"exam_id", examID, "total_score", participation.TotalScore)

	c.publishScoreUpdated(ctx, contestID, studentID, examID, participation.TotalScore)
	return nil
}

func (c *contestService) Standings(ctx context.Context, contestID uint, limit int) ([]*models.ContestStanding, error) {
	standings, err := c.repo.Contest().Standings(ctx, contestID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest standings: %w", err)
	}
	return standings, nil
}

func (c *contestService) getOrCreateParticipation(ctx context.Context, contestID uint, studentID string) (*models.ContestParticipation, error) {
	participation, err := c.repo.Contest().GetParticipation(ctx, contestID, studentID)
	if err == nil {
		return participation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load contest participation: %w", err)
	}

	participation = &models.ContestParticipation{
		ContestID:      contestID,
		StudentID:      studentID,
		CompletedExams: datatypes.JSON([]byte("[]")),
		JoinedAt:       time.Now(),
	}
	if err := c.repo.Contest().CreateParticipation(ctx, participation); err != nil {
		// Lost a create race: another finalize registered the student first.
		existing, getErr := c.repo.Contest().GetParticipation(ctx, contestID, studentID)
		if getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create contest participation: %w", err)
	}
	return participation, nil
}

func (c *contestService) publishScoreUpdated(ctx context.Context, contestID uint, studentID string, examID uint, totalScore float64) {
	if c.publisher == nil {
		return
	}

	event := events.NewSubmissionEvent(events.EventContestScoreUpdated)
	event.StudentID = studentID
	event.ExamID = examID
	event.TotalScore = totalScore
	event.ContestID = &contestID

	if err := c.publisher.PublishSubmissionEvent(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish contest score event",
			"contest_id", contestID, "student_id", studentID, "error", err)
	}
}

func decodeCompletedExams(raw datatypes.JSON) ([]uint, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
