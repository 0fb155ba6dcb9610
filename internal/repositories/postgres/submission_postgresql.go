package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/cache"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewSubmissionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.ExamSubmission) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.ID, submission.AssignmentID, submission.StudentID)
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ExamSubmission, error) {
	cacheKey := fmt.Sprintf("submission:id:%d", id)
	var submission models.ExamSubmission

	err := s.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &submission, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbSubmission models.ExamSubmission
		if err := s.db.WithContext(ctx).First(&dbSubmission, id).Error; err != nil {
			return nil, err
		}
		return &dbSubmission, nil
	})

	return &submission, err
}

func (s *SubmissionPostgreSQL) GetWithAnswers(ctx context.Context, id uint) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := s.db.WithContext(ctx).
		Preload("Answers").
		Preload("Assignment").
		First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetInProgress(ctx context.Context, assignmentID uint, studentID string) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	err := s.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ? AND status = ?",
			assignmentID, studentID, models.SubmissionInProgress).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get in-progress submission: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) CountByStudent(ctx context.Context, assignmentID uint, studentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Count(&count).Error
	return count, err
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, assignmentID uint, filters repositories.SubmissionFilters) ([]*models.ExamSubmission, int64, error) {
	var submissions []*models.ExamSubmission
	var total int64

	query := s.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("assignment_id = ?", assignmentID)
	query = s.helpers.ApplySubmissionFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query = s.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	return submissions, total, nil
}

// FinalizeInProgress transitions the row out of in_progress with a single
// conditional UPDATE. RowsAffected decides the winner when two finalize calls
// race; the loser sees false and must not touch score state.
func (s *SubmissionPostgreSQL) FinalizeInProgress(ctx context.Context, tx *gorm.DB, id uint, final repositories.SubmissionFinal) (bool, error) {
	db := s.getDB(tx)

	result := db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("id = ? AND status = ?", id, models.SubmissionInProgress).
		Updates(map[string]interface{}{
			"status":             final.Status,
			"total_score":        final.TotalScore,
			"submitted_at":       final.SubmittedAt,
			"is_late":            final.IsLate,
			"time_spent_seconds": final.TimeSpentSeconds,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to finalize submission: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return false, nil
	}

	s.invalidateByID(ctx, id)
	return true, nil
}

func (s *SubmissionPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.SubmissionStatus, totalScore float64) error {
	db := s.getDB(tx)
	err := db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"total_score": totalScore,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}

	s.invalidateByID(ctx, id)
	return nil
}

func (s *SubmissionPostgreSQL) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.ExamSubmission, error) {
	var submissions []*models.ExamSubmission
	query := s.db.WithContext(ctx).
		Joins("JOIN exam_assignments ON exam_assignments.id = exam_submissions.assignment_id").
		Where("exam_submissions.status = ?", models.SubmissionInProgress).
		Where("exam_assignments.end_time < ?", now).
		Where("exam_assignments.allow_late_submission = ?", false)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list overdue submissions: %w", err)
	}
	return submissions, nil
}

func (s *SubmissionPostgreSQL) invalidateByID(ctx context.Context, id uint) {
	// Assignment/student scoped keys need the row; best effort
	var submission models.ExamSubmission
	if err := s.db.First(&submission, id).Error; err == nil {
		cache.InvalidateSubmissionCache(ctx, s.cacheManager, id, submission.AssignmentID, submission.StudentID)
		return
	}
	cache.SafeDelete(ctx, s.cacheManager.Fast, fmt.Sprintf("submission:id:%d", id))
}

func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
