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

type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// Upsert creates or replaces the single answer row for (submission, question).
// The unique index makes duplicates impossible; repeated calls always leave
// one row carrying the latest payload.
func (ar *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.ExamAnswer) (*models.ExamAnswer, error) {
	db := ar.getDB(tx)

	existing, err := ar.getBySubmissionAndQuestion(ctx, db, answer.SubmissionID, answer.QuestionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up existing answer: %w", err)
	}

	if existing != nil {
		err = db.WithContext(ctx).
			Model(&models.ExamAnswer{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"answer_text":      answer.AnswerText,
				"selected_options": answer.SelectedOptions,
				"max_score":        answer.MaxScore,
				"updated_at":       time.Now(),
			}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update answer: %w", err)
		}
		answer.ID = existing.ID
		answer.CreatedAt = existing.CreatedAt
	} else {
		if err := db.WithContext(ctx).Create(answer).Error; err != nil {
			return nil, fmt.Errorf("failed to create answer: %w", err)
		}
	}

	cache.SafeDelete(ctx, ar.cacheManager.Fast,
		fmt.Sprintf("answers:%d", answer.SubmissionID))
	return answer, nil
}

func (ar *AnswerPostgreSQL) GetBySubmission(ctx context.Context, submissionID uint) ([]*models.ExamAnswer, error) {
	var answers []*models.ExamAnswer
	if err := ar.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get submission answers: %w", err)
	}
	return answers, nil
}

func (ar *AnswerPostgreSQL) GetBySubmissionAndQuestion(ctx context.Context, submissionID, questionID uint) (*models.ExamAnswer, error) {
	return ar.getBySubmissionAndQuestion(ctx, ar.db, submissionID, questionID)
}

func (ar *AnswerPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ExamAnswer, error) {
	var answer models.ExamAnswer
	if err := ar.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

// UpdateGrades writes grading results for a batch of answers.
func (ar *AnswerPostgreSQL) UpdateGrades(ctx context.Context, tx *gorm.DB, answers []*models.ExamAnswer) error {
	db := ar.getDB(tx)
	now := time.Now()

	for _, answer := range answers {
		err := db.WithContext(ctx).
			Model(&models.ExamAnswer{}).
			Where("id = ?", answer.ID).
			Updates(map[string]interface{}{
				"score":          answer.Score,
				"is_auto_graded": answer.IsAutoGraded,
				"feedback":       answer.Feedback,
				"graded_at":      now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update grade for answer %d: %w", answer.ID, err)
		}
	}

	if len(answers) > 0 {
		cache.SafeDelete(ctx, ar.cacheManager.Fast,
			fmt.Sprintf("answers:%d", answers[0].SubmissionID))
	}
	return nil
}

func (ar *AnswerPostgreSQL) ApplyManualGrade(ctx context.Context, tx *gorm.DB, grade repositories.AnswerGrade) error {
	db := ar.getDB(tx)
	now := time.Now()

	result := db.WithContext(ctx).
		Model(&models.ExamAnswer{}).
		Where("id = ?", grade.AnswerID).
		Updates(map[string]interface{}{
			"score":              grade.Score,
			"feedback":           grade.Feedback,
			"is_auto_graded":     false,
			"is_manually_graded": true,
			"graded_by":          grade.GraderID,
			"graded_at":          now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to apply manual grade: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (ar *AnswerPostgreSQL) CountPendingManual(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	err := ar.db.WithContext(ctx).
		Model(&models.ExamAnswer{}).
		Where("submission_id = ? AND is_auto_graded = ? AND is_manually_graded = ?",
			submissionID, false, false).
		Count(&count).Error
	return count, err
}

func (ar *AnswerPostgreSQL) getBySubmissionAndQuestion(ctx context.Context, db *gorm.DB, submissionID, questionID uint) (*models.ExamAnswer, error) {
	var answer models.ExamAnswer
	err := db.WithContext(ctx).
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (ar *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}
