package postgres

import (
	"context"
	"fmt"

	"github.com/ngbao12/GoPass-sub000/internal/cache"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type AssignmentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAssignmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AssignmentRepository {
	return &AssignmentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AssignmentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ExamAssignment, error) {
	cacheKey := fmt.Sprintf("assignment:id:%d", id)
	var assignment models.ExamAssignment

	err := a.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &assignment, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAssignment models.ExamAssignment
		if err := a.db.WithContext(ctx).First(&dbAssignment, id).Error; err != nil {
			return nil, err
		}
		return &dbAssignment, nil
	})

	return &assignment, err
}

func (a *AssignmentPostgreSQL) GetWithExam(ctx context.Context, id uint) (*models.ExamAssignment, error) {
	var assignment models.ExamAssignment
	if err := a.db.WithContext(ctx).
		Preload("Exam").
		Preload("Exam.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.\"order\" ASC")
		}).
		First(&assignment, id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ===== QUESTION REPOSITORY =====

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ExamQuestion, error) {
	var question models.ExamQuestion
	if err := q.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, examID uint) ([]*models.ExamQuestion, error) {
	cacheKey := fmt.Sprintf("questions:%d", examID)
	var questions []*models.ExamQuestion

	err := q.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &questions, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []*models.ExamQuestion
		if err := q.db.WithContext(ctx).
			Where("exam_id = ?", examID).
			Order("\"order\" ASC").
			Find(&dbQuestions).Error; err != nil {
			return nil, fmt.Errorf("failed to get exam questions: %w", err)
		}
		return dbQuestions, nil
	})

	return questions, err
}

// ===== MEMBERSHIP REPOSITORY =====

type MembershipPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewMembershipPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.MembershipRepository {
	return &MembershipPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (m *MembershipPostgreSQL) IsMember(ctx context.Context, groupID uint, studentID string) (bool, error) {
	cacheKey := fmt.Sprintf("member:%d:%s", groupID, studentID)
	var isMember bool

	err := m.cacheManager.Exists.CacheOrExecute(ctx, cacheKey, &isMember, cache.ExistsCacheConfig.TTL, func() (interface{}, error) {
		var count int64
		if err := m.db.WithContext(ctx).
			Model(&models.GroupMember{}).
			Where("group_id = ? AND student_id = ?", groupID, studentID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		return count > 0, nil
	})

	return isMember, err
}
