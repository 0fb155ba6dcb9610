package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ngbao12/GoPass-sub000/internal/cache"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type ContestPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewContestPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ContestRepository {
	return &ContestPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (c *ContestPostgreSQL) GetParticipation(ctx context.Context, contestID uint, studentID string) (*models.ContestParticipation, error) {
	var participation models.ContestParticipation
	err := c.db.WithContext(ctx).
		Where("contest_id = ? AND student_id = ?", contestID, studentID).
		First(&participation).Error
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

func (c *ContestPostgreSQL) CreateParticipation(ctx context.Context, participation *models.ContestParticipation) error {
	if err := c.db.WithContext(ctx).Create(participation).Error; err != nil {
		return fmt.Errorf("failed to create contest participation: %w", err)
	}
	c.invalidateStandings(ctx, participation.ContestID)
	return nil
}

func (c *ContestPostgreSQL) Update(ctx context.Context, tx *gorm.DB, participation *models.ContestParticipation) error {
	db := c.getDB(tx)
	if err := db.WithContext(ctx).Save(participation).Error; err != nil {
		return fmt.Errorf("failed to update contest participation: %w", err)
	}
	c.invalidateStandings(ctx, participation.ContestID)
	return nil
}

func (c *ContestPostgreSQL) Standings(ctx context.Context, contestID uint, limit int) ([]*models.ContestStanding, error) {
	cacheKey := fmt.Sprintf("standings:%d:%d", contestID, limit)
	var standings []*models.ContestStanding

	err := c.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &standings, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var participations []*models.ContestParticipation
		query := c.db.WithContext(ctx).
			Where("contest_id = ?", contestID).
			Order("total_score DESC, updated_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Find(&participations).Error; err != nil {
			return nil, fmt.Errorf("failed to query standings: %w", err)
		}

		rows := make([]*models.ContestStanding, 0, len(participations))
		for i, p := range participations {
			completed := 0
			if len(p.CompletedExams) > 0 {
				var examIDs []uint
				if err := json.Unmarshal(p.CompletedExams, &examIDs); err == nil {
					completed = len(examIDs)
				}
			}
			rows = append(rows, &models.ContestStanding{
				Rank:       i + 1,
				StudentID:  p.StudentID,
				TotalScore: p.TotalScore,
				Completed:  completed,
			})
		}
		return rows, nil
	})

	return standings, err
}

func (c *ContestPostgreSQL) invalidateStandings(ctx context.Context, contestID uint) {
	cache.SafeInvalidatePattern(ctx, c.cacheManager.Fast, fmt.Sprintf("standings:%d:*", contestID))
}

func (c *ContestPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}
