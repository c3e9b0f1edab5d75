package repository

import (
	"context"
	"fmt"

	"MoodFM/model"

	"gorm.io/gorm"
)

// HistoryRepository 播放历史仓储接口，只追加
type HistoryRepository interface {
	Append(ctx context.Context, h *model.PlayHistory) error
}

type gormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository 创建播放历史仓储
func NewGormHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

// Append inserts one play event.
func (r *gormHistoryRepository) Append(ctx context.Context, h *model.PlayHistory) error {
	if err := r.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("failed to append play history (user %d, song %d): %w", h.UserID, h.SongID, err)
	}
	return nil
}
