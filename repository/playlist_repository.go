package repository

import (
	"context"
	"fmt"

	"MoodFM/model"

	"gorm.io/gorm"
)

// PlaylistRepository 歌单数据访问接口（只读）
type PlaylistRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]model.PlaylistSummary, error)
}

// gormPlaylistRepository GORM 实现
type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository 创建 GORM 歌单仓库
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

// ListByUser returns {id, name} for every playlist the user owns, by id.
func (r *gormPlaylistRepository) ListByUser(ctx context.Context, userID int64) ([]model.PlaylistSummary, error) {
	out := make([]model.PlaylistSummary, 0)
	err := r.db.WithContext(ctx).
		Model(&model.Playlist{}).
		Select("id", "name").
		Where("user_id = ?", userID).
		Order("id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists for user ID %d: %w", userID, err)
	}
	return out, nil
}
