// Package recommend picks songs that share a mood with the user's history.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MoodFM/logger"
	"MoodFM/model"
)

// SongSource is the part of repository.SongRepository used here.
type SongSource interface {
	MoodsPlayedByUser(ctx context.Context, userID int64) ([]string, error)
	RandomSongsByMoods(ctx context.Context, moods []string, limit int) ([]*model.Song, error)
}

// MoodCache stores the distinct mood set per user. cache.MoodCache satisfies it.
type MoodCache interface {
	Get(ctx context.Context, userID int64) ([]string, bool, error)
	Set(ctx context.Context, userID int64, moods []string) error
}

type Service struct {
	songs     SongSource
	cache     MoodCache
	limit     int
	dbTimeout time.Duration
}

// NewService creates the service. cache may be nil.
func NewService(songs SongSource, cache MoodCache, limit int, dbTimeout time.Duration) *Service {
	if limit <= 0 {
		limit = 10
	}
	return &Service{songs: songs, cache: cache, limit: limit, dbTimeout: dbTimeout}
}

// DistinctMoods collapses duplicates, keeping order of first appearance.
// Blank moods are dropped.
func DistinctMoods(moods []string) []string {
	seen := make(map[string]struct{}, len(moods))
	out := make([]string, 0, len(moods))
	for _, m := range moods {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Moods returns the user's distinct mood set, from cache when possible.
func (s *Service) Moods(ctx context.Context, userID int64) ([]string, error) {
	if s.cache != nil {
		moods, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			logger.Warn("读取心情缓存失败", logger.Int64("userId", userID), logger.ErrorField(err))
		} else if ok {
			return moods, nil
		}
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := s.songs.MoodsPlayedByUser(dbCtx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load play history moods: %w", err)
	}
	moods := DistinctMoods(raw)

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, moods); err != nil {
			logger.Warn("写入心情缓存失败", logger.Int64("userId", userID), logger.ErrorField(err))
		}
	}
	return moods, nil
}

// Recommend returns up to limit random songs matching any of the user's moods.
// A user without history gets an empty list.
func (s *Service) Recommend(ctx context.Context, userID int64) ([]*model.Song, error) {
	moods, err := s.Moods(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(moods) == 0 {
		return []*model.Song{}, nil
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	songs, err := s.songs.RandomSongsByMoods(dbCtx, moods, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample songs: %w", err)
	}
	if songs == nil {
		songs = []*model.Song{}
	}
	return songs, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.dbTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.dbTimeout)
}
