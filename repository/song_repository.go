package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"MoodFM/model"
)

// SongRepository defines the interface for song data operations.
type SongRepository interface {
	CreateSong(ctx context.Context, song *model.Song) (int64, error)
	GetSongByID(ctx context.Context, id int64) (*model.Song, error)
	// MoodsPlayedByUser returns the mood of every song in the user's play
	// history, oldest play first. Duplicates are kept.
	MoodsPlayedByUser(ctx context.Context, userID int64) ([]string, error)
	// RandomSongsByMoods samples up to limit songs whose mood is in moods.
	RandomSongsByMoods(ctx context.Context, moods []string, limit int) ([]*model.Song, error)
}

const songColumns = "id, user_id, title, artist, album, genre, mood, language, file_path, bitrate, duration, thumbnail, created_at"

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	db *sql.DB
}

// NewMySQLSongRepository creates a new instance of mysqlSongRepository.
func NewMySQLSongRepository(db *sql.DB) SongRepository {
	return &mysqlSongRepository{db: db}
}

// CreateSong inserts one song row and returns its id.
func (r *mysqlSongRepository) CreateSong(ctx context.Context, song *model.Song) (int64, error) {
	query := `INSERT INTO songs (user_id, title, artist, album, genre, mood, language, file_path, bitrate, duration, thumbnail, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	res, err := r.db.ExecContext(ctx, query,
		song.UserID, song.Title, song.Artist, song.Album, song.Genre, song.Mood,
		nullString(song.Language), song.FilePath, song.Bitrate, song.Duration,
		nullString(song.Thumbnail), now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateSong: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateSong: %w", err)
	}
	song.ID = id
	song.CreatedAt = now
	return id, nil
}

// GetSongByID retrieves a song by its ID. A missing song is (nil, nil).
func (r *mysqlSongRepository) GetSongByID(ctx context.Context, id int64) (*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs WHERE id = ?"
	song, err := scanSong(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song by ID %d: %w", id, err)
	}
	return song, nil
}

func (r *mysqlSongRepository) MoodsPlayedByUser(ctx context.Context, userID int64) ([]string, error) {
	query := `SELECT s.mood FROM play_history h
	           JOIN songs s ON s.id = h.song_id
	           WHERE h.user_id = ?
	           ORDER BY h.played_at ASC, h.id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query moods for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	moods := make([]string, 0)
	for rows.Next() {
		var mood string
		if err := rows.Scan(&mood); err != nil {
			return nil, fmt.Errorf("failed to scan mood in MoodsPlayedByUser: %w", err)
		}
		moods = append(moods, mood)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in MoodsPlayedByUser: %w", err)
	}
	return moods, nil
}

func (r *mysqlSongRepository) RandomSongsByMoods(ctx context.Context, moods []string, limit int) ([]*model.Song, error) {
	songs := make([]*model.Song, 0)
	if len(moods) == 0 || limit <= 0 {
		return songs, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(moods)), ", ")
	query := "SELECT " + songColumns + " FROM songs WHERE mood IN (" + placeholders + ") ORDER BY RAND() LIMIT ?"

	args := make([]interface{}, 0, len(moods)+1)
	for _, m := range moods {
		args = append(args, m)
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs by moods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song in RandomSongsByMoods: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in RandomSongsByMoods: %w", err)
	}
	return songs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSong(row rowScanner) (*model.Song, error) {
	song := &model.Song{}
	var language, thumbnail sql.NullString
	err := row.Scan(&song.ID, &song.UserID, &song.Title, &song.Artist, &song.Album, &song.Genre,
		&song.Mood, &language, &song.FilePath, &song.Bitrate, &song.Duration, &thumbnail, &song.CreatedAt)
	if err != nil {
		return nil, err
	}
	song.Language = stringPtr(language)
	song.Thumbnail = stringPtr(thumbnail)
	return song, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
