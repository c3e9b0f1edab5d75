package repository

import (
	"context"
	"testing"
	"time"

	"MoodFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSongRepository_CreateAndGet(t *testing.T) {
	repo := NewMySQLSongRepository(setupTestDB(t))
	ctx := context.Background()

	lang := "en"
	thumb := "covers/1_x_track_cover.jpg"
	song := &model.Song{
		UserID:    7,
		Title:     "Blue",
		Artist:    "Band",
		Album:     "LP",
		Genre:     "Rock",
		Mood:      "sad",
		Language:  &lang,
		FilePath:  "audio/blue.mp3",
		Bitrate:   320,
		Duration:  201.5,
		Thumbnail: &thumb,
	}
	id, err := repo.CreateSong(ctx, song)
	require.NoError(t, err)

	got, err := repo.GetSongByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Blue", got.Title)
	assert.Equal(t, 320, got.Bitrate)
	assert.InDelta(t, 201.5, got.Duration, 0.001)
	require.NotNil(t, got.Language)
	assert.Equal(t, "en", *got.Language)
	require.NotNil(t, got.Thumbnail)
	assert.Equal(t, thumb, *got.Thumbnail)
}

func TestSongRepository_NullableColumns(t *testing.T) {
	repo := NewMySQLSongRepository(setupTestDB(t))
	ctx := context.Background()

	id := insertSong(t, repo, 1, "plain", "")

	got, err := repo.GetSongByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Language)
	assert.Nil(t, got.Thumbnail)

	missing, err := repo.GetSongByID(ctx, id+100)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSongRepository_MoodsPlayedByUser(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewMySQLSongRepository(conn)
	ctx := context.Background()

	happy := insertSong(t, repo, 1, "a", "happy")
	sad := insertSong(t, repo, 1, "b", "sad")

	base := time.Now().Add(-time.Hour)
	for i, songID := range []int64{happy, sad, happy} {
		_, err := conn.Exec("INSERT INTO play_history (user_id, song_id, played_at) VALUES (?, ?, ?)",
			42, songID, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err := conn.Exec("INSERT INTO play_history (user_id, song_id, played_at) VALUES (?, ?, ?)", 99, sad, base)
	require.NoError(t, err)

	moods, err := repo.MoodsPlayedByUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"happy", "sad", "happy"}, moods)

	none, err := repo.MoodsPlayedByUser(ctx, 1000)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSongRepository_RandomSongsByMoods(t *testing.T) {
	repo := NewMySQLSongRepository(setupTestDB(t))
	ctx := context.Background()

	for _, title := range []string{"h1", "h2", "h3"} {
		insertSong(t, repo, 1, title, "happy")
	}
	insertSong(t, repo, 1, "s1", "sad")
	insertSong(t, repo, 1, "c1", "calm")

	songs, err := repo.RandomSongsByMoods(ctx, []string{"happy", "sad"}, 10)
	require.NoError(t, err)
	assert.Len(t, songs, 4)
	for _, s := range songs {
		assert.Contains(t, []string{"happy", "sad"}, s.Mood)
	}

	limited, err := repo.RandomSongsByMoods(ctx, []string{"happy"}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := repo.RandomSongsByMoods(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
