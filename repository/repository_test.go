package repository

import (
	"context"
	"database/sql"
	"math/rand"
	"testing"

	"MoodFM/model"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlite has no RAND(); register one so the MySQL queries run unchanged.
func init() {
	sql.Register("sqlite3_moodfm", &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("RAND", rand.Float64, false)
		},
	})
}

const testSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME
);
CREATE TABLE songs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	album TEXT NOT NULL,
	genre TEXT NOT NULL,
	mood TEXT NOT NULL DEFAULT '',
	language TEXT NULL,
	file_path TEXT NOT NULL,
	bitrate INTEGER NOT NULL DEFAULT 0,
	duration REAL NOT NULL DEFAULT 0,
	thumbnail TEXT NULL,
	created_at DATETIME
);
CREATE TABLE playlists (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	user_id INTEGER NOT NULL,
	created_at DATETIME
);
CREATE TABLE play_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	song_id INTEGER NOT NULL,
	played_at DATETIME NOT NULL
);
`

// setupTestDB creates an in-memory SQLite database with the schema applied.
// A single connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3_moodfm", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

// setupTestGorm opens GORM over the same kind of database.
func setupTestGorm(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()

	conn := setupTestDB(t)
	gdb, err := gorm.Open(sqlite.Dialector{Conn: conn}, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gdb, conn
}

func insertSong(t *testing.T, repo SongRepository, userID int64, title, mood string) int64 {
	t.Helper()
	id, err := repo.CreateSong(context.Background(), &model.Song{
		UserID:   userID,
		Title:    title,
		Artist:   "Unknown Artist",
		Album:    "Unknown Album",
		Genre:    "Unknown",
		Mood:     mood,
		FilePath: "audio/" + title + ".mp3",
	})
	require.NoError(t, err)
	return id
}
