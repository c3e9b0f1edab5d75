package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MoodFM/config"
	"MoodFM/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// ConnectDB opens the MySQL pool and verifies it with a ping.
func ConnectDB(cfg *config.Config) (*sql.DB, error) {
	conn, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxIdleConns(10)
	conn.SetMaxOpenConns(100)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database.",
		logger.String("host", cfg.DBHost),
		logger.String("name", cfg.DBName))
	return conn, nil
}

// schema is applied in order; every statement is idempotent.
var schema = []struct {
	table string
	ddl   string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`},
	{"songs", `
	CREATE TABLE IF NOT EXISTS songs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255) NOT NULL,
		album VARCHAR(255) NOT NULL,
		genre VARCHAR(100) NOT NULL,
		mood VARCHAR(100) NOT NULL DEFAULT '',
		language VARCHAR(50) NULL,
		file_path VARCHAR(767) NOT NULL,
		bitrate INT NOT NULL DEFAULT 0,
		duration DOUBLE NOT NULL DEFAULT 0,
		thumbnail VARCHAR(767) NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_songs_user (user_id),
		INDEX idx_songs_mood (mood),
		CONSTRAINT fk_songs_user FOREIGN KEY (user_id) REFERENCES users(id)
	)`},
	{"playlists", `
	CREATE TABLE IF NOT EXISTS playlists (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		user_id BIGINT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_playlists_user (user_id)
	)`},
	{"play_history", `
	CREATE TABLE IF NOT EXISTS play_history (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		song_id BIGINT NOT NULL,
		played_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_history_user (user_id),
		CONSTRAINT fk_history_song FOREIGN KEY (song_id) REFERENCES songs(id)
	)`},
}

// InitDB creates the tables if they don't exist.
func InitDB(ctx context.Context, conn *sql.DB) error {
	for _, s := range schema {
		if _, err := conn.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
		logger.Info("Table initialized (or already exists).", logger.String("table", s.table))
	}
	return nil
}
