package model

import "time"

// Playlist is read-only in this service.
type Playlist struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	UserID    int64     `json:"userId" gorm:"index;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Playlist) TableName() string {
	return "playlists"
}

// PlaylistSummary is the listing shape: {id, name}.
type PlaylistSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
