package model

import "time"

// PlayHistory is an append-only record of one play event.
type PlayHistory struct {
	ID       int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID   int64     `json:"userId" gorm:"index;not null"`
	SongID   int64     `json:"songId" gorm:"index;not null"`
	PlayedAt time.Time `json:"playedAt" gorm:"not null"`
}

func (PlayHistory) TableName() string {
	return "play_history"
}
