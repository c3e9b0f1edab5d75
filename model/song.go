package model

import "time"

// Song is an uploaded audio track. Rows are written once when an upload
// completes and are immutable afterwards.
type Song struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Genre     string    `json:"genre"`
	Mood      string    `json:"mood"`
	Language  *string   `json:"language"`  // nil when the client did not send one
	FilePath  string    `json:"filePath"`  // storage key of the audio artifact
	Bitrate   int       `json:"bitrate"`   // kbps, 0 when unknown
	Duration  float64   `json:"duration"`  // seconds, 0 when unknown
	Thumbnail *string   `json:"thumbnail"` // storage key of the cover, nil without embedded art
	CreatedAt time.Time `json:"createdAt"`
}
