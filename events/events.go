// Package events publishes domain events about songs.
package events

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTypeSongUploaded EventType = "song.uploaded"
	EventTypeSongPlayed   EventType = "song.played"
)

type Event struct {
	Type      EventType       `json:"type"`
	UserID    int64           `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher delivers events. Callers treat errors as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// SongUploadedPayload is carried by song.uploaded.
type SongUploadedPayload struct {
	SongID   int64  `json:"song_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Mood     string `json:"mood"`
	FilePath string `json:"file_path"`
}

// SongPlayedPayload is carried by song.played.
type SongPlayedPayload struct {
	SongID int64 `json:"song_id"`
}

// New builds an event, marshalling payload into it.
func New(eventType EventType, userID int64, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
