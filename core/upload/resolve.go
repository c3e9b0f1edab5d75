package upload

import (
	"strings"

	"MoodFM/core/metadata"
	"MoodFM/model"
)

const (
	DefaultArtist = "Unknown Artist"
	DefaultAlbum  = "Unknown Album"
	DefaultGenre  = "Unknown"
	DefaultTitle  = "Untitled"
)

// Fields are the optional descriptive values a client may send.
type Fields struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Mood     string
	Language string
}

// resolveField picks exactly one tier: embedded tag, then client value, then
// the default. Blank values count as absent.
func resolveField(embedded, client, def string) string {
	if v := strings.TrimSpace(embedded); v != "" {
		return v
	}
	if v := strings.TrimSpace(client); v != "" {
		return v
	}
	return def
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// resolveSong builds the song row from extracted metadata and client fields.
func resolveSong(userID int64, filename, key string, fields Fields, md *metadata.Metadata) *model.Song {
	if md == nil {
		md = &metadata.Metadata{}
	}
	defaultTitle := titleFromFilename(filename)
	if defaultTitle == "" {
		defaultTitle = DefaultTitle
	}
	return &model.Song{
		UserID:   userID,
		Title:    resolveField(md.Title, fields.Title, defaultTitle),
		Artist:   resolveField(md.Artist, fields.Artist, DefaultArtist),
		Album:    resolveField(md.Album, fields.Album, DefaultAlbum),
		Genre:    resolveField(md.Genre, fields.Genre, DefaultGenre),
		Mood:     strings.TrimSpace(fields.Mood),
		Language: optional(fields.Language),
		FilePath: key,
		Bitrate:  md.Bitrate,
		Duration: md.Duration,
	}
}
