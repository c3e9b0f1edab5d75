// Package storage persists upload artifacts (audio files and cover images).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"MoodFM/config"
)

// Key prefixes for the two artifact kinds.
const (
	AudioPrefix = "audio/"
	CoverPrefix = "covers/"
)

// ErrNotFound is returned by Open when no artifact exists under the key.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid artifact key")

// Artifact is a stored file opened for reading.
type Artifact interface {
	io.ReadSeekCloser
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// ArtifactStore stores artifacts under slash-separated keys such as
// "audio/1700000000000_<uuid>_track.mp3".
type ArtifactStore interface {
	// Save writes r under key. size may be -1 when unknown.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns the artifact for reading, or ErrNotFound.
	Open(ctx context.Context, key string) (Artifact, error)
	// Delete removes the artifact. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every artifact whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// New builds the store selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (ArtifactStore, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return NewLocalStore(cfg.UploadDir)
	case "minio":
		return NewMinioStore(ctx, MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// CleanKey normalises key and rejects anything that would leave the root.
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
