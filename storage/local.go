package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore keeps artifacts on the local filesystem below Root.
type LocalStore struct {
	Root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", root, err)
	}
	return &LocalStore{Root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(cleaned)), nil
}

// Save writes the artifact, creating parent directories on demand.
func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, keyError(err, key))
	}

	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, keyError(err, key))
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write %s: %w", key, keyError(err, key))
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("failed to close %s: %w", key, keyError(err, key))
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (Artifact, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, keyError(err, key))
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return &localArtifact{f: f, key: key}, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, keyError(err, key))
	}
	return nil
}

// List walks the root and returns files whose key has the given prefix.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  mime.TypeByExtension(path.Ext(key)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", prefix, keyError(err, prefix))
	}
	return objects, nil
}

// keyError swaps the filesystem path in err for the artifact key, so callers
// never see where Root lives on disk.
func keyError(err error, key string) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &fs.PathError{Op: pe.Op, Path: key, Err: pe.Err}
	}
	return err
}

// localArtifact is an open file whose errors name the key instead of the path.
type localArtifact struct {
	f   *os.File
	key string
}

func (a *localArtifact) Read(p []byte) (int, error) {
	n, err := a.f.Read(p)
	return n, keyError(err, a.key)
}

func (a *localArtifact) Seek(offset int64, whence int) (int64, error) {
	n, err := a.f.Seek(offset, whence)
	return n, keyError(err, a.key)
}

func (a *localArtifact) Close() error {
	return keyError(a.f.Close(), a.key)
}
