package server

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"MoodFM/logger"
	"MoodFM/storage"
)

// StaticHandler serves stored artifacts read-only, from whichever backend the
// store uses.
type StaticHandler struct {
	store storage.ArtifactStore
}

// NewStaticHandler 创建 StaticHandler 实例
func NewStaticHandler(store storage.ArtifactStore) *StaticHandler {
	return &StaticHandler{store: store}
}

// ServeHTTP expects the /uploads/ prefix to be stripped already.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "Storage not available")
		return
	}
	key := r.URL.Path

	artifact, err := h.store.Open(r.Context(), key)
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "Invalid path")
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
		return
	case err != nil:
		logger.Error("Error opening artifact", logger.String("key", key), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer artifact.Close()

	w.Header().Set("Content-Type", detectContentType(key))
	w.Header().Set("Cache-Control", "public, max-age=31536000") // 缓存一年
	http.ServeContent(w, r, path.Base(key), time.Time{}, artifact)
}

// detectContentType 根据扩展名或路径前缀检测内容类型
func detectContentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	switch {
	case strings.HasPrefix(key, storage.CoverPrefix):
		return "image/jpeg"
	case strings.HasPrefix(key, storage.AudioPrefix):
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
