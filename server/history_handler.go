package server

import (
	"encoding/json"
	"net/http"
	"time"

	"MoodFM/core/upload"
	"MoodFM/events"
	"MoodFM/logger"
	"MoodFM/model"
)

type playRequest struct {
	UserID int64 `json:"userId"`
	SongID int64 `json:"songId"`
}

// PlaySongHandler 记录一次播放 POST /api/song/play
func (s *Server) PlaySongHandler(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID <= 0 || req.SongID <= 0 {
		writeError(w, http.StatusBadRequest, "userId and songId are required")
		return
	}

	ctx, cancel := s.dbContext(r.Context())
	defer cancel()

	// 外键约束失败前先确认用户和歌曲存在
	if s.users != nil {
		user, err := s.users.GetUserByID(ctx, req.UserID)
		if err != nil {
			logger.Error("Failed to look up user", logger.Int64("userId", req.UserID), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to record play")
			return
		}
		if user == nil {
			writeError(w, http.StatusBadRequest, upload.ErrMissingUser.Error())
			return
		}
	}
	if s.songs != nil {
		song, err := s.songs.GetSongByID(ctx, req.SongID)
		if err != nil {
			logger.Error("Failed to look up song", logger.Int64("songId", req.SongID), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to record play")
			return
		}
		if song == nil {
			writeError(w, http.StatusNotFound, "Song not found")
			return
		}
	}

	entry := &model.PlayHistory{UserID: req.UserID, SongID: req.SongID, PlayedAt: time.Now()}

	if err := s.history.Append(ctx, entry); err != nil {
		logger.Error("Failed to record play", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to record play")
		return
	}

	// 新的播放记录可能引入新的心情
	if s.moods != nil {
		if err := s.moods.Invalidate(r.Context(), req.UserID); err != nil {
			logger.Warn("Failed to invalidate mood cache", logger.Int64("userId", req.UserID), logger.ErrorField(err))
		}
	}

	ev, err := events.New(events.EventTypeSongPlayed, req.UserID, events.SongPlayedPayload{SongID: req.SongID})
	if err == nil {
		err = s.publisher.Publish(r.Context(), ev)
	}
	if err != nil {
		logger.Warn("Failed to publish play event", logger.Int64("songId", req.SongID), logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
