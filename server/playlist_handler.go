package server

import (
	"net/http"

	"MoodFM/logger"
)

// PlaylistsHandler 获取用户歌单列表 GET /api/playlists?userId=
func (s *Server) PlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid userId")
		return
	}

	ctx, cancel := s.dbContext(r.Context())
	defer cancel()

	playlists, err := s.playlists.ListByUser(ctx, userID)
	if err != nil {
		logger.Error("Failed to list playlists", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list playlists")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}
