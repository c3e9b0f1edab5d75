package server

import (
	"net/http"

	"MoodFM/logger"
)

// RecommendationsHandler GET /api/user/recommendations?userId=
func (s *Server) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid userId")
		return
	}

	songs, err := s.recommender.Recommend(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to build recommendations", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to build recommendations")
		return
	}
	writeJSON(w, http.StatusOK, songs)
}
