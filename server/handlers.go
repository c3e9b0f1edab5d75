package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"MoodFM/logger"
)

var errInvalidID = errors.New("invalid id")

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeErrorDetails(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// parseID accepts a positive base-10 integer.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// HealthHandler reports liveness, and database reachability when a pool is set.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := s.dbContext(r.Context())
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			logger.Warn("[Health] database ping failed", logger.ErrorField(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
