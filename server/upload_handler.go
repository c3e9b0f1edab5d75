package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"MoodFM/core/upload"
	"MoodFM/logger"
	"MoodFM/model"
)

// formOverhead is the room left for multipart boundaries and text fields on
// top of the file size cap.
const formOverhead = 1 << 20

type uploadResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Song    *model.Song `json:"song"`
}

// UploadSongHandler handles audio file uploads.
// Expected multipart form fields:
// - file: the audio file
// - userId: owner of the song
// - title, artist, album, genre, mood, language: optional
func (s *Server) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	logger.Info("开始处理上传请求",
		logger.String("remoteAddr", r.RemoteAddr),
		logger.String("requestId", GetRequestID(r.Context())),
		logger.Int64("contentLength", r.ContentLength))

	maxBytes := s.cfg.UploadMaxBytes()

	// 检查请求大小
	if r.ContentLength > maxBytes+formOverhead {
		logger.Warn("请求体过大，拒绝处理",
			logger.Int64("contentLength", r.ContentLength),
			logger.Int64("maxSize", maxBytes))
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		return
	}

	// 获取信号量，控制并发
	select {
	case s.uploadSemaphore <- struct{}{}:
		defer func() { <-s.uploadSemaphore }()
	default:
		logger.Warn("服务器繁忙，拒绝新的上传请求")
		writeError(w, http.StatusServiceUnavailable, "Server is busy, please try again later")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	parseStart := time.Now()
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			logger.Warn("请求体过大导致表单解析失败", logger.ErrorField(err))
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
			return
		}
		logger.Warn("解析表单失败", logger.ErrorField(err), logger.Duration("parseTime", time.Since(parseStart)))
		writeErrorDetails(w, http.StatusBadRequest, "Failed to parse upload form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	userID, err := parseID(r.FormValue("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, upload.ErrMissingUser.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "Missing audio file. Please select a file to upload.")
		} else {
			writeErrorDetails(w, http.StatusBadRequest, "Failed to process uploaded file", err.Error())
		}
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		logger.Warn("文件过大",
			logger.Int64("size", header.Size),
			logger.String("filename", header.Filename))
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		return
	}

	res := s.uploader.Run(r.Context(), upload.Request{
		UserID:      userID,
		Filename:    header.Filename,
		Content:     file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Fields: upload.Fields{
			Title:    r.FormValue("title"),
			Artist:   r.FormValue("artist"),
			Album:    r.FormValue("album"),
			Genre:    r.FormValue("genre"),
			Mood:     r.FormValue("mood"),
			Language: r.FormValue("language"),
		},
	})
	if !res.OK() {
		if errors.Is(res.Err, upload.ErrMissingUser) || errors.Is(res.Err, upload.ErrEmptyFile) {
			writeError(w, http.StatusBadRequest, res.Err.Error())
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "Upload failed", res.Err.Error())
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "Song uploaded successfully",
		Song:    res.Song,
	})
}

func tooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("File too large. Maximum size is %d MB", maxBytes>>20)
}
