package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MoodFM/config"
	"MoodFM/core/upload"
	"MoodFM/events"
	"MoodFM/logger"
	"MoodFM/model"
	"MoodFM/repository"
	"MoodFM/storage"

	"github.com/gorilla/mux"
)

// Uploader runs the upload pipeline. *upload.Pipeline satisfies it.
type Uploader interface {
	Run(ctx context.Context, req upload.Request) upload.Result
}

// Recommender is satisfied by *recommend.Service.
type Recommender interface {
	Recommend(ctx context.Context, userID int64) ([]*model.Song, error)
}

// SongLookup finds a song by id, (nil, nil) when missing.
// repository.SongRepository satisfies it.
type SongLookup interface {
	GetSongByID(ctx context.Context, id int64) (*model.Song, error)
}

// MoodInvalidator drops a user's cached mood set. *cache.MoodCache satisfies it.
type MoodInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config      *config.Config
	DB          *sql.DB // optional, only used by /healthz
	Users       repository.UserRepository
	Songs       SongLookup
	Playlists   repository.PlaylistRepository
	History     repository.HistoryRepository
	Uploader    Uploader
	Recommender Recommender
	Moods       MoodInvalidator
	Publisher   events.Publisher
	Store       storage.ArtifactStore
}

// Server holds everything the handlers need. It is built once at startup.
type Server struct {
	cfg         *config.Config
	db          *sql.DB
	users       repository.UserRepository
	songs       SongLookup
	playlists   repository.PlaylistRepository
	history     repository.HistoryRepository
	uploader    Uploader
	recommender Recommender
	moods       MoodInvalidator
	publisher   events.Publisher
	store       storage.ArtifactStore

	// uploadSemaphore 用于控制并发上传
	uploadSemaphore chan struct{}
	uploadLimiter   *RateLimiter
}

// New creates a Server.
func New(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	maxConcurrent := cfg.UploadMaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Server{
		cfg:             cfg,
		db:              d.DB,
		users:           d.Users,
		songs:           d.Songs,
		playlists:       d.Playlists,
		history:         d.History,
		uploader:        d.Uploader,
		recommender:     d.Recommender,
		moods:           d.Moods,
		publisher:       publisher,
		store:           d.Store,
		uploadSemaphore: make(chan struct{}, maxConcurrent),
		uploadLimiter:   NewRateLimiter(cfg.UploadRatePerMinute, cfg.TrustForwardedFor),
	}
}

// NewRouter registers every route at the top level.
func NewRouter(s *Server) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, Logging, Recovery, CORS)

	router.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/signup", s.SignupHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/login", s.LoginHandler).Methods(http.MethodPost, http.MethodOptions)

	router.Handle("/api/upload/song", s.uploadLimiter.Limit(http.HandlerFunc(s.UploadSongHandler))).
		Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/api/playlists", s.PlaylistsHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/song/play", s.PlaySongHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/user/recommendations", s.RecommendationsHandler).Methods(http.MethodGet, http.MethodOptions)

	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", NewStaticHandler(s.store))).
		Methods(http.MethodGet, http.MethodHead)

	return router
}

// Run serves handler on addr until SIGINT/SIGTERM or ctx ends, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	// 设置服务器超时
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute, // uploads can be large
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// dbContext bounds one repository call.
func (s *Server) dbContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.DBTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.DBTimeout)
}
