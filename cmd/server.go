package cmd

import (
	"context"
	"fmt"

	"MoodFM/cache"
	"MoodFM/core/audio"
	"MoodFM/core/metadata"
	"MoodFM/core/recommend"
	"MoodFM/core/upload"
	"MoodFM/db"
	"MoodFM/events"
	"MoodFM/logger"
	"MoodFM/repository"
	"MoodFM/server"
	"MoodFM/storage"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MoodFM服务器",
	Long:  `启动MoodFM的HTTP服务器，提供注册登录、歌曲上传、歌单、播放记录和心情推荐接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := db.ConnectDB(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.InitDB(ctx, conn); err != nil {
		return err
	}
	gdb, err := db.OpenGorm(conn)
	if err != nil {
		return err
	}

	// Redis 只用于心情缓存，连接失败时降级为无缓存
	var redisClient *redis.Client
	if client, err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, mood cache disabled", logger.ErrorField(err))
	} else {
		redisClient = client
		defer redisClient.Close()
		logger.Info("Successfully connected to Redis", logger.String("addr", cfg.RedisAddr()))
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer publisher.Close()

	songRepo := repository.NewMySQLSongRepository(conn)
	userRepo := repository.NewMySQLUserRepository(conn)
	moodCache := cache.NewMoodCache(redisClient, cfg.MoodCacheTTL)

	pipeline := upload.NewPipeline(
		store,
		metadata.NewTagExtractor(audio.NewFFprobeProber(cfg.FFprobePath)),
		songRepo,
		userRepo,
		publisher,
		upload.Options{
			ExtractTimeout: cfg.ExtractTimeout,
			DBTimeout:      cfg.DBTimeout,
			KeepOrphans:    cfg.UploadKeepOrphans,
		},
	)

	srv := server.New(server.Deps{
		Config:      cfg,
		DB:          conn,
		Users:       userRepo,
		Songs:       songRepo,
		Playlists:   repository.NewGormPlaylistRepository(gdb),
		History:     repository.NewGormHistoryRepository(gdb),
		Uploader:    pipeline,
		Recommender: recommend.NewService(songRepo, moodCache, cfg.RecommendLimit, cfg.DBTimeout),
		Moods:       moodCache,
		Publisher:   publisher,
		Store:       store,
	})

	logger.Info("MoodFM configured",
		logger.String("storage", cfg.StorageBackend),
		logger.Bool("kafka", len(cfg.KafkaBrokers) > 0),
		logger.Bool("keepOrphans", cfg.UploadKeepOrphans))
	return server.Run(ctx, cfg.HTTPAddr, server.NewRouter(srv))
}
