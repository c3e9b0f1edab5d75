// Package upload turns an uploaded audio file into a stored artifact plus one
// song row.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"MoodFM/core/metadata"
	"MoodFM/events"
	"MoodFM/logger"
	"MoodFM/model"
	"MoodFM/storage"

	"github.com/google/uuid"
)

var (
	ErrMissingUser = errors.New("missing or invalid userId")
	ErrEmptyFile   = errors.New("uploaded file is empty")
)

// Stage names a pipeline step. Result.Stage is the step that failed, or
// StageDone.
type Stage string

const (
	StageValidate Stage = "validate"
	StageIntake   Stage = "intake"
	StageExtract  Stage = "extract"
	StageCover    Stage = "cover"
	StageCommit   Stage = "commit"
	StageDone     Stage = "done"
)

// Request is one upload.
type Request struct {
	UserID      int64
	Filename    string
	Content     io.Reader
	Size        int64 // -1 when unknown
	ContentType string
	Fields      Fields
}

// Result 表示上传操作的结果
type Result struct {
	Song  *model.Song
	Stage Stage
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

// SongWriter is the part of repository.SongRepository the pipeline needs.
type SongWriter interface {
	CreateSong(ctx context.Context, song *model.Song) (int64, error)
}

// UserLookup is the part of repository.UserRepository the pipeline needs.
// A missing user is (nil, nil).
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// Options tunes the pipeline.
type Options struct {
	ExtractTimeout time.Duration
	DBTimeout      time.Duration
	// KeepOrphans leaves stored artifacts in place when a later step fails.
	// By default they are deleted.
	KeepOrphans bool
}

type Pipeline struct {
	store     storage.ArtifactStore
	extractor metadata.Extractor
	songs     SongWriter
	users     UserLookup
	publisher events.Publisher
	opts      Options

	now   func() time.Time
	newID func() uuid.UUID
}

// NewPipeline creates a Pipeline. users may be nil, in which case only the
// shape of UserID is checked.
func NewPipeline(store storage.ArtifactStore, extractor metadata.Extractor, songs SongWriter, users UserLookup, publisher events.Publisher, opts Options) *Pipeline {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		songs:     songs,
		users:     users,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.New,
	}
}

// job carries state between steps of one Run.
type job struct {
	req     Request
	now     time.Time
	id      uuid.UUID
	written []string
	md      *metadata.Metadata
	song    *model.Song
}

// Run executes intake, extraction, field resolution, cover write and record
// commit in order. The first failing step ends the run.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	if req.UserID <= 0 {
		return Result{Stage: StageValidate, Err: ErrMissingUser}
	}
	if req.Content == nil || req.Size == 0 {
		return Result{Stage: StageValidate, Err: ErrEmptyFile}
	}
	if err := p.checkUser(ctx, req.UserID); err != nil {
		return Result{Stage: StageValidate, Err: err}
	}

	j := &job{req: req, now: p.now(), id: p.newID()}
	steps := []struct {
		stage Stage
		run   func(context.Context, *job) error
	}{
		{StageIntake, p.intake},
		{StageExtract, p.extract},
		{StageCover, p.cover},
		{StageCommit, p.commit},
	}

	start := time.Now()
	for _, step := range steps {
		if err := step.run(ctx, j); err != nil {
			p.cleanup(ctx, j)
			logger.Error("上传处理失败",
				logger.String("stage", string(step.stage)),
				logger.String("filename", req.Filename),
				logger.Int64("userId", req.UserID),
				logger.ErrorField(err))
			return Result{Stage: step.stage, Err: err}
		}
	}

	logger.Info("上传处理完成",
		logger.Int64("songId", j.song.ID),
		logger.Int64("userId", req.UserID),
		logger.String("filePath", j.song.FilePath),
		logger.Duration("耗时", time.Since(start)))
	p.publish(ctx, j.song)
	return Result{Song: j.song, Stage: StageDone}
}

// checkUser rejects uploads for users that do not exist, before anything is stored.
func (p *Pipeline) checkUser(ctx context.Context, userID int64) error {
	if p.users == nil {
		return nil
	}
	ctx, cancel := p.dbContext(ctx)
	defer cancel()

	user, err := p.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user %d: %w", userID, err)
	}
	if user == nil {
		return fmt.Errorf("%w: user %d does not exist", ErrMissingUser, userID)
	}
	return nil
}

func (p *Pipeline) dbContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.DBTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.DBTimeout)
	}
	return context.WithCancel(ctx)
}

// intake stores the raw bytes before anything parses them.
func (p *Pipeline) intake(ctx context.Context, j *job) error {
	key := audioKey(j.now, j.id, j.req.Filename)
	if err := p.store.Save(ctx, key, j.req.Content, j.req.Size, j.req.ContentType); err != nil {
		return fmt.Errorf("failed to store %s: %w", j.req.Filename, err)
	}
	j.written = append(j.written, key)
	return nil
}

// extract reopens the stored artifact and resolves the song fields from it.
func (p *Pipeline) extract(ctx context.Context, j *job) error {
	if p.opts.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ExtractTimeout)
		defer cancel()
	}

	key := j.written[0]
	artifact, err := p.store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer artifact.Close()

	md, err := p.extractor.Extract(ctx, artifact, key)
	if err != nil {
		return err
	}
	j.md = md
	j.song = resolveSong(j.req.UserID, j.req.Filename, key, j.req.Fields, md)
	return nil
}

// cover writes the first embedded picture, if any.
func (p *Pipeline) cover(ctx context.Context, j *job) error {
	if len(j.md.Pictures) == 0 {
		j.song.Thumbnail = nil
		return nil
	}
	pic := j.md.Pictures[0]
	key := coverKey(j.now, j.id, j.req.Filename, pic.Extension())
	if err := p.store.Save(ctx, key, bytes.NewReader(pic.Data), int64(len(pic.Data)), pic.MIMEType); err != nil {
		return fmt.Errorf("failed to store cover for %s: %w", j.req.Filename, err)
	}
	j.written = append(j.written, key)
	j.song.Thumbnail = &key
	return nil
}

func (p *Pipeline) commit(ctx context.Context, j *job) error {
	ctx, cancel := p.dbContext(ctx)
	defer cancel()
	if _, err := p.songs.CreateSong(ctx, j.song); err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}
	return nil
}

// cleanup deletes what the run stored unless orphans are kept. It runs even
// when ctx is already cancelled.
func (p *Pipeline) cleanup(ctx context.Context, j *job) {
	if len(j.written) == 0 {
		return
	}
	if p.opts.KeepOrphans {
		logger.Warn("保留孤立文件", logger.Strings("keys", j.written))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	for _, key := range j.written {
		if err := p.store.Delete(ctx, key); err != nil {
			logger.Error("清理上传文件失败", logger.String("key", key), logger.ErrorField(err))
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, song *model.Song) {
	ev, err := events.New(events.EventTypeSongUploaded, song.UserID, events.SongUploadedPayload{
		SongID:   song.ID,
		Title:    song.Title,
		Artist:   song.Artist,
		Mood:     song.Mood,
		FilePath: song.FilePath,
	})
	if err == nil {
		err = p.publisher.Publish(ctx, ev)
	}
	if err != nil {
		logger.Warn("发布上传事件失败", logger.Int64("songId", song.ID), logger.ErrorField(err))
	}
}
