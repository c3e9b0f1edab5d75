package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"MoodFM/config"
	"MoodFM/core/metadata"
	"MoodFM/core/metadata/metadatatest"
	"MoodFM/core/upload"
	"MoodFM/events"
	"MoodFM/model"
	"MoodFM/repository"
	"MoodFM/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu    sync.Mutex
	users []*model.User
}

func (m *memUsers) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return 0, repository.ErrDuplicateUser
		}
	}
	var maxID int64
	for _, u := range m.users {
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	user.ID = maxID + 1
	m.users = append(m.users, user)
	return user.ID, nil
}

func (m *memUsers) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

type memSongs struct {
	mu    sync.Mutex
	songs []*model.Song
	err   error
}

func (m *memSongs) CreateSong(ctx context.Context, song *model.Song) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	song.ID = int64(len(m.songs) + 1)
	m.songs = append(m.songs, song)
	return song.ID, nil
}

func (m *memSongs) GetSongByID(ctx context.Context, id int64) (*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, song := range m.songs {
		if song.ID == id {
			return song, nil
		}
	}
	return nil, nil
}

type stubPlaylists struct {
	lists map[int64][]model.PlaylistSummary
	err   error
}

func (s *stubPlaylists) ListByUser(ctx context.Context, userID int64) ([]model.PlaylistSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.lists[userID]
	if out == nil {
		out = []model.PlaylistSummary{}
	}
	return out, nil
}

type memHistory struct {
	entries []*model.PlayHistory
}

func (m *memHistory) Append(ctx context.Context, h *model.PlayHistory) error {
	h.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, h)
	return nil
}

type recommenderFunc func(ctx context.Context, userID int64) ([]*model.Song, error)

func (f recommenderFunc) Recommend(ctx context.Context, userID int64) ([]*model.Song, error) {
	return f(ctx, userID)
}

type invalidations struct {
	users []int64
}

func (i *invalidations) Invalidate(ctx context.Context, userID int64) error {
	i.users = append(i.users, userID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type testEnv struct {
	cfg         *config.Config
	users       *memUsers
	songs       *memSongs
	playlists   *stubPlaylists
	history     *memHistory
	moods       *invalidations
	publisher   *recordingPublisher
	store       *storage.LocalStore
	recommended []*model.Song
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) (*testEnv, *Server, http.Handler) {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	users := &memUsers{users: []*model.User{
		{ID: 3, Email: "three@example.com"},
		{ID: 7, Email: "seven@example.com"},
	}}
	env := &testEnv{
		cfg:       cfg,
		users:     users,
		songs:     &memSongs{},
		playlists: &stubPlaylists{lists: map[int64][]model.PlaylistSummary{}},
		history:   &memHistory{},
		moods:     &invalidations{},
		publisher: &recordingPublisher{},
		store:     store,
	}
	pipeline := upload.NewPipeline(store, metadata.NewTagExtractor(nil), env.songs, env.users, env.publisher, upload.Options{
		ExtractTimeout: cfg.ExtractTimeout,
		DBTimeout:      cfg.DBTimeout,
	})
	s := New(Deps{
		Config:    cfg,
		Users:     env.users,
		Songs:     env.songs,
		Playlists: env.playlists,
		History:   env.history,
		Uploader:  pipeline,
		Recommender: recommenderFunc(func(ctx context.Context, userID int64) ([]*model.Song, error) {
			if userID == 500 {
				return nil, errors.New("db down")
			}
			return env.recommended, nil
		}),
		Moods:     env.moods,
		Publisher: env.publisher,
		Store:     store,
	})
	return env, s, NewRouter(s)
}

func doJSON(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/song", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) model.PublicUser {
	t.Helper()
	var body userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.User
}

func TestSignupThenLogin(t *testing.T) {
	_, _, h := newTestEnv(t, nil)
	creds := map[string]string{"email": "a@b.com", "password": "pw123"}

	rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	signedUp := decodeUser(t, rec)
	assert.NotZero(t, signedUp.ID)
	assert.Equal(t, "a@b.com", signedUp.Email)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := decodeUser(t, rec)
	assert.Equal(t, signedUp.ID, loggedIn.ID)
	assert.Equal(t, "a@b.com", loggedIn.Email)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestSignup_Duplicate(t *testing.T) {
	_, _, h := newTestEnv(t, nil)
	creds := map[string]string{"email": "a@b.com", "password": "pw123"}

	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/auth/signup", creds).Code)
	rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignup_Invalid(t *testing.T) {
	_, _, h := newTestEnv(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", map[string]string{"email": "nope", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_FailuresLookTheSame(t *testing.T) {
	_, _, h := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/auth/signup",
		map[string]string{"email": "a@b.com", "password": "pw123"}).Code)

	unknown := doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "x@b.com", "password": "pw123"})
	wrong := doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@b.com", "password": "bad"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.NotContains(t, wrong.Body.String(), "user")
}

func TestUploadSong_UntaggedTrack(t *testing.T) {
	env, _, h := newTestEnv(t, nil)

	req := multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7", "language": ""})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Song    map[string]interface{} `json:"song"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "track", body.Song["title"])
	assert.Equal(t, "Unknown Artist", body.Song["artist"])
	assert.Equal(t, "Unknown Album", body.Song["album"])
	assert.Equal(t, "Unknown", body.Song["genre"])
	assert.Equal(t, float64(7), body.Song["userId"])
	assert.Nil(t, body.Song["thumbnail"])
	assert.Nil(t, body.Song["language"])

	require.Len(t, env.songs.songs, 1)
	objects, err := env.store.List(context.Background(), storage.AudioPrefix)
	require.NoError(t, err)
	assert.Len(t, objects, 1)
}

func TestUploadSong_ServesStoredArtifact(t *testing.T) {
	env, _, h := newTestEnv(t, nil)
	data, err := metadatatest.ID3(metadatatest.Tags{
		Title:  "Cover Me",
		Covers: []metadatatest.Cover{{MIMEType: "image/png", Data: []byte("png-bytes")}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "cover.mp3", data, map[string]string{"userId": "3"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, env.songs.songs, 1)
	thumb := env.songs.songs[0].Thumbnail
	require.NotNil(t, thumb)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/"+*thumb, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestUploadSong_MissingUserID(t *testing.T) {
	env, _, h := newTestEnv(t, nil)

	for _, userID := range []string{"", "abc", "0", "-3"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": userID}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "userId=%q", userID)
	}

	objects, err := env.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects, "nothing stored for rejected uploads")
}

func TestUploadSong_UnknownUser(t *testing.T) {
	env, _, h := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "999999"}))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, upload.ErrMissingUser.Error())
	assert.Empty(t, env.songs.songs)

	stored, err := env.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, stored, "nothing stored for an unknown user")
}

func TestUploadSong_MissingFile(t *testing.T) {
	_, _, h := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "", nil, map[string]string{"userId": "7"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadSong_NotMultipart(t *testing.T) {
	_, _, h := newTestEnv(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/upload/song", map[string]string{"userId": "7"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadSong_TooLarge(t *testing.T) {
	_, _, h := newTestEnv(t, func(cfg *config.Config) { cfg.UploadMaxSizeMB = 0 })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7"}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadSong_Busy(t *testing.T) {
	_, s, h := newTestEnv(t, func(cfg *config.Config) { cfg.UploadMaxConcurrent = 1 })
	s.uploadSemaphore <- struct{}{}
	defer func() { <-s.uploadSemaphore }()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7"}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadSong_RateLimited(t *testing.T) {
	_, _, h := newTestEnv(t, func(cfg *config.Config) { cfg.UploadRatePerMinute = 1 })

	first := httptest.NewRecorder()
	h.ServeHTTP(first, multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7"}))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7"}))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestUploadSong_RateLimitIgnoresForwardedFor(t *testing.T) {
	_, _, h := newTestEnv(t, func(cfg *config.Config) { cfg.UploadRatePerMinute = 1 })

	for i, fwd := range []string{"10.0.0.1", "10.0.0.2"} {
		req := multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7"})
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, rec.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code, "rotating the header must not reset the limit")
		}
	}
}

func TestUploadSong_RateLimitTrustsForwardedFor(t *testing.T) {
	_, _, h := newTestEnv(t, func(cfg *config.Config) {
		cfg.UploadRatePerMinute = 1
		cfg.TrustForwardedFor = true
	})

	for _, fwd := range []string{"10.0.0.1", "10.0.0.2"} {
		req := multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7"})
		req.Header.Set("X-Forwarded-For", fwd+", 192.168.1.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "client %s", fwd)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")

	assert.Equal(t, "203.0.113.9", clientIP(req, false))
	assert.Equal(t, "10.0.0.1", clientIP(req, true))
}

func TestUploadSong_PipelineFailure(t *testing.T) {
	env, _, h := newTestEnv(t, nil)
	env.songs.err = errors.New("insert failed")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "track.mp3", metadatatest.PlainAudio(), map[string]string{"userId": "7"}))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Upload failed", body.Error)
	assert.Contains(t, body.Details, "insert failed")
}

func TestPlaylists(t *testing.T) {
	env, _, h := newTestEnv(t, nil)
	env.playlists.lists[7] = []model.PlaylistSummary{{ID: 1, Name: "Morning"}, {ID: 2, Name: "Night"}}

	rec := doJSON(t, h, http.MethodGet, "/api/playlists?userId=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Morning"},{"id":2,"name":"Night"}]`, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/playlists?userId=8", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/playlists", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.playlists.err = errors.New("db down")
	rec = doJSON(t, h, http.MethodGet, "/api/playlists?userId=7", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestPlaySong(t *testing.T) {
	env, _, h := newTestEnv(t, nil)
	env.songs.songs = append(env.songs.songs, &model.Song{ID: 42, Title: "Sunny", Mood: "happy"})

	rec := doJSON(t, h, http.MethodPost, "/api/song/play", map[string]int64{"userId": 7, "songId": 42})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	require.Len(t, env.history.entries, 1)
	assert.Equal(t, int64(42), env.history.entries[0].SongID)
	assert.False(t, env.history.entries[0].PlayedAt.IsZero())
	assert.Equal(t, []int64{7}, env.moods.users)
	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, events.EventTypeSongPlayed, env.publisher.events[0].Type)

	rec = doJSON(t, h, http.MethodPost, "/api/song/play", map[string]int64{"userId": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaySong_UnknownSong(t *testing.T) {
	env, _, h := newTestEnv(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/song/play", map[string]int64{"userId": 7, "songId": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.history.entries)
	assert.Empty(t, env.moods.users)
	assert.Empty(t, env.publisher.events)
}

func TestPlaySong_UnknownUser(t *testing.T) {
	env, _, h := newTestEnv(t, nil)
	env.songs.songs = append(env.songs.songs, &model.Song{ID: 42})

	rec := doJSON(t, h, http.MethodPost, "/api/song/play", map[string]int64{"userId": 999999, "songId": 42})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.history.entries)
}

func TestRecommendations(t *testing.T) {
	env, _, h := newTestEnv(t, nil)
	env.recommended = []*model.Song{{ID: 9, Title: "Sunny", Mood: "happy"}}

	rec := doJSON(t, h, http.MethodGet, "/api/user/recommendations?userId=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var songs []model.Song
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &songs))
	require.Len(t, songs, 1)
	assert.Equal(t, "Sunny", songs[0].Title)

	rec = doJSON(t, h, http.MethodGet, "/api/user/recommendations?userId=500", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/user/recommendations?userId=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatic_NotFound(t *testing.T) {
	_, _, h := newTestEnv(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/uploads/audio/missing.mp3", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	_, _, h := newTestEnv(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	_, _, h := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `{"error":"Internal server error"}`, string(body))
}

func TestRequestID_Reused(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
