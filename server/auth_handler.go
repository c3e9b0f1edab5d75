package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"MoodFM/core/auth"
	"MoodFM/logger"
	"MoodFM/model"
	"MoodFM/repository"
)

// credentials is the body of signup and login.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User model.PublicUser `json:"user"`
}

const invalidCredentials = "Invalid email or password"

func decodeCredentials(r *http.Request) (credentials, error) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	req.Email = strings.TrimSpace(req.Email)
	return req, nil
}

// SignupHandler handles user registration requests
func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		logger.Warn("[Signup] 解析请求体失败", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") || req.Password == "" {
		writeError(w, http.StatusBadRequest, "A valid email and a password are required")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Signup] 密码加密失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user := &model.User{Email: req.Email, PasswordHash: hashedPassword}
	ctx, cancel := s.dbContext(r.Context())
	defer cancel()

	if _, err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("[Signup] 邮箱已存在", logger.String("email", req.Email))
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		logger.Error("[Signup] 创建用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	logger.Info("[Signup] 注册成功", logger.Int64("userId", user.ID))
	writeJSON(w, http.StatusCreated, userResponse{User: user.Public()})
}

// LoginHandler handles user login requests. Unknown email and wrong password
// get the same 401 body.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		logger.Warn("[Login] 解析请求体失败", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx, cancel := s.dbContext(r.Context())
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		logger.Error("[Login] 查询用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		logger.Warn("[Login] 用户不存在", logger.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Warn("[Login] 密码验证失败", logger.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	logger.Info("[Login] 登录成功", logger.Int64("userId", user.ID))
	writeJSON(w, http.StatusOK, userResponse{User: user.Public()})
}
