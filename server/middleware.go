package server

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"MoodFM/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const requestIDKey contextKey = "requestId"

// RequestIDHeader is read from and echoed back to clients.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id, reusing the client's when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request, at a level chosen by status code.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			logger.String("request_id", GetRequestID(r.Context())),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.String("ip", clientIP(r, false)),
			logger.Int64("latency_ms", time.Since(start).Milliseconds()),
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			fields = append(fields, logger.String("forwarded_for", fwd))
		}
		switch {
		case rec.status >= 500:
			logger.Error("HTTP request failed with server error", fields...)
		case rec.status >= 400:
			logger.Warn("HTTP request failed with client error", fields...)
		default:
			logger.Info("HTTP request completed", fields...)
		}
	})
}

// Recovery turns a panic into a 500 JSON reply.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				logger.Error("Panic recovered",
					logger.Any("panic", rv),
					logger.String("request_id", GetRequestID(r.Context())),
					logger.String("stack", string(debug.Stack())))
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS 添加跨域响应头并直接响应预检请求
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter 按客户端IP限流
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	// trustForwarded keys clients by X-Forwarded-For. Only safe behind a
	// proxy that overwrites the header.
	trustForwarded bool
}

// NewRateLimiter allows perMinute requests per IP per minute. perMinute <= 0
// returns nil, which disables limiting.
func NewRateLimiter(perMinute int, trustForwarded bool) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		limiters:       make(map[string]*rate.Limiter),
		rate:           rate.Every(time.Minute / time.Duration(perMinute)),
		burst:          perMinute,
		trustForwarded: trustForwarded,
	}
}

// getLimiter 获取IP限流器
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[ip]
	rl.mu.RUnlock()
	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// 双重检查
	if limiter, exists = rl.limiters[ip]; exists {
		return limiter
	}
	// 简单清理，避免 map 无限增长
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = limiter
	return limiter
}

// Limit 限流中间件
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !rl.getLimiter(clientIP(r, rl.trustForwarded)).Allow() {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address, or the first X-Forwarded-For hop when
// trustForwarded is set.
func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			return strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
