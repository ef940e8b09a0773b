// Package auth 提供 API 层的静态令牌认证。评测服务通常跑在内网，
// 只需要一把共享令牌挡住误访问。
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"VoxelBench/pkg/logger"
)

// Service 校验 Authorization 头中的 Bearer 令牌。
// 令牌为空时认证被禁用，所有请求直接放行。
type Service struct {
	token string
}

// NewService 创建认证服务。
func NewService(token string) *Service {
	return &Service{token: strings.TrimSpace(token)}
}

// Enabled 返回认证是否启用。
func (s *Service) Enabled() bool {
	return s != nil && s.token != ""
}

// Authenticate 校验原始 Authorization 头。
func (s *Service) Authenticate(header string) bool {
	if !s.Enabled() {
		return true
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	candidate := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.token)) == 1
}

// Middleware 返回一个 HTTP 中间件：认证失败返回 401，成功后记录审计日志。
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Authenticate(r.Header.Get("Authorization")) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			logger.Audit().Warn("access_denied",
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.Int("status", http.StatusUnauthorized),
			)
			return
		}
		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(aw, r)
		logger.Audit().Info("api_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", aw.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

// auditWriter 包装 http.ResponseWriter 以捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
