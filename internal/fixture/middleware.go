package fixture

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/arun0009/systemcerts/pkg/logger"
)

// loggingMiddleware logs requests and records Prometheus metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.cfg.LogHeaders {
			logger.Debug("request headers", "headers", r.Header)
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if s.cfg.LogRequests {
			logger.Info("request",
				"remote", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
				"proto", r.Proto,
				"status", rw.statusCode,
				"duration", time.Since(start),
				"request_id", rw.Header().Get("X-Request-ID"),
			)
		}

		s.metrics.requestLatency.Observe(time.Since(start).Seconds())
		s.metrics.requestTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
	})
}

// requestIDMiddleware ensures X-Request-ID is present and echoed back.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware enforces the global rate limiter, skipping the websocket path.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			s.metrics.rateLimitedTotal.Inc()
			return
		}
		next.ServeHTTP(w, r)
	})
}
