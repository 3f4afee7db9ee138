package rpc

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rustchain-network/rustchain/network/httputil"
)

// requestLogger tags every request with an id and logs its outcome. The id
// stays in logs only; responses carry just the error code and detail.
func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.New().String()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.WithFields(logrus.Fields{
			"requestID": reqID,
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    sw.status,
			"duration":  time.Since(start),
		}).Debug("Handled request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// admin gates a handler behind the X-Admin-Key header. An empty configured
// key disables the whole admin surface rather than opening it.
func (s *Service) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if s.cfg.AdminKey == "" || key == "" || key != s.cfg.AdminKey {
			httputil.HandleError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}
		next(w, r)
	}
}
