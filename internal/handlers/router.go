package handlers

import (
	"net/http"
	"time"

	"mathblog/internal/metrics"

	"go.uber.org/zap"
)

type Router struct {
	Posts   *PostHandler
	Authors *AuthorHandler
	Pot     *PotHandler
	Admin   *AdminHandler
	Err     *ErrorHandler
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Handler builds the HTTP surface: JSON reads, the admin reload, health and
// metrics, wrapped in recovery, logging and instrumentation.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /posts", rt.Posts.ListPosts)
	mux.HandleFunc("GET /posts/{slug}", rt.Posts.GetPost)
	mux.HandleFunc("GET /posts/{slug}/raw", rt.Posts.RawPost)
	mux.HandleFunc("GET /authors", rt.Authors.ListAuthors)
	mux.HandleFunc("GET /authors/{name}", rt.Authors.ByAuthor)
	mux.HandleFunc("GET /pot", rt.Pot.Calculate)
	if rt.Admin != nil {
		mux.HandleFunc("POST /admin/reload", rt.Admin.Reload)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics.Handler())
	}

	return rt.instrument(rt.Err.RecoveryMiddleware(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (rt *Router) instrument(next http.Handler) http.Handler {
	logger := rt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if rt.Metrics != nil {
			rt.Metrics.ObserveRequest(route, rec.status, elapsed)
		}
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
	})
}
