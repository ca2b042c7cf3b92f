package handlers

import (
	"encoding/json"
	"net/http"

	"mathblog/internal/models"

	"go.uber.org/zap"
)

type ErrorHandler struct {
	Logger *zap.Logger
}

// writeJSON encodes v before writing the header so an encoding failure
// still becomes a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(models.RequestError{Error: true, Message: "Internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func (h *ErrorHandler) Render(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.RequestError{
		Error:   true,
		Message: msg,
	})
}

func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Render(w, http.StatusNotFound, "Not found")
}

// Internal logs err and answers 500 without leaking it to the client.
func (h *ErrorHandler) Internal(w http.ResponseWriter, r *http.Request, err error) {
	if h != nil && h.Logger != nil {
		h.Logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	h.Render(w, http.StatusInternalServerError, "Internal server error")
}

func (h *ErrorHandler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if h != nil && h.Logger != nil {
					h.Logger.Error("panic serving request", zap.String("path", r.URL.Path), zap.Any("panic", rec))
				}
				h.Render(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
