package handlers

import (
	"context"
	"net/http"
	"strings"

	"mathblog/internal/importer"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Reloader re-imports the posts directory.
type Reloader interface {
	Run(ctx context.Context) (importer.Report, error)
}

type AdminHandler struct {
	// bcrypt hash of the admin bearer token; admin routes answer 404 when empty
	TokenHash string
	Reloader  Reloader
	Logger    *zap.Logger
	Err       *ErrorHandler
}

// HashToken returns the bcrypt hash to store in the admin_token_hash setting.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.TokenHash), []byte(token)) == nil
}

// Reload serves POST /admin/reload.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.TokenHash == "" {
		h.Err.NotFound(w, r)
		return
	}
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="mathblog"`)
		h.Err.Render(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	report, err := h.Reloader.Run(r.Context())
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}

	failures := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, f.Error())
	}
	if h.Logger != nil {
		h.Logger.Info("reload requested", zap.String("remote", r.RemoteAddr), zap.Int("failures", len(failures)))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result":   report.SyncResult,
		"failures": failures,
	})
}
