package handlers

import (
	"net/http"
	"strings"

	"mathblog/internal/db"
)

// parseFilter reads the list filters shared by /posts and /authors/{name}.
func parseFilter(r *http.Request) (db.Filter, error) {
	q := r.URL.Query()

	limit, err := queryInt(r, "limit")
	if err != nil {
		return db.Filter{}, err
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return db.Filter{}, err
	}

	return db.Filter{
		Author: strings.TrimSpace(q.Get("author")),
		Layout: strings.TrimSpace(q.Get("layout")),
		Tag:    strings.TrimSpace(q.Get("tag")),
		Query:  strings.TrimSpace(q.Get("q")),
		Limit:  limit,
		Offset: offset,
	}, nil
}

type AuthorHandler struct {
	Store *db.Store
	Err   *ErrorHandler
}

// ListAuthors serves GET /authors.
func (h *AuthorHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.Store.Authors(r.Context())
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authors": authors})
}

// ByAuthor serves GET /authors/{name}: the author's posts, newest first.
func (h *AuthorHandler) ByAuthor(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.Err.Render(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Author = r.PathValue("name")

	posts, err := h.Store.List(r.Context(), filter)
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}
	if len(posts) == 0 && filter.Offset == 0 {
		h.Err.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, postList{
		Posts:  summarize(posts),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}
