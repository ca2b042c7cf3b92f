package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mathblog/internal/cache"
	"mathblog/internal/content"
	"mathblog/internal/db"
	"mathblog/internal/frontmatter"
	"mathblog/internal/models"
)

const (
	excerptLength = 200
	maxPageSize   = 100
)

type PostHandler struct {
	Store    *db.Store
	Cache    cache.Cache
	CacheTTL time.Duration
	Err      *ErrorHandler
}

type postList struct {
	Posts  []models.Post `json:"posts"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (h *PostHandler) cache() cache.Cache {
	if h.Cache == nil {
		return cache.Nop{}
	}
	return h.Cache
}

// ListPosts serves GET /posts. Bodies are replaced by excerpts.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.Err.Render(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := h.Store.List(r.Context(), filter)
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postList{
		Posts:  summarize(posts),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func summarize(posts []models.Post) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		p.Excerpt = content.Excerpt(p.Body, excerptLength)
		p.Body = ""
		out = append(out, p)
	}
	return out
}

// GetPost serves GET /posts/{slug}.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	key := "post:" + slug

	if cached, ok := h.cache().Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.Write(cached)
		return
	}

	post, err := h.Store.Get(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		h.Err.NotFound(w, r)
		return
	}
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}

	body, err := json.Marshal(post)
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}
	body = append(body, '\n')
	h.cache().Set(key, body, h.CacheTTL)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	w.Write(body)
}

// RawPost serves GET /posts/{slug}/raw: the post in its on-disk format.
func (h *PostHandler) RawPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.Store.Get(r.Context(), r.PathValue("slug"))
	if errors.Is(err, db.ErrNotFound) {
		h.Err.NotFound(w, r)
		return
	}
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}

	raw, err := frontmatter.Marshal(frontmatter.Document{
		Header: frontmatter.Header{
			Layout: post.Layout,
			Author: post.Author,
			Title:  post.Title,
			Date:   post.PublishedAt,
			Tags:   post.Tags,
		},
		Body: post.Body,
	})
	if err != nil {
		h.Err.Internal(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write(raw)
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
