package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mathblog/internal/models"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("post not found")

// Change describes what Upsert did with a post.
type Change int

const (
	Unchanged Change = iota
	Added
	Updated
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

type Filter struct {
	Author string
	Layout string
	Tag    string
	Query  string
	Limit  int
	Offset int
}

type SyncResult struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Changed reports whether the sync touched the database.
func (r SyncResult) Changed() bool {
	return r.Added+r.Updated+r.Removed > 0
}

type Store struct {
	DB     *sql.DB
	Logger *zap.Logger
}

func (s *Store) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Upsert stores post, replacing an earlier version with the same slug when
// its checksum or its path differs.
func (s *Store) Upsert(ctx context.Context, post models.Post) (Change, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Unchanged, err
	}
	defer tx.Rollback()

	var checksum, path string
	err = tx.QueryRowContext(ctx, "SELECT checksum, path FROM posts WHERE slug = ?", post.Slug).Scan(&checksum, &path)

	change := Updated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		change = Added
		_, err = tx.ExecContext(ctx, `
			INSERT INTO posts (id, slug, path, layout, author, title, body, published_at, checksum, imported_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			post.ID, post.Slug, post.Path, post.Layout, post.Author, post.Title, post.Body,
			post.PublishedAt.UTC(), post.Checksum, post.ImportedAt.UTC())
		if err != nil {
			return Unchanged, fmt.Errorf("insert post %s: %w", post.Slug, err)
		}
	case err != nil:
		return Unchanged, err
	case checksum == post.Checksum && path == post.Path:
		return Unchanged, nil
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE posts
			SET path = ?, layout = ?, author = ?, title = ?, body = ?,
			    published_at = ?, checksum = ?, imported_at = ?
			WHERE slug = ?`,
			post.Path, post.Layout, post.Author, post.Title, post.Body,
			post.PublishedAt.UTC(), post.Checksum, post.ImportedAt.UTC(), post.Slug)
		if err != nil {
			return Unchanged, fmt.Errorf("update post %s: %w", post.Slug, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = ?", post.ID); err != nil {
		return Unchanged, err
	}
	for _, tag := range post.Tags {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO post_tags (post_id, tag) VALUES (?, ?)", post.ID, tag); err != nil {
			return Unchanged, fmt.Errorf("tag post %s: %w", post.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Unchanged, err
	}
	return change, nil
}

const postColumns = "id, slug, path, layout, author, title, body, published_at, checksum, imported_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.Slug, &p.Path, &p.Layout, &p.Author, &p.Title, &p.Body,
		&p.PublishedAt, &p.Checksum, &p.ImportedAt)
	return p, err
}

func (s *Store) Get(ctx context.Context, slug string) (models.Post, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE slug = ?", slug)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, err
	}
	post.Tags, err = s.tags(ctx, post.ID)
	return post, err
}

func (s *Store) List(ctx context.Context, f Filter) ([]models.Post, error) {
	query := "SELECT " + postColumns + " FROM posts p WHERE 1=1"
	var args []any

	if f.Author != "" {
		query += " AND p.author = ?"
		args = append(args, f.Author)
	}
	if f.Layout != "" {
		query += " AND p.layout = ?"
		args = append(args, f.Layout)
	}
	if f.Tag != "" {
		query += " AND p.id IN (SELECT post_id FROM post_tags WHERE tag = ?)"
		args = append(args, f.Tag)
	}
	if f.Query != "" {
		query += " AND (p.title LIKE ? ESCAPE '\\' OR p.body LIKE ? ESCAPE '\\')"
		pattern := "%" + escapeLike(f.Query) + "%"
		args = append(args, pattern, pattern)
	}

	query += " ORDER BY p.published_at DESC, p.slug"

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range posts {
		if posts[i].Tags, err = s.tags(ctx, posts[i].ID); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) tags(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT tag FROM post_tags WHERE post_id = ? ORDER BY tag", postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *Store) Authors(ctx context.Context) ([]models.Author, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT author, COUNT(*)
		FROM posts
		WHERE author != ''
		GROUP BY author
		ORDER BY COUNT(*) DESC, author`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []models.Author
	for rows.Next() {
		var a models.Author
		if err := rows.Scan(&a.Name, &a.Posts); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// DeleteByPath removes the post imported from path, if any.
func (s *Store) DeleteByPath(ctx context.Context, path string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM posts WHERE path = ?", path)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteUnder removes every post imported from a file below dir and returns
// their slugs.
func (s *Store) DeleteUnder(ctx context.Context, dir string) ([]string, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT slug FROM posts WHERE substr(path, 1, length(?1)) = ?1", prefix)
	if err != nil {
		return nil, err
	}
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			rows.Close()
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE substr(path, 1, length(?1)) = ?1", prefix); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return slugs, nil
}

// Prune deletes every post whose slug is not in keep and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, keep []string) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "CREATE TEMP TABLE IF NOT EXISTS keep_slugs (slug TEXT PRIMARY KEY)"); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM keep_slugs"); err != nil {
		return 0, err
	}
	for _, slug := range keep {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO keep_slugs (slug) VALUES (?)", slug); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE slug NOT IN (SELECT slug FROM keep_slugs)")
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Sync makes the posts table mirror posts: new and changed posts are
// written, posts missing from the slice are removed.
func (s *Store) Sync(ctx context.Context, posts []models.Post) (SyncResult, error) {
	var res SyncResult
	keep := make([]string, 0, len(posts))
	for _, post := range posts {
		change, err := s.Upsert(ctx, post)
		if err != nil {
			return res, err
		}
		switch change {
		case Added:
			res.Added++
		case Updated:
			res.Updated++
		default:
			res.Unchanged++
		}
		if change != Unchanged {
			s.logger().Debug("post stored", zap.String("slug", post.Slug), zap.Stringer("change", change))
		}
		keep = append(keep, post.Slug)
	}

	removed, err := s.Prune(ctx, keep)
	if err != nil {
		return res, err
	}
	res.Removed = removed

	s.logger().Info("posts synced",
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("removed", res.Removed),
	)
	return res, nil
}
