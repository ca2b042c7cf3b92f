// Package content reads post files from a directory tree and turns them into
// models.Post values.
package content

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mathblog/internal/frontmatter"
	"mathblog/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

var ErrDuplicateSlug = errors.New("content: duplicate slug")

// Failure records a file that could not be turned into a post.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return f.Path + ": " + f.Err.Error() }

type Result struct {
	Posts    []models.Post
	Failures []Failure
}

type Loader struct {
	Root    string
	Logger  *zap.Logger
	Workers int

	now func() time.Time
}

// IsPostFile reports whether path names a file the loader reads.
func IsPostFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return !strings.HasPrefix(filepath.Base(path), ".")
	}
	return false
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *Loader) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now().UTC()
}

// LoadFile reads and parses a single post. path may be absolute or relative
// to Root.
func (l *Loader) LoadFile(ctx context.Context, path string) (models.Post, error) {
	if err := ctx.Err(); err != nil {
		return models.Post{}, err
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(l.Root, path)
	}
	rel, err := filepath.Rel(l.Root, full)
	if err != nil {
		return models.Post{}, fmt.Errorf("content: %s is outside %s: %w", path, l.Root, err)
	}
	rel = filepath.ToSlash(rel)

	data, err := os.ReadFile(full)
	if err != nil {
		return models.Post{}, err
	}
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return models.Post{}, err
	}

	slug, fileDate, err := Slug(rel)
	if err != nil {
		return models.Post{}, err
	}

	published := doc.Header.Date
	if published.IsZero() {
		published = fileDate
	}
	if published.IsZero() {
		info, err := os.Stat(full)
		if err != nil {
			return models.Post{}, err
		}
		published = info.ModTime()
	}

	sum := blake2b.Sum256(data)
	return models.Post{
		ID:          PostID(slug),
		Slug:        slug,
		Path:        rel,
		Layout:      doc.Header.Layout,
		Author:      doc.Header.Author,
		Title:       doc.Header.Title,
		Tags:        doc.Header.Tags,
		Body:        doc.Body,
		PublishedAt: published.UTC(),
		Checksum:    hex.EncodeToString(sum[:]),
		ImportedAt:  l.clock(),
	}, nil
}

// Paths lists the post files under Root, relative to it in slash form and
// sorted, so that "a.md" comes before "a/a.md". Dot-directories are skipped.
func (l *Loader) Paths(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsPostFile(path) {
			paths = append(paths, relOrSelf(l.Root, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("content: walk %s: %w", l.Root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadAll parses every post file under Root. Files that fail to parse are
// reported in Result.Failures and skipped; only a failure to walk the tree
// is returned as an error. When two files share a slug the first in Paths
// order wins.
func (l *Loader) LoadAll(ctx context.Context) (Result, error) {
	paths, err := l.Paths(ctx)
	if err != nil {
		return Result{}, err
	}

	workers := l.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	posts := make([]models.Post, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			post, err := l.LoadFile(gctx, filepath.FromSlash(path))
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			posts[i] = post
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	seen := make(map[string]string, len(paths))
	for i, rel := range paths {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Path: rel, Err: errs[i]})
			continue
		}
		first, dup := seen[posts[i].Slug]
		if dup {
			res.Failures = append(res.Failures, Failure{
				Path: rel,
				Err:  fmt.Errorf("%w %q, already used by %s", ErrDuplicateSlug, posts[i].Slug, first),
			})
			continue
		}
		seen[posts[i].Slug] = rel
		res.Posts = append(res.Posts, posts[i])
	}

	SortPosts(res.Posts)

	for _, f := range res.Failures {
		l.logger().Warn("skipping post file", zap.String("path", f.Path), zap.Error(f.Err))
	}
	l.logger().Info("loaded posts",
		zap.String("root", l.Root),
		zap.Int("posts", len(res.Posts)),
		zap.Int("failures", len(res.Failures)),
	)
	return res, nil
}

// SortPosts orders posts newest first, ties broken by slug.
func SortPosts(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].PublishedAt.Equal(posts[j].PublishedAt) {
			return posts[i].PublishedAt.After(posts[j].PublishedAt)
		}
		return posts[i].Slug < posts[j].Slug
	})
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
