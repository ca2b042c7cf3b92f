// Package importer keeps the database in step with the posts directory.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"mathblog/internal/cache"
	"mathblog/internal/content"
	"mathblog/internal/db"
	"mathblog/internal/metrics"
	"mathblog/internal/models"

	"go.uber.org/zap"
)

type Report struct {
	db.SyncResult
	Failures []content.Failure `json:"-"`
}

type Importer struct {
	Loader  *content.Loader
	Store   *db.Store
	Cache   cache.Cache
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// serialises imports; the watcher and /admin/reload may race
	mu sync.Mutex
}

func (im *Importer) logger() *zap.Logger {
	if im.Logger == nil {
		return zap.NewNop()
	}
	return im.Logger
}

// Run loads the whole posts directory and syncs it into the store.
func (im *Importer) Run(ctx context.Context) (Report, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	loaded, err := im.Loader.LoadAll(ctx)
	if err != nil {
		im.observe(db.SyncResult{}, err)
		return Report{}, err
	}

	res, err := im.Store.Sync(ctx, loaded.Posts)
	im.observe(res, err)
	if err != nil {
		return Report{}, err
	}
	if res.Changed() {
		im.flush()
	}
	return Report{SyncResult: res, Failures: loaded.Failures}, nil
}

// Apply re-reads only the given paths, named relative to the loader root.
// A post file that no longer exists has its post removed; a path that is
// gone and is not a post file is taken to be a directory and every post
// under it is removed. Removals run first, so a file moved within the batch
// ends up stored under its new path. A file whose slug is already owned by
// an existing file earlier in path order is skipped as a duplicate.
func (im *Importer) Apply(ctx context.Context, paths []string) (db.SyncResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var (
		res      db.SyncResult
		upserts  []string
		orphaned = make(map[string]bool)
	)
	for _, path := range paths {
		rel := filepath.ToSlash(filepath.Clean(path))
		info, err := os.Stat(im.fullPath(rel))
		switch {
		case err == nil:
			if !info.IsDir() && content.IsPostFile(rel) {
				upserts = append(upserts, rel)
			}
			continue
		case !errors.Is(err, fs.ErrNotExist):
			im.logger().Warn("skipping path", zap.String("path", rel), zap.Error(err))
			continue
		}

		if content.IsPostFile(rel) {
			removed, err := im.Store.DeleteByPath(ctx, rel)
			if err != nil {
				im.observe(res, err)
				return res, err
			}
			if removed {
				res.Removed++
				if slug, _, err := content.Slug(rel); err == nil {
					orphaned[slug] = true
				}
			}
			continue
		}
		slugs, err := im.Store.DeleteUnder(ctx, rel)
		if err != nil {
			im.observe(res, err)
			return res, err
		}
		res.Removed += len(slugs)
		for _, slug := range slugs {
			orphaned[slug] = true
		}
	}

	// A removed post may have lost its slug to a file that was a duplicate.
	if len(orphaned) > 0 {
		all, err := im.Loader.Paths(ctx)
		if err != nil {
			im.observe(res, err)
			return res, err
		}
		for _, rel := range all {
			if slug, _, err := content.Slug(rel); err == nil && orphaned[slug] {
				upserts = append(upserts, rel)
				delete(orphaned, slug)
			}
		}
	}

	slices.Sort(upserts)
	upserts = slices.Compact(upserts)
	for _, rel := range upserts {
		post, err := im.Loader.LoadFile(ctx, filepath.FromSlash(rel))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			im.logger().Warn("skipping post file", zap.String("path", rel), zap.Error(err))
			continue
		}

		owner, err := im.owner(ctx, post)
		if err != nil {
			im.observe(res, err)
			return res, err
		}
		if owner != "" {
			im.logger().Warn("skipping post file", zap.String("path", rel),
				zap.Error(fmt.Errorf("%w %q, already used by %s", content.ErrDuplicateSlug, post.Slug, owner)))
			continue
		}

		change, err := im.Store.Upsert(ctx, post)
		if err != nil {
			im.observe(res, err)
			return res, err
		}
		switch change {
		case db.Added:
			res.Added++
		case db.Updated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}

	im.observe(res, nil)
	if res.Changed() {
		im.flush()
	}
	im.logger().Info("applied post changes",
		zap.Int("paths", len(paths)),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("removed", res.Removed),
	)
	return res, nil
}

// owner returns the path of the existing file that keeps post's slug, or ""
// when post may be stored.
func (im *Importer) owner(ctx context.Context, post models.Post) (string, error) {
	stored, err := im.Store.Get(ctx, post.Slug)
	if errors.Is(err, db.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if stored.Path == post.Path || stored.Path > post.Path {
		return "", nil
	}
	if _, err := os.Stat(im.fullPath(stored.Path)); err != nil {
		return "", nil
	}
	return stored.Path, nil
}

func (im *Importer) fullPath(rel string) string {
	return filepath.Join(im.Loader.Root, filepath.FromSlash(rel))
}

func (im *Importer) observe(res db.SyncResult, err error) {
	if im.Metrics != nil {
		im.Metrics.ObserveSync(res.Added, res.Updated, res.Removed, err)
	}
}

func (im *Importer) flush() {
	if im.Cache != nil {
		im.Cache.Flush()
	}
}
