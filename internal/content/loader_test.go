package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mathblog/internal/frontmatter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, body string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		slug string
		date time.Time
	}{
		{"2019-06-01-Euler's Identity.md", "euler-s-identity", time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"posts/primes.markdown", "primes", time.Time{}},
		{"2019-13-01-not-a-date.md", "2019-13-01-not-a-date", time.Time{}},
		{"__Fourier__Series__.md", "fourier-series", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			slug, date, err := Slug(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.slug, slug)
			assert.True(t, tt.date.Equal(date), "date %v", date)
		})
	}

	_, _, err := Slug("2019-06-01-!!!.md")
	assert.ErrorIs(t, err, ErrEmptySlug)
}

func TestPostID_Stable(t *testing.T) {
	assert.Equal(t, PostID("primes"), PostID("primes"))
	assert.NotEqual(t, PostID("primes"), PostID("groups"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short body", Excerpt("short\n\nbody", 200))
	assert.Equal(t, "one two…", Excerpt("one two three", 9))
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "2020-02-29-leap-years.md", "---\nlayout: post\nauthor: Gauss\n---\n\nEvery fourth year.\n")

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &Loader{Root: root, now: func() time.Time { return fixed }}

	post, err := l.LoadFile(context.Background(), "2020-02-29-leap-years.md")
	require.NoError(t, err)

	assert.Equal(t, "leap-years", post.Slug)
	assert.Equal(t, PostID("leap-years"), post.ID)
	assert.Equal(t, "2020-02-29-leap-years.md", post.Path)
	assert.Equal(t, "post", post.Layout)
	assert.Equal(t, "Gauss", post.Author)
	assert.Equal(t, "Every fourth year.\n", post.Body)
	assert.True(t, post.PublishedAt.Equal(time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, post.Checksum, 64)
	assert.Equal(t, fixed, post.ImportedAt)
}

func TestLoadFile_HeaderDateWins(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "2020-02-29-x.md", "---\ndate: 2021-01-01\n---\n")

	l := &Loader{Root: root}
	post, err := l.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2021, post.PublishedAt.Year())
}

func TestLoadFile_FallsBackToModTime(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "undated.md", "---\nauthor: x\n---\n")
	mtime := time.Date(2018, 5, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	l := &Loader{Root: root}
	post, err := l.LoadFile(context.Background(), "undated.md")
	require.NoError(t, err)
	assert.True(t, post.PublishedAt.Equal(mtime))
}

func TestLoadFile_ParseError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.md", "no header here")

	l := &Loader{Root: root}
	_, err := l.LoadFile(context.Background(), "bad.md")
	assert.ErrorIs(t, err, frontmatter.ErrNoFrontMatter)
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "2020-01-01-first.md", "---\nauthor: A\n---\none")
	writeFile(t, root, "2021-01-01-second.md", "---\nauthor: B\n---\ntwo")
	writeFile(t, root, "nested/2019-01-01-third.markdown", "---\nauthor: C\n---\nthree")
	writeFile(t, root, "broken.md", "---\nauthor: D\n")
	writeFile(t, root, "zz/2022-01-01-first.md", "---\nauthor: E\n---\ndup")
	writeFile(t, root, "notes.txt", "ignored")
	writeFile(t, root, ".drafts/2023-01-01-draft.md", "---\nauthor: F\n---\n")

	l := &Loader{Root: root, Workers: 2}
	res, err := l.LoadAll(context.Background())
	require.NoError(t, err)

	var slugs []string
	for _, p := range res.Posts {
		slugs = append(slugs, p.Slug)
	}
	assert.Equal(t, []string{"second", "first", "third"}, slugs)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, "broken.md", res.Failures[0].Path)
	assert.ErrorIs(t, res.Failures[0].Err, frontmatter.ErrUnterminated)
	assert.Equal(t, "zz/2022-01-01-first.md", res.Failures[1].Path)
	assert.ErrorIs(t, res.Failures[1].Err, ErrDuplicateSlug)
}

func TestLoadAll_FileBeforeSiblingDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "---\nauthor: Top\n---\n")
	writeFile(t, root, "a/a.md", "---\nauthor: Nested\n---\n")

	l := &Loader{Root: root}
	paths, err := l.Paths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "a/a.md"}, paths)

	res, err := l.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "Top", res.Posts[0].Author)
	assert.Equal(t, "a.md", res.Posts[0].Path)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "a/a.md", res.Failures[0].Path)
	assert.ErrorIs(t, res.Failures[0].Err, ErrDuplicateSlug)
}

func TestLoadAll_MissingRoot(t *testing.T) {
	l := &Loader{Root: filepath.Join(t.TempDir(), "nope")}
	_, err := l.LoadAll(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAll_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "---\n---\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &Loader{Root: root}
	_, err := l.LoadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
