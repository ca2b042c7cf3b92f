package content

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var ErrEmptySlug = errors.New("content: file name yields an empty slug")

// postNamespace seeds the name-based post IDs so a slug always maps to the
// same ID across imports.
var postNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mathblog/posts"))

// Slug derives the URL identifier of a post from its file name. A leading
// YYYY-MM-DD- prefix is stripped and returned as the date.
func Slug(path string) (string, time.Time, error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var date time.Time
	if len(name) > 11 && name[10] == '-' {
		if t, err := time.Parse("2006-01-02", name[:10]); err == nil {
			date = t
			name = name[11:]
		}
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "", time.Time{}, ErrEmptySlug
	}
	return b.String(), date, nil
}

// PostID returns the stable ID for slug.
func PostID(slug string) string {
	return uuid.NewSHA1(postNamespace, []byte(slug)).String()
}

// Excerpt returns at most n runes of body, cut on a word boundary when one
// is close.
func Excerpt(body string, n int) string {
	s := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
