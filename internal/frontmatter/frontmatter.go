// Package frontmatter splits a post file into its YAML metadata header and
// its prose body.
//
// A post looks like:
//
//	---
//	layout: post
//	author: Jane
//	---
//
//	Body text.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoFrontMatter = errors.New("frontmatter: document does not start with ---")
	ErrUnterminated  = errors.New("frontmatter: header is not terminated")
	ErrBadDate       = errors.New("frontmatter: unrecognised date")
)

// HeaderError reports a header that is not valid YAML or carries a value of
// the wrong shape.
type HeaderError struct {
	Key string
	Err error
}

func (e *HeaderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("frontmatter: header key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("frontmatter: header: %v", e.Err)
}

func (e *HeaderError) Unwrap() error { return e.Err }

// Header holds the metadata of a post. Keys without a dedicated field are
// kept in Extra.
type Header struct {
	Layout string
	Author string
	Title  string
	Date   time.Time
	Tags   []string
	Extra  map[string]any
}

type Document struct {
	Header Header
	Body   string
}

var bom = []byte("\xef\xbb\xbf")

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parse reads a document. The input slice is never modified.
func Parse(data []byte) (Document, error) {
	data = bytes.TrimPrefix(data, bom)

	first, rest, ok := cutLine(data)
	if !isDelimiter(first, false) {
		return Document{}, ErrNoFrontMatter
	}
	if !ok {
		return Document{}, ErrUnterminated
	}

	var (
		header []byte
		body   []byte
		closed bool
	)
	offset := 0
	for offset <= len(rest) {
		line, tail, more := cutLine(rest[offset:])
		if isDelimiter(line, true) {
			header = rest[:offset]
			body = tail
			closed = true
			break
		}
		if !more {
			break
		}
		offset = len(rest) - len(tail)
	}
	if !closed {
		return Document{}, ErrUnterminated
	}

	h, err := decodeHeader(header)
	if err != nil {
		return Document{}, err
	}

	return Document{Header: h, Body: string(dropBlankLine(body))}, nil
}

// cutLine returns the first line of b without its terminator, the remainder
// after the terminator, and whether a terminator was found.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return b[:i], b[i+1:], true
}

func isDelimiter(line []byte, closing bool) bool {
	s := strings.TrimRight(string(line), " \t\r")
	if s == "---" {
		return true
	}
	return closing && s == "..."
}

func dropBlankLine(b []byte) []byte {
	if bytes.HasPrefix(b, []byte("\r\n")) {
		return b[2:]
	}
	if bytes.HasPrefix(b, []byte("\n")) {
		return b[1:]
	}
	return b
}

func decodeHeader(raw []byte) (Header, error) {
	var h Header
	if len(bytes.TrimSpace(raw)) == 0 {
		return h, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return h, &HeaderError{Err: err}
	}

	for key, value := range fields {
		switch key {
		case "layout":
			h.Layout = scalar(value)
		case "author":
			h.Author = scalar(value)
		case "title":
			h.Title = scalar(value)
		case "date":
			t, err := parseDate(value)
			if err != nil {
				return Header{}, &HeaderError{Key: key, Err: err}
			}
			h.Date = t
		case "tags":
			tags, err := parseTags(value)
			if err != nil {
				return Header{}, &HeaderError{Key: key, Err: err}
			}
			h.Tags = tags
		default:
			if h.Extra == nil {
				h.Extra = make(map[string]any)
			}
			h.Extra[key] = value
		}
	}
	return h, nil
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return d, nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	default:
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadDate, v)
	}
}

func parseTags(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(t), nil
	case []any:
		tags := make([]string, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("tag %v is not a scalar", item)
			}
			if s := scalar(item); s != "" {
				tags = append(tags, s)
			}
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("expected a list or a string, got %T", v)
	}
}

type headerYAML struct {
	Layout string         `yaml:"layout,omitempty"`
	Author string         `yaml:"author,omitempty"`
	Title  string         `yaml:"title,omitempty"`
	Date   string         `yaml:"date,omitempty"`
	Tags   []string       `yaml:"tags,omitempty"`
	Extra  map[string]any `yaml:",inline"`
}

// Marshal writes doc back in the format Parse reads.
func Marshal(doc Document) ([]byte, error) {
	h := doc.Header
	out := headerYAML{
		Layout: h.Layout,
		Author: h.Author,
		Title:  h.Title,
		Tags:   h.Tags,
		Extra:  h.Extra,
	}
	if !h.Date.IsZero() {
		out.Date = formatDate(h.Date)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	if !isEmpty(out) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return nil, fmt.Errorf("frontmatter: encode header: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("frontmatter: encode header: %w", err)
		}
	}
	buf.WriteString("---\n\n")
	buf.WriteString(doc.Body)
	return buf.Bytes(), nil
}

func isEmpty(h headerYAML) bool {
	return h.Layout == "" && h.Author == "" && h.Title == "" && h.Date == "" &&
		len(h.Tags) == 0 && len(h.Extra) == 0
}

func formatDate(t time.Time) string {
	if t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}
