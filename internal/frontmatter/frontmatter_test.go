package frontmatter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_LayoutAndAuthor(t *testing.T) {
	doc, err := Parse([]byte("---\nlayout: post\nauthor: Ada\n---\n\nThe harmonic series diverges.\n"))
	require.NoError(t, err)

	assert.Equal(t, "post", doc.Header.Layout)
	assert.Equal(t, "Ada", doc.Header.Author)
	assert.Equal(t, "The harmonic series diverges.\n", doc.Body)
	assert.Nil(t, doc.Header.Extra)
}

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		header Header
		body   string
	}{
		{
			name:   "crlf line endings",
			input:  "---\r\nlayout: post\r\nauthor: Ada\r\n---\r\n\r\nbody\r\n",
			header: Header{Layout: "post", Author: "Ada"},
			body:   "body\r\n",
		},
		{
			name:   "byte order mark",
			input:  "\xef\xbb\xbf---\nauthor: Ada\n---\nbody",
			header: Header{Author: "Ada"},
			body:   "body",
		},
		{
			name:   "empty header",
			input:  "---\n---\nbody",
			header: Header{},
			body:   "body",
		},
		{
			name:   "dots close the header",
			input:  "---\nlayout: page\n...\nbody",
			header: Header{Layout: "page"},
			body:   "body",
		},
		{
			name:   "closing delimiter at end of file",
			input:  "---\nlayout: page\n---",
			header: Header{Layout: "page"},
			body:   "",
		},
		{
			name:   "only one blank line dropped",
			input:  "---\nlayout: page\n---\n\n\nbody",
			header: Header{Layout: "page"},
			body:   "\nbody",
		},
		{
			name:   "non string scalars",
			input:  "---\nlayout: 3\nauthor: true\n---\n",
			header: Header{Layout: "3", Author: "true"},
			body:   "",
		},
		{
			name:   "tags as string",
			input:  "---\ntags: calculus series\n---\n",
			header: Header{Tags: []string{"calculus", "series"}},
		},
		{
			name:   "tags as list",
			input:  "---\ntags: [calculus, 2]\n---\n",
			header: Header{Tags: []string{"calculus", "2"}},
		},
		{
			name:   "unknown keys kept",
			input:  "---\nlayout: post\nmathjax: true\n---\n",
			header: Header{Layout: "post", Extra: map[string]any{"mathjax": true}},
		},
		{
			name:   "date",
			input:  "---\ndate: 2021-03-14\n---\n",
			header: Header{Date: time.Date(2021, 3, 14, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:   "date with time and zone",
			input:  "---\ndate: 2021-03-14 15:09:26 +0100\n---\n",
			header: Header{Date: time.Date(2021, 3, 14, 14, 9, 26, 0, time.UTC)},
		},
		{
			name:   "quoted whitespace kept",
			input:  "---\ntitle: \"  On limits \"\n---\n",
			header: Header{Title: "  On limits "},
		},
		{
			name:   "body containing a delimiter",
			input:  "---\nlayout: post\n---\nabove\n---\nbelow\n",
			header: Header{Layout: "post"},
			body:   "above\n---\nbelow\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.header, doc.Header); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.body, doc.Body)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty file", "", ErrNoFrontMatter},
		{"no header", "just prose\n", ErrNoFrontMatter},
		{"indented delimiter", " ---\nlayout: post\n---\n", ErrNoFrontMatter},
		{"only opening line", "---", ErrUnterminated},
		{"never closed", "---\nlayout: post\nbody\n", ErrUnterminated},
		{"bad date", "---\ndate: yesterday\n---\n", ErrBadDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_HeaderNotAMapping(t *testing.T) {
	_, err := Parse([]byte("---\n- a\n- b\n---\nbody"))
	require.Error(t, err)

	var herr *HeaderError
	require.ErrorAs(t, err, &herr)
	assert.Empty(t, herr.Key)
}

func TestParse_NestedTagRejected(t *testing.T) {
	_, err := Parse([]byte("---\ntags:\n  - {a: b}\n---\n"))

	var herr *HeaderError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "tags", herr.Key)
}

func TestParse_DoesNotMutateInput(t *testing.T) {
	input := []byte("---\r\nlayout: post\r\n---\r\n\r\nbody")
	orig := append([]byte(nil), input...)

	_, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, orig, input)
}

func TestMarshal_RoundTrip(t *testing.T) {
	docs := []Document{
		{},
		{Header: Header{Layout: "post", Author: "Ada"}, Body: "Some prose.\n"},
		{Header: Header{Layout: "post"}, Body: "\nstarts with a blank line"},
		{
			Header: Header{
				Layout: "post",
				Author: "Emmy",
				Title:  "Rings",
				Date:   time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
				Tags:   []string{"algebra"},
				Extra:  map[string]any{"mathjax": true},
			},
			Body: "Ideals.\n",
		},
		{Header: Header{Date: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)}},
		{Header: Header{Author: " Ada ", Title: "  padded title", Tags: []string{" spaced tag "}}},
	}

	for _, doc := range docs {
		raw, err := Marshal(doc)
		require.NoError(t, err)

		got, err := Parse(raw)
		require.NoError(t, err, string(raw))
		if diff := cmp.Diff(doc, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s\nraw:\n%s", diff, raw)
		}
	}
}
