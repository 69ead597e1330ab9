package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantTitle   string
		wantTags    []string
		wantRelated []domain.EntryID
	}{
		{
			name:      "header metadata",
			content:   "Biking in PA\n#tags biking,pennsylvania\nBody text.\n",
			wantTitle: "Biking in PA",
			wantTags:  []string{"biking", "pennsylvania"},
		},
		{
			name:        "related and blanks",
			content:     "Series part 2\n#tags go, , series \n#related general/part1.txt,/general/part3.txt\n\nBody",
			wantTitle:   "Series part 2",
			wantTags:    []string{"go", "series"},
			wantRelated: []domain.EntryID{"general/part1.txt", "general/part3.txt"},
		},
		{
			name:      "metadata stops at body",
			content:   "Title\nbody line\n#tags late\n",
			wantTitle: "Title",
		},
		{
			name:      "no tags line",
			content:   "Just a title\n\nbody",
			wantTitle: "Just a title",
		},
		{
			name:        "front matter list",
			content:     "---\ntitle: Notes\ntags: [alpha, beta]\nrelated: a/b.md\n---\nbody\n",
			wantTitle:   "Notes",
			wantTags:    []string{"alpha", "beta"},
			wantRelated: []domain.EntryID{"a/b.md"},
		},
		{
			name:      "front matter comma string",
			content:   "---\ntitle: Notes\ntags: alpha,beta\n---\n",
			wantTitle: "Notes",
			wantTags:  []string{"alpha", "beta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := ParseText(tt.content)
			assert.Equal(t, tt.wantTitle, meta.Title)
			assert.Equal(t, tt.wantTags, meta.Tags)
			assert.Equal(t, tt.wantRelated, meta.Related)
		})
	}
}

func TestParseText_MalformedInputFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTitle string
		wantTags  []string
	}{
		{
			name:      "horizontal rule opening",
			content:   "---\nA post that opens with a horizontal rule\n",
			wantTitle: "---",
		},
		{
			name:      "unterminated front matter",
			content:   "---\ntitle: x\n",
			wantTitle: "---",
		},
		{
			name:      "invalid yaml",
			content:   "---\ntags: [unclosed\n---\nbody",
			wantTitle: "---",
		},
		{
			name:      "tab before value",
			content:   "Tabbed\n#tags\tfoo, bar\n#related  \t general/x.txt\n",
			wantTitle: "Tabbed",
			wantTags:  []string{"foo", "bar"},
		},
		{
			name:      "very long first line",
			content:   strings.Repeat("x", 2<<20) + "\n#tags long\n",
			wantTitle: strings.Repeat("x", 2<<20),
			wantTags:  []string{"long"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := ParseText(tt.content)
			assert.Equal(t, tt.wantTitle, meta.Title)
			assert.Equal(t, tt.wantTags, meta.Tags)
		})
	}

	meta := ParseText("Tabbed\n#related  \t general/x.txt\n")
	assert.Equal(t, []domain.EntryID{"general/x.txt"}, meta.Related)
}

func TestParseHTML(t *testing.T) {
	doc := `<!doctype html><html><head>
<title>  Hello
  World </title>
<meta name="tags" content="web,html">
<meta name="related" content="posts/other.html">
</head><body><meta name="tags" content="ignored"><p>text</p></body></html>`

	meta, err := ParseHTML(doc)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", meta.Title)
	assert.Equal(t, []string{"web", "html"}, meta.Tags)
	assert.Equal(t, []domain.EntryID{"posts/other.html"}, meta.Related)
}

func TestDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blog")
	files := map[string]string{
		"first.txt":          "First\n#tags foo,bar\nbody",
		"general/second.txt": "Second\n#tags foo\nbody",
		"general/page.html":  "<html><head><title>Page</title><meta name=\"tags\" content=\"bar\"></head></html>",
		"drafts/third.txt":   "Third\nbody",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	d := NewDir(root)
	refs, err := d.Refs()
	require.NoError(t, err)
	assert.Equal(t, []Ref{
		{ID: "drafts/third.txt", Dir: "drafts", Ext: "txt"},
		{ID: "first.txt", Dir: "blog", Ext: "txt"},
		{ID: "general/page.html", Dir: "general", Ext: "html"},
		{ID: "general/second.txt", Dir: "general", Ext: "txt"},
	}, refs)

	e, err := d.Load("general/second.txt")
	require.NoError(t, err)
	assert.Equal(t, "Second", e.Title)
	assert.Equal(t, []string{"foo"}, e.Tags)
	assert.False(t, e.ModTime.IsZero())

	e, err = d.Load("general/page.html")
	require.NoError(t, err)
	assert.Equal(t, "Page", e.Title)
	assert.Equal(t, []string{"bar"}, e.Tags)

	_, err = d.Load("missing.txt")
	assert.True(t, errors.Is(err, ErrEntryNotFound))

	_, err = d.Load("../escape.txt")
	assert.True(t, errors.Is(err, ErrEntryNotFound))
}

func TestMemory(t *testing.T) {
	m := NewMemory(
		domain.Entry{ID: "b.txt", Tags: []string{"x"}},
		domain.Entry{ID: "dir/a.txt"},
	)

	refs, err := m.Refs()
	require.NoError(t, err)
	assert.Equal(t, []Ref{
		{ID: "b.txt", Dir: "", Ext: "txt"},
		{ID: "dir/a.txt", Dir: "dir", Ext: "txt"},
	}, refs)

	e, err := m.Load("b.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, e.Tags)

	_, err = m.Load("nope")
	assert.True(t, errors.Is(err, ErrEntryNotFound))
}
