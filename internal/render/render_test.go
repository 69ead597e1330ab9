package render

import (
	"html/template"
	"testing"

	"github.com/pbaille/folksonomy/internal/cloud"
	"github.com/pbaille/folksonomy/internal/config"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/related"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderer() *Renderer {
	return New(config.Config{
		BaseURL:              "http://blog.example.com/",
		TagURL:               "http://blog.example.com/tags/",
		TagURLDisplay:        "/tags/",
		PreText:              "<p>Tags: ",
		PostText:             "</p>",
		TagSep:               ", ",
		RelatedStoriesHeader: "<h3>Related</h3>",
	})
}

func TestStoryTags(t *testing.T) {
	out, err := renderer().StoryTags([]string{"go", "web"})
	require.NoError(t, err)
	assert.Equal(t, template.HTML(
		"<p>Tags: <a href='http://blog.example.com/tags/go' rel='tag'>go</a>, "+
			"<a href='http://blog.example.com/tags/web' rel='tag'>web</a></p>"), out)
}

func TestStoryTags_EscapesTagText(t *testing.T) {
	out, err := renderer().StoryTags([]string{"<b>"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<b>")
	assert.Contains(t, string(out), "&lt;b&gt;")
}

func TestRSSCategories(t *testing.T) {
	out, err := renderer().RSSCategories([]string{"go", "web"})
	require.NoError(t, err)
	assert.Equal(t, template.HTML("<category>go</category><category>web</category>"), out)
}

func TestRelatedTags(t *testing.T) {
	out, err := renderer().RelatedTags([]domain.Tag{domain.NewTag("db"), domain.NewTag("go")})
	require.NoError(t, err)
	assert.Equal(t, template.HTML(
		"<a href='http://blog.example.com/tags/db' rel='tag'>db</a>, "+
			"<a href='http://blog.example.com/tags/go' rel='tag'>go</a>"), out)
}

func TestRelatedStories(t *testing.T) {
	out, err := renderer().RelatedStories([]related.Story{
		{ID: "general/hello.txt", Title: "Hello"},
		{ID: "misc/notes.html", Title: "Notes"},
	})
	require.NoError(t, err)
	assert.Equal(t, template.HTML(
		"<div id='relatedstories'><h3>Related</h3><p>"+
			"\n<a href='http://blog.example.com/general/hello'>Hello</a><br/>"+
			"\n<a href='http://blog.example.com/misc/notes'>Notes</a><br/>"+
			"</p></div>"), out)
}

func TestCloud(t *testing.T) {
	c := cloud.Cloud{
		{Tag: domain.NewTag("go"), Count: 7, Size: cloud.MostHuge},
		{Tag: domain.Untagged, Count: 2, Size: cloud.Medium},
	}
	out, err := renderer().Cloud(c)
	require.NoError(t, err)
	assert.Equal(t, template.HTML(
		"<div id='tagcloud'>"+
			"<a href='/tags/go' class='mostHugeTag' title='There are 7 entries tagged go'>go</a>\n"+
			"<a href='/tags/untagged' class='mediumTag' title='There are 2 entries tagged untagged'>untagged</a>\n"+
			"</div>"), out)
}

func TestEmptyInputsRenderNothing(t *testing.T) {
	r := renderer()
	for name, fn := range map[string]func() (template.HTML, error){
		"story tags": func() (template.HTML, error) { return r.StoryTags(nil) },
		"categories": func() (template.HTML, error) { return r.RSSCategories(nil) },
		"tags":       func() (template.HTML, error) { return r.RelatedTags(nil) },
		"stories":    func() (template.HTML, error) { return r.RelatedStories(nil) },
		"cloud":      func() (template.HTML, error) { return r.Cloud(nil) },
	} {
		t.Run(name, func(t *testing.T) {
			out, err := fn()
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}
