// Package render turns ranked tags, related stories and clouds into the HTML
// fragments a blog template embeds.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"strings"

	"github.com/pbaille/folksonomy/internal/cloud"
	"github.com/pbaille/folksonomy/internal/config"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/related"
)

var templates = template.Must(template.New("fragments").Parse(`
{{- define "tags" -}}
{{range $i, $t := .Tags}}{{if $i}}{{$.Sep}}{{end}}<a href='{{$.URL}}{{$t}}' rel='tag'>{{$t}}</a>{{end}}
{{- end -}}

{{- define "storytags" -}}
{{.Pre}}{{template "tags" .}}{{.Post}}
{{- end -}}

{{- define "categories" -}}
{{range .}}<category>{{.}}</category>{{end}}
{{- end -}}

{{- define "stories" -}}
<div id='relatedstories'>{{.Header}}<p>{{range .Stories}}
<a href='{{$.Base}}/{{.Path}}'>{{.Title}}</a><br/>{{end}}</p></div>
{{- end -}}

{{- define "cloud" -}}
<div id='tagcloud'>{{range .Entries}}<a href='{{$.URL}}{{.Tag.Name}}' class='{{.Size.Class}}' title='There are {{.Count}} entries tagged {{.Tag.Name}}'>{{.Tag.Name}}</a>
{{end}}</div>
{{- end -}}
`))

// Renderer holds the decorations read from configuration. Pretext, posttext,
// tag separator and the related stories header are trusted markup.
type Renderer struct {
	baseURL    string
	tagURL     string
	displayURL string
	pre        template.HTML
	post       template.HTML
	sep        template.HTML
	header     template.HTML
}

func New(cfg config.Config) *Renderer {
	return &Renderer{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		tagURL:     cfg.TagURL,
		displayURL: cfg.TagURLDisplay,
		pre:        template.HTML(cfg.PreText),
		post:       template.HTML(cfg.PostText),
		sep:        template.HTML(cfg.TagSep),
		header:     template.HTML(cfg.RelatedStoriesHeader),
	}
}

type tagLinks struct {
	URL       string
	Tags      []string
	Sep       template.HTML
	Pre, Post template.HTML
}

type storyLink struct {
	Path  string
	Title string
}

// StoryTags links every tag of an entry, wrapped in pretext and posttext.
func (r *Renderer) StoryTags(tags []string) (template.HTML, error) {
	if len(tags) == 0 {
		return "", nil
	}
	return execute("storytags", tagLinks{URL: r.tagURL, Tags: tags, Sep: r.sep, Pre: r.pre, Post: r.post})
}

// RSSCategories renders one <category> element per tag.
func (r *Renderer) RSSCategories(tags []string) (template.HTML, error) {
	if len(tags) == 0 {
		return "", nil
	}
	return execute("categories", tags)
}

func (r *Renderer) RelatedTags(tags []domain.Tag) (template.HTML, error) {
	if len(tags) == 0 {
		return "", nil
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return execute("tags", tagLinks{URL: r.tagURL, Tags: names, Sep: r.sep})
}

// RelatedStories links each story under the configured header. Links drop
// the file extension of the entry.
func (r *Renderer) RelatedStories(stories []related.Story) (template.HTML, error) {
	if len(stories) == 0 {
		return "", nil
	}
	links := make([]storyLink, len(stories))
	for i, s := range stories {
		id := string(s.ID)
		links[i] = storyLink{Path: strings.TrimSuffix(id, path.Ext(id)), Title: s.Title}
	}
	return execute("stories", struct {
		Header  template.HTML
		Base    string
		Stories []storyLink
	}{r.header, r.baseURL, links})
}

func (r *Renderer) Cloud(c cloud.Cloud) (template.HTML, error) {
	if len(c) == 0 {
		return "", nil
	}
	return execute("cloud", struct {
		URL     string
		Entries cloud.Cloud
	}{r.displayURL, c})
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
