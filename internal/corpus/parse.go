package corpus

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pbaille/folksonomy/internal/domain"
	"gopkg.in/yaml.v3"
)

// Metadata is what the parsers extract from an entry file.
type Metadata struct {
	Title   string
	Tags    []string
	Related []domain.EntryID
}

func (m Metadata) Entry(id domain.EntryID, modTime time.Time) *domain.Entry {
	title := m.Title
	if title == "" {
		title = string(id)
	}
	return &domain.Entry{
		ID:      id,
		Title:   title,
		Tags:    m.Tags,
		Related: m.Related,
		ModTime: modTime,
	}
}

// ParseText reads a plain entry: the first line is the title, followed by
// "#key value" metadata lines. Content starting with "---" is read as YAML
// front matter; when that block does not parse, the header rules apply.
func ParseText(content string) Metadata {
	content = strings.TrimPrefix(content, "\ufeff")
	if strings.HasPrefix(content, "---\n") || strings.HasPrefix(content, "---\r\n") {
		if meta, err := parseFrontMatter(content); err == nil {
			return meta
		}
	}

	var meta Metadata
	rest := content
	for first := true; rest != ""; first = false {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		line = strings.TrimRight(line, "\r")
		if first {
			meta.Title = strings.TrimSpace(line)
			continue
		}
		if !strings.HasPrefix(line, "#") {
			break
		}
		key, value := cutSpace(strings.TrimPrefix(line, "#"))
		meta.set(key, value)
	}
	return meta
}

// cutSpace splits s around its first whitespace run.
func cutSpace(s string) (key, value string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

func (m *Metadata) set(key, value string) {
	switch strings.TrimSpace(key) {
	case "tags":
		m.Tags = domain.ParseList(value)
	case "related":
		m.Related = toIDs(domain.ParseList(value))
	}
}

type frontMatter struct {
	Title   string   `yaml:"title"`
	Tags    yamlList `yaml:"tags"`
	Related yamlList `yaml:"related"`
}

// yamlList accepts either a sequence or a comma-separated string.
type yamlList []string

func (l *yamlList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = domain.ParseList(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		var out []string
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				out = append(out, it)
			}
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected list or string", node.Line)
}

func parseFrontMatter(content string) (Metadata, error) {
	body := content[strings.Index(content, "\n")+1:]
	end := strings.Index(body, "\n---")
	if strings.HasPrefix(body, "---") {
		end = 0
	}
	if end < 0 {
		return Metadata{}, fmt.Errorf("unterminated front matter")
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(body[:end]), &fm); err != nil {
		return Metadata{}, fmt.Errorf("front matter: %w", err)
	}
	return Metadata{
		Title:   strings.TrimSpace(fm.Title),
		Tags:    []string(fm.Tags),
		Related: toIDs(fm.Related),
	}, nil
}

func toIDs(items []string) []domain.EntryID {
	if len(items) == 0 {
		return nil
	}
	ids := make([]domain.EntryID, len(items))
	for i, it := range items {
		ids[i] = domain.EntryID(strings.TrimPrefix(it, "/"))
	}
	return ids
}
