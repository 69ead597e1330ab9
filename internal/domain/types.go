package domain

import (
	"strings"
	"time"
)

// TagKind separates author-supplied tags from the synthetic untagged bucket
type TagKind uint8

const (
	KindReal TagKind = iota
	KindUntagged
)

// Tag is a case-sensitive tag identifier
type Tag struct {
	Name string  `json:"name"`
	Kind TagKind `json:"kind,omitempty"`
}

// Untagged collects every entry that carries no tag
var Untagged = Tag{Name: "untagged", Kind: KindUntagged}

// NewTag returns a real tag with the given name
func NewTag(name string) Tag {
	return Tag{Name: name}
}

// Rankable reports whether the tag may surface in related-tag rankings
func (t Tag) Rankable() bool {
	return t.Kind == KindReal
}

func (t Tag) String() string {
	return t.Name
}

// Less is the total order that fixes tag positions: byte-wise name, then kind.
func (t Tag) Less(o Tag) bool {
	if c := strings.Compare(t.Name, o.Name); c != 0 {
		return c < 0
	}
	return t.Kind < o.Kind
}

// EntryID is the slash-separated path of an entry relative to the corpus root
type EntryID string

// Entry is the read-only view of a content item owned by the corpus
type Entry struct {
	ID      EntryID   `json:"id"`
	Title   string    `json:"title"`
	Tags    []string  `json:"tags,omitempty"`
	Related []EntryID `json:"related,omitempty"`
	ModTime time.Time `json:"mod_time"`
}

// ParseList splits comma-separated metadata text, trimming blanks
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
