// Package index builds the tag to entries index of a corpus and the
// co-occurrence matrix derived from it.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pbaille/folksonomy/internal/corpus"
	"github.com/pbaille/folksonomy/internal/domain"
)

// ErrTagNotFound is matched by every NotFoundError.
var ErrTagNotFound = errors.New("tag not found")

// NotFoundError reports a tag absent from the sorted tag list.
type NotFoundError struct {
	Tag string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tag %q not in index", e.Tag)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrTagNotFound
}

// Options select which corpus items and tags are indexed.
type Options struct {
	IgnoreTags         []string
	IgnoreDirectories  []string
	TaggableExtensions []string
	// Logger receives a warning for every entry that fails to load.
	Logger             *slog.Logger
}

// Index maps every tag to the entries carrying it, in first-seen order.
// Min is the smallest entry count over all tags, the untagged bucket
// included. Max is the largest over real tags only.
type Index struct {
	Entries map[domain.Tag][]domain.EntryID
	Min     int
	Max     int
}

// Build scans src and files each eligible entry under its tags. Entries left
// without any tag once ignored tags are dropped go to domain.Untagged, and so
// do entries that fail to load. Only a failure to list the corpus is fatal.
func Build(src corpus.Source, opts Options) (*Index, error) {
	ignoreTags := toSet(opts.IgnoreTags)
	ignoreDirs := toSet(opts.IgnoreDirectories)
	extensions := make(map[string]struct{}, len(opts.TaggableExtensions))
	for _, ext := range opts.TaggableExtensions {
		extensions[strings.TrimPrefix(ext, ".")] = struct{}{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	refs, err := src.Refs()
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}

	idx := &Index{Entries: make(map[domain.Tag][]domain.EntryID)}
	for _, ref := range refs {
		if _, ok := extensions[ref.Ext]; !ok {
			continue
		}
		if _, ok := ignoreDirs[ref.Dir]; ok {
			continue
		}

		entry, err := src.Load(ref.ID)
		if err != nil {
			logger.Warn("entry unreadable, filed as untagged",
				slog.String("entry", string(ref.ID)),
				slog.String("error", err.Error()))
			idx.Entries[domain.Untagged] = append(idx.Entries[domain.Untagged], ref.ID)
			continue
		}

		tagged := false
		seen := make(map[string]struct{}, len(entry.Tags))
		for _, name := range entry.Tags {
			if _, ok := ignoreTags[name]; ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			tag := domain.NewTag(name)
			idx.Entries[tag] = append(idx.Entries[tag], entry.ID)
			tagged = true
		}
		if !tagged {
			idx.Entries[domain.Untagged] = append(idx.Entries[domain.Untagged], entry.ID)
		}
	}

	idx.Min, idx.Max = countRange(idx.Entries)
	return idx, nil
}

// Counts returns the occurrence count of every tag.
func (idx *Index) Counts() map[domain.Tag]int {
	counts := make(map[domain.Tag]int, len(idx.Entries))
	for tag, entries := range idx.Entries {
		counts[tag] = len(entries)
	}
	return counts
}

// SortedTags returns the distinct tags in position order.
func (idx *Index) SortedTags() []domain.Tag {
	tags := make([]domain.Tag, 0, len(idx.Entries))
	for tag := range idx.Entries {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Less(tags[j]) })
	return tags
}

// Lookup finds a tag by name, preferring real tags over the untagged bucket.
func (idx *Index) Lookup(name string) (domain.Tag, bool) {
	if _, ok := idx.Entries[domain.NewTag(name)]; ok {
		return domain.NewTag(name), true
	}
	if name == domain.Untagged.Name {
		if _, ok := idx.Entries[domain.Untagged]; ok {
			return domain.Untagged, true
		}
	}
	return domain.Tag{}, false
}

// countRange returns 0, 0 for an empty index. The untagged bucket counts
// toward lo but never toward hi.
func countRange(entries map[domain.Tag][]domain.EntryID) (lo, hi int) {
	first := true
	for tag, list := range entries {
		n := len(list)
		if tag.Rankable() {
			hi = max(hi, n)
		}
		if first {
			lo = n
			first = false
			continue
		}
		lo = min(lo, n)
	}
	return lo, hi
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
