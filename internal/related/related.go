// Package related ranks the tags and stories related to an entry from the
// co-occurrence matrix.
package related

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/index"
)

// DefaultLimit caps the related stories list, forced relations included.
const DefaultLimit = 6

// TitleLookup resolves the entries surfaced as related stories.
type TitleLookup interface {
	Load(id domain.EntryID) (*domain.Entry, error)
}

type Options struct {
	IgnoreTags []string
	// Titles resolves story titles. When nil the entry ID is used as title.
	Titles TitleLookup
	// ModTime, when set, orders stories with equal votes newest first.
	ModTime func(domain.EntryID) (time.Time, bool)
	Limit   int
}

// TagCount is a tag with the number of entries it shares with another tag.
type TagCount struct {
	Tag   domain.Tag `json:"tag"`
	Count int        `json:"count"`
}

// StoryRelation is a tag with the entries it shares with another tag.
type StoryRelation struct {
	Tag     domain.Tag       `json:"tag"`
	Entries []domain.EntryID `json:"entries"`
}

// Story is a related entry ready for rendering.
type Story struct {
	ID    domain.EntryID `json:"id"`
	Title string         `json:"title"`
}

// Ranker derives related tags and stories. It never mutates the matrix.
type Ranker struct {
	m      *index.Matrix
	ignore map[string]struct{}
	opts   Options
	logger *slog.Logger
}

func New(m *index.Matrix, opts Options, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	ignore := make(map[string]struct{}, len(opts.IgnoreTags))
	for _, t := range opts.IgnoreTags {
		ignore[t] = struct{}{}
	}
	return &Ranker{
		m:      m,
		ignore: ignore,
		opts:   opts,
		logger: logger.With(slog.String("component", "related")),
	}
}

func (r *Ranker) position(name string) (int, error) {
	p, ok := r.m.Position(domain.NewTag(name))
	if !ok {
		return 0, &index.NotFoundError{Tag: name}
	}
	return p, nil
}

// TagRelations ranks every other rankable tag sharing entries with name, by
// shared count then tag, both descending.
func (r *Ranker) TagRelations(name string) ([]TagCount, error) {
	p, err := r.position(name)
	if err != nil {
		return nil, err
	}

	var out []TagCount
	for q, t := range r.m.Tags() {
		if q == p || !t.Rankable() {
			continue
		}
		if n := len(r.m.SharedAt(p, q)); n > 0 {
			out = append(out, TagCount{Tag: t, Count: n})
		}
	}
	sortTagCounts(out)
	return out, nil
}

// StoryRelations lists the entries name shares with every tag, itself
// included, largest sets first.
func (r *Ranker) StoryRelations(name string) ([]StoryRelation, error) {
	p, err := r.position(name)
	if err != nil {
		return nil, err
	}

	var out []StoryRelation
	for q, t := range r.m.Tags() {
		if shared := r.m.SharedAt(p, q); len(shared) > 0 {
			out = append(out, StoryRelation{Tag: t, Entries: shared})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Entries) != len(out[j].Entries) {
			return len(out[i].Entries) > len(out[j].Entries)
		}
		return out[j].Tag.Less(out[i].Tag)
	})
	return out, nil
}

// RelatedTags merges the tag rankings of every tag of entry and keeps the
// tags sharing more than one entry. A tag reached through several subject
// tags appears once per path.
func (r *Ranker) RelatedTags(entry *domain.Entry) []domain.Tag {
	var all []TagCount
	for _, name := range r.subjectTags(entry) {
		rel, err := r.TagRelations(name)
		if err != nil {
			r.logNotFound(entry, err)
			continue
		}
		all = append(all, rel...)
	}
	sortTagCounts(all)

	var out []domain.Tag
	for _, tc := range all {
		if tc.Count > 1 {
			out = append(out, tc.Tag)
		}
	}
	return out
}

// RelatedStories ranks entries by the number of subject tags surfacing them.
// Forced relations lead the list unranked. The list is cut to the limit
// before the subject itself is removed, so that removal is not backfilled.
func (r *Ranker) RelatedStories(entry *domain.Entry) []Story {
	subject := make(map[string]struct{}, len(entry.Tags))
	for _, name := range entry.Tags {
		subject[name] = struct{}{}
	}

	votes := make(map[domain.EntryID]int)
	for _, name := range r.subjectTags(entry) {
		rels, err := r.StoryRelations(name)
		if err != nil {
			r.logNotFound(entry, err)
			continue
		}
		for _, rel := range rels {
			// Only tags the subject carries itself may vote.
			if _, ok := subject[rel.Tag.Name]; !ok || !rel.Tag.Rankable() {
				continue
			}
			for _, id := range rel.Entries {
				votes[id]++
			}
		}
	}

	ids := append([]domain.EntryID(nil), entry.Related...)
	forced := make(map[domain.EntryID]struct{}, len(entry.Related))
	for _, id := range entry.Related {
		forced[id] = struct{}{}
	}

	ranked := make([]domain.EntryID, 0, len(votes))
	for id := range votes {
		if _, ok := forced[id]; !ok {
			ranked = append(ranked, id)
		}
	}
	r.sortByVotes(ranked, votes)
	ids = append(ids, ranked...)

	if len(ids) > r.opts.Limit {
		ids = ids[:r.opts.Limit]
	}

	stories := make([]Story, 0, len(ids))
	for _, id := range ids {
		if id == entry.ID {
			continue
		}
		story, ok := r.story(id)
		if !ok {
			continue
		}
		stories = append(stories, story)
	}
	return stories
}

func (r *Ranker) story(id domain.EntryID) (Story, bool) {
	if r.opts.Titles == nil {
		return Story{ID: id, Title: string(id)}, true
	}
	e, err := r.opts.Titles.Load(id)
	if err != nil {
		r.logger.Warn("related story unavailable",
			slog.String("entry", string(id)),
			slog.String("error", err.Error()))
		return Story{}, false
	}
	return Story{ID: id, Title: e.Title}, true
}

// subjectTags returns the distinct, non-ignored tags of entry in order.
func (r *Ranker) subjectTags(entry *domain.Entry) []string {
	seen := make(map[string]struct{}, len(entry.Tags))
	var out []string
	for _, name := range entry.Tags {
		if _, ok := r.ignore[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (r *Ranker) sortByVotes(ids []domain.EntryID, votes map[domain.EntryID]int) {
	var mtimes map[domain.EntryID]time.Time
	if r.opts.ModTime != nil {
		mtimes = make(map[domain.EntryID]time.Time, len(ids))
		for _, id := range ids {
			if t, ok := r.opts.ModTime(id); ok {
				mtimes[id] = t
			}
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if votes[a] != votes[b] {
			return votes[a] > votes[b]
		}
		if ta, tb := mtimes[a], mtimes[b]; !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a > b
	})
}

func (r *Ranker) logNotFound(entry *domain.Entry, err error) {
	if errors.Is(err, index.ErrTagNotFound) {
		r.logger.Warn("tag missing from index",
			slog.String("entry", string(entry.ID)),
			slog.String("error", err.Error()))
		return
	}
	r.logger.Error("ranking failed",
		slog.String("entry", string(entry.ID)),
		slog.String("error", err.Error()))
}

func sortTagCounts(tcs []TagCount) {
	sort.SliceStable(tcs, func(i, j int) bool {
		if tcs[i].Count != tcs[j].Count {
			return tcs[i].Count > tcs[j].Count
		}
		return tcs[j].Tag.Less(tcs[i].Tag)
	})
}
