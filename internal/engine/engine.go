// Package engine owns the live snapshot: it loads it from the cache or builds
// it from the corpus, publishes it, and answers queries against it.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/pbaille/folksonomy/internal/config"
	"github.com/pbaille/folksonomy/internal/corpus"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/index"
	"github.com/pbaille/folksonomy/internal/related"
	"github.com/pbaille/folksonomy/internal/snapshot"
	"github.com/pbaille/folksonomy/internal/store"
)

// ErrNotOpen is returned by queries issued before Open or Rebuild.
var ErrNotOpen = errors.New("engine not opened")

// Engine is safe for concurrent readers. A rebuild publishes its snapshot
// only once complete.
type Engine struct {
	cfg    config.Config
	src    corpus.Source
	store  store.Store
	logger *slog.Logger

	current atomic.Pointer[state]
}

type state struct {
	snap   *snapshot.Snapshot
	ranker *related.Ranker
}

// Related is everything computed for one entry.
type Related struct {
	Entry   *domain.Entry    `json:"entry"`
	Tags    []domain.Tag     `json:"tags"`
	Stories []related.Story `json:"stories"`
}

func New(cfg config.Config, src corpus.Source, st store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		src:    src,
		store:  st,
		logger: logger.With(slog.String("component", "engine")),
	}
}

func (e *Engine) indexOptions() index.Options {
	return index.Options{
		IgnoreTags:         e.cfg.IgnoreTags,
		IgnoreDirectories:  e.cfg.IgnoreDirectories,
		TaggableExtensions: e.cfg.TaggableExtensions,
		Logger:             e.logger,
	}
}

// Open publishes the cached snapshot when one loads, and otherwise builds
// from the corpus and refreshes the cache. A missing or unreadable cache is
// never an error; the returned status tells which path was taken.
func (e *Engine) Open() (store.Status, error) {
	path := e.cfg.CachePath
	res := e.store.Load(path)

	switch res.Status {
	case store.Loaded:
		e.logger.Info("loaded cached snapshot",
			slog.String("path", path),
			slog.String("snapshot", res.Snapshot.ID))
		e.publish(res.Snapshot)
		return res.Status, nil
	case store.Corrupt:
		e.logger.Warn("cache unreadable, rebuilding",
			slog.String("path", path),
			slog.String("error", res.Err.Error()))
	default:
		e.logger.Info("no cache, building from corpus", slog.String("path", path))
	}

	s, err := e.build()
	if err != nil {
		return res.Status, err
	}
	if path != "" {
		if err := e.store.Save(path, s); err != nil {
			e.logger.Warn("could not write cache",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	e.publish(s)
	return res.Status, nil
}

// Rebuild recomputes the snapshot from the corpus and overwrites the cache.
// It fails with config.ErrNoCachePath when no cache path is configured.
func (e *Engine) Rebuild() (*snapshot.Snapshot, error) {
	path, err := e.cfg.RequireCachePath()
	if err != nil {
		return nil, err
	}

	s, err := e.build()
	if err != nil {
		return nil, err
	}
	if err := e.store.Save(path, s); err != nil {
		return nil, fmt.Errorf("save cache: %w", err)
	}
	e.publish(s)
	return s, nil
}

func (e *Engine) build() (*snapshot.Snapshot, error) {
	start := time.Now()
	s, err := snapshot.Build(e.src, e.indexOptions())
	if err != nil {
		return nil, err
	}
	e.logger.Info("built snapshot",
		slog.String("snapshot", s.ID),
		slog.Int("tags", s.Matrix.Len()),
		slog.Int("entries", s.EntryCount()),
		slog.Duration("took", time.Since(start)))
	return s, nil
}

func (e *Engine) publish(s *snapshot.Snapshot) {
	ranker := related.New(s.Matrix, related.Options{
		IgnoreTags: e.cfg.IgnoreTags,
		Titles:     e.src,
		ModTime:    e.modTime,
	}, e.logger)
	e.current.Store(&state{snap: s, ranker: ranker})
}

func (e *Engine) modTime(id domain.EntryID) (time.Time, bool) {
	entry, err := e.src.Load(id)
	if err != nil {
		return time.Time{}, false
	}
	return entry.ModTime, true
}

func (e *Engine) state() (*state, error) {
	st := e.current.Load()
	if st == nil {
		return nil, ErrNotOpen
	}
	return st, nil
}

// Snapshot returns the published snapshot, or nil before Open.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	if st := e.current.Load(); st != nil {
		return st.snap
	}
	return nil
}

// Related loads the entry id from the corpus and ranks its related tags and
// stories against the published snapshot.
func (e *Engine) Related(id domain.EntryID) (*Related, error) {
	st, err := e.state()
	if err != nil {
		return nil, err
	}
	entry, err := e.src.Load(id)
	if err != nil {
		return nil, fmt.Errorf("load entry: %w", err)
	}
	return &Related{
		Entry:   entry,
		Tags:    st.ranker.RelatedTags(entry),
		Stories: st.ranker.RelatedStories(entry),
	}, nil
}

// RelatedToTag ranks the tags co-occurring with name. An unknown tag is
// logged and yields an empty ranking.
func (e *Engine) RelatedToTag(name string) []related.TagCount {
	st, err := e.state()
	if err != nil {
		return nil
	}
	rel, err := st.ranker.TagRelations(name)
	if err != nil {
		e.logger.Warn("tag lookup failed",
			slog.String("tag", name),
			slog.String("error", err.Error()))
		return nil
	}
	return rel
}

// EntriesForTag loads the entries filed under name, most recently modified
// first. Entries that no longer load are skipped.
func (e *Engine) EntriesForTag(name string) ([]domain.Entry, bool) {
	st, err := e.state()
	if err != nil {
		return nil, false
	}
	ids, ok := st.snap.Entries(name)
	if !ok {
		return nil, false
	}

	entries := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := e.src.Load(id)
		if err != nil {
			e.logger.Warn("indexed entry unavailable",
				slog.String("entry", string(id)),
				slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, *entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, true
}
