// Package snapshot assembles the derived state of a corpus into one
// immutable, cacheable unit.
package snapshot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pbaille/folksonomy/internal/cloud"
	"github.com/pbaille/folksonomy/internal/corpus"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/index"
)

// Snapshot is never mutated once built or restored.
type Snapshot struct {
	ID      string
	BuiltAt time.Time
	Index   *index.Index
	Matrix  *index.Matrix
	Cloud   cloud.Cloud
	Popular cloud.Cloud
}

// Build runs the full pipeline: index, matrix and both clouds.
func Build(src corpus.Source, opts index.Options) (*Snapshot, error) {
	idx, err := index.Build(src, opts)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return FromIndex(idx), nil
}

// FromIndex derives the matrix and clouds of idx. An empty index yields an
// empty snapshot without clouds.
func FromIndex(idx *index.Index) *Snapshot {
	s := &Snapshot{
		ID:      uuid.New().String(),
		BuiltAt: time.Now().UTC(),
		Index:   idx,
		Matrix:  index.NewMatrix(idx),
	}
	if len(idx.Entries) == 0 {
		return s
	}

	counts := idx.Counts()
	s.Cloud = cloud.Build(counts, idx.Min, idx.Max)
	s.Popular = cloud.Popular(counts, idx.Min, idx.Max)
	return s
}

// Empty reports whether no entry was indexed.
func (s *Snapshot) Empty() bool {
	return len(s.Index.Entries) == 0
}

// EntryCount returns the number of distinct indexed entries.
func (s *Snapshot) EntryCount() int {
	seen := make(map[domain.EntryID]struct{})
	for _, entries := range s.Index.Entries {
		for _, e := range entries {
			seen[e] = struct{}{}
		}
	}
	return len(seen)
}

// Entries returns the entries filed under the tag named name.
func (s *Snapshot) Entries(name string) ([]domain.EntryID, bool) {
	tag, ok := s.Index.Lookup(name)
	if !ok {
		return nil, false
	}
	return s.Index.Entries[tag], true
}
