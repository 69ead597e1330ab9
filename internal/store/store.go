// Package store persists snapshots to a single cache file and restores them.
//
// Two file formats are supported: a SQLite database (the default) and a bbolt
// key/value file. Both write to a temporary file in the destination directory
// and rename it into place, so readers never observe a half-written cache.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pbaille/folksonomy/internal/cloud"
	"github.com/pbaille/folksonomy/internal/config"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/index"
	"github.com/pbaille/folksonomy/internal/snapshot"
)

const formatVersion = "folksonomy-cache/1"

var errFormat = errors.New("unrecognised cache format")

// Status tells how a cache load went.
type Status int

const (
	Loaded Status = iota
	Absent
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Absent:
		return "absent"
	case Corrupt:
		return "corrupt"
	}
	return "unknown"
}

// LoadResult carries the snapshot when Status is Loaded, and the cause when
// Status is Corrupt.
type LoadResult struct {
	Status   Status
	Snapshot *snapshot.Snapshot
	Err      error
}

// Store reads and writes snapshot cache files.
type Store interface {
	Load(path string) LoadResult
	Save(path string, s *snapshot.Snapshot) error
}

// ForFormat returns the store for a cache_format value.
func ForFormat(format string) (Store, error) {
	switch format {
	case "", config.FormatSQLite:
		return SQLite{}, nil
	case config.FormatBolt:
		return Bolt{}, nil
	}
	return nil, fmt.Errorf("cache format %q: %w", format, errFormat)
}

func absent(path string) (LoadResult, bool) {
	if path == "" {
		return LoadResult{Status: Absent}, true
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return LoadResult{Status: Absent}, true
		}
		return corrupt(err), true
	}
	return LoadResult{}, false
}

func corrupt(err error) LoadResult {
	return LoadResult{Status: Corrupt, Err: err}
}

// writeAtomic calls write with a fresh temporary path next to path, then
// renames the result over path.
func writeAtomic(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmp := f.Name()
	f.Close()

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// record is the flattened form both file formats persist.
type record struct {
	ID      string
	BuiltAt int64
	Min     int
	Max     int
	Tags    []domain.Tag
	Entries [][]domain.EntryID
	Shared  []sharedCell
	Clouds  map[string][]cloudRow
}

type sharedCell struct {
	Row, Col int
	Entries  []domain.EntryID
}

type cloudRow struct {
	Position int        `json:"position"`
	Count    int        `json:"count"`
	Size     cloud.Size `json:"size"`
}

const (
	cloudFull    = "full"
	cloudPopular = "popular"
)

func encode(s *snapshot.Snapshot) record {
	m := s.Matrix
	rec := record{
		ID:      s.ID,
		BuiltAt: s.BuiltAt.UnixNano(),
		Min:     s.Index.Min,
		Max:     s.Index.Max,
		Tags:    m.Tags(),
		Entries: make([][]domain.EntryID, m.Len()),
		Clouds:  map[string][]cloudRow{},
	}

	for x := 0; x < m.Len(); x++ {
		row := m.Row(x)
		rec.Entries[x] = row[x]
		for y := 0; y < x; y++ {
			if len(row[y]) > 0 {
				rec.Shared = append(rec.Shared, sharedCell{Row: x, Col: y, Entries: row[y]})
			}
		}
	}

	for name, c := range map[string]cloud.Cloud{cloudFull: s.Cloud, cloudPopular: s.Popular} {
		for _, e := range c {
			p, _ := m.Position(e.Tag)
			rec.Clouds[name] = append(rec.Clouds[name], cloudRow{Position: p, Count: e.Count, Size: e.Size})
		}
	}
	return rec
}

func decode(rec record) (*snapshot.Snapshot, error) {
	if len(rec.Entries) != len(rec.Tags) {
		return nil, fmt.Errorf("decode cache: %d entry lists for %d tags", len(rec.Entries), len(rec.Tags))
	}

	idx := &index.Index{
		Entries: make(map[domain.Tag][]domain.EntryID, len(rec.Tags)),
		Min:     rec.Min,
		Max:     rec.Max,
	}
	cells := make([][][]domain.EntryID, len(rec.Tags))
	for x, tag := range rec.Tags {
		idx.Entries[tag] = rec.Entries[x]
		cells[x] = make([][]domain.EntryID, x+1)
		cells[x][x] = rec.Entries[x]
	}
	for _, c := range rec.Shared {
		if c.Row >= len(cells) || c.Col < 0 || c.Col >= c.Row {
			return nil, fmt.Errorf("decode cache: shared cell (%d,%d) out of range", c.Row, c.Col)
		}
		cells[c.Row][c.Col] = c.Entries
	}

	m, err := index.RestoreMatrix(rec.Tags, cells)
	if err != nil {
		return nil, err
	}

	s := &snapshot.Snapshot{
		ID:      rec.ID,
		BuiltAt: time.Unix(0, rec.BuiltAt).UTC(),
		Index:   idx,
		Matrix:  m,
	}
	if s.Cloud, err = decodeCloud(rec.Tags, rec.Clouds[cloudFull]); err != nil {
		return nil, err
	}
	if s.Popular, err = decodeCloud(rec.Tags, rec.Clouds[cloudPopular]); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeCloud(tags []domain.Tag, rows []cloudRow) (cloud.Cloud, error) {
	var c cloud.Cloud
	for _, r := range rows {
		if r.Position < 0 || r.Position >= len(tags) {
			return nil, fmt.Errorf("decode cache: cloud tag position %d out of range", r.Position)
		}
		c = append(c, cloud.Entry{Tag: tags[r.Position], Count: r.Count, Size: r.Size})
	}
	return c, nil
}
