// Package corpus reads tagged entries from the content store.
//
// A Source lists candidate items cheaply (Refs) and reads the metadata of a
// single item on demand (Load), so the indexer can filter on directory and
// extension before touching file contents.
package corpus

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/pbaille/folksonomy/internal/domain"
)

var ErrEntryNotFound = errors.New("entry not found")

// Ref locates a candidate entry without reading it.
type Ref struct {
	ID domain.EntryID
	// Dir is the name of the directory containing the entry.
	Dir string
	// Ext is the file extension without the leading dot.
	Ext string
}

// Source enumerates and reads corpus entries.
type Source interface {
	Refs() ([]Ref, error)
	Load(id domain.EntryID) (*domain.Entry, error)
}

// RefFor derives a Ref from an entry ID. rootName names the directory holding
// top-level entries.
func RefFor(id domain.EntryID, rootName string) Ref {
	p := string(id)
	dir := rootName
	if d := path.Dir(p); d != "." {
		dir = path.Base(d)
	}
	return Ref{
		ID:  id,
		Dir: dir,
		Ext: strings.TrimPrefix(path.Ext(p), "."),
	}
}

// Memory is a Source over entries held in memory.
type Memory struct {
	entries map[domain.EntryID]domain.Entry
}

func NewMemory(entries ...domain.Entry) *Memory {
	m := &Memory{entries: make(map[domain.EntryID]domain.Entry, len(entries))}
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return m
}

func (m *Memory) Refs() ([]Ref, error) {
	refs := make([]Ref, 0, len(m.entries))
	for id := range m.entries {
		refs = append(refs, RefFor(id, ""))
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (m *Memory) Load(id domain.EntryID) (*domain.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", id, ErrEntryNotFound)
	}
	return &e, nil
}
