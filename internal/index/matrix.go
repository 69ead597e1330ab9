package index

import (
	"fmt"

	"github.com/pbaille/folksonomy/internal/domain"
)

// Matrix holds the entries shared by every pair of tags.
//
// Given sorted tags A..E, only the lower triangle is stored:
//
//	  | A      B      C
//	--+-------------------
//	A | T(A)
//	B | T(AB)  T(B)
//	C | T(AC)  T(BC)  T(C)
//
// cells[x][y] with y <= x; the diagonal holds each tag's full entry list.
type Matrix struct {
	tags      []domain.Tag
	positions map[domain.Tag]int
	cells     [][][]domain.EntryID
}

// NewMatrix sorts the index tags and computes every pairwise intersection.
func NewMatrix(idx *Index) *Matrix {
	tags := idx.SortedTags()
	members := make([]map[domain.EntryID]struct{}, len(tags))
	for i, t := range tags {
		members[i] = make(map[domain.EntryID]struct{}, len(idx.Entries[t]))
		for _, e := range idx.Entries[t] {
			members[i][e] = struct{}{}
		}
	}

	cells := make([][][]domain.EntryID, len(tags))
	for x := range tags {
		xEntries := idx.Entries[tags[x]]
		cells[x] = make([][]domain.EntryID, x+1)
		cells[x][x] = xEntries
		for y := 0; y < x; y++ {
			cells[x][y] = intersect(xEntries, members[y])
		}
	}

	return &Matrix{
		tags:      tags,
		positions: positionsOf(tags),
		cells:     cells,
	}
}

// RestoreMatrix rebuilds a matrix from persisted parts.
func RestoreMatrix(tags []domain.Tag, cells [][][]domain.EntryID) (*Matrix, error) {
	if len(cells) != len(tags) {
		return nil, fmt.Errorf("restore matrix: %d rows for %d tags", len(cells), len(tags))
	}
	for x, row := range cells {
		if len(row) != x+1 {
			return nil, fmt.Errorf("restore matrix: row %d has %d cells", x, len(row))
		}
	}
	return &Matrix{
		tags:      tags,
		positions: positionsOf(tags),
		cells:     cells,
	}, nil
}

// Tags returns the sorted tag list. Callers must not modify it.
func (m *Matrix) Tags() []domain.Tag {
	return m.tags
}

func (m *Matrix) Len() int {
	return len(m.tags)
}

// Position returns the fixed position of tag.
func (m *Matrix) Position(tag domain.Tag) (int, bool) {
	p, ok := m.positions[tag]
	return p, ok
}

// SharedAt returns the entries under both tags at positions i and j, in either order.
func (m *Matrix) SharedAt(i, j int) []domain.EntryID {
	if i < j {
		i, j = j, i
	}
	return m.cells[i][j]
}

// Shared returns the entries under both a and b; empty when either is unknown.
func (m *Matrix) Shared(a, b domain.Tag) []domain.EntryID {
	i, ok := m.positions[a]
	if !ok {
		return nil
	}
	j, ok := m.positions[b]
	if !ok {
		return nil
	}
	return m.SharedAt(i, j)
}

// Row returns the stored cells of row x. Used for persistence.
func (m *Matrix) Row(x int) [][]domain.EntryID {
	return m.cells[x]
}

// intersect keeps the entries of list present in members, preserving list order.
func intersect(list []domain.EntryID, members map[domain.EntryID]struct{}) []domain.EntryID {
	var out []domain.EntryID
	for _, e := range list {
		if _, ok := members[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

func positionsOf(tags []domain.Tag) map[domain.Tag]int {
	positions := make(map[domain.Tag]int, len(tags))
	for i, t := range tags {
		positions[t] = i
	}
	return positions
}
