package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pbaille/folksonomy/internal/domain"
)

// Dir is a Source backed by a directory tree of entry files.
type Dir struct {
	Root string
}

func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

func (d *Dir) Refs() ([]Ref, error) {
	rootName := filepath.Base(filepath.Clean(d.Root))

	var refs []Ref
	err := filepath.WalkDir(d.Root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		refs = append(refs, RefFor(domain.EntryID(filepath.ToSlash(rel)), rootName))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.Root, err)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (d *Dir) Load(id domain.EntryID) (*domain.Entry, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", id, ErrEntryNotFound)
		}
		return nil, fmt.Errorf("stat entry: %w", err)
	}

	content, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	var meta Metadata
	switch strings.ToLower(filepath.Ext(p)) {
	case ".html", ".htm":
		if meta, err = ParseHTML(string(content)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", id, err)
		}
	default:
		meta = ParseText(string(content))
	}

	return meta.Entry(id, info.ModTime()), nil
}

func (d *Dir) path(id domain.EntryID) (string, error) {
	if !fs.ValidPath(string(id)) {
		return "", fmt.Errorf("load %s: %w", id, ErrEntryNotFound)
	}
	return filepath.Join(d.Root, filepath.FromSlash(string(id))), nil
}
