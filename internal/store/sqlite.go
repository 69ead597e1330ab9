package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/snapshot"
)

//go:embed schema.sql
var schema string

// SQLite stores a snapshot as a small relational database.
type SQLite struct{}

// Save writes s to path, replacing any previous cache.
func (SQLite) Save(path string, s *snapshot.Snapshot) error {
	rec := encode(s)
	return writeAtomic(path, func(tmp string) error {
		db, err := sql.Open("sqlite3", tmp)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := insertRecord(tx, rec); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return db.Close()
	})
}

func insertRecord(tx *sql.Tx, rec record) error {
	_, err := tx.Exec(
		"INSERT INTO meta (format_version, snapshot_id, built_at, min_count, max_count) VALUES (?, ?, ?, ?, ?)",
		formatVersion, rec.ID, rec.BuiltAt, rec.Min, rec.Max,
	)
	if err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	for p, tag := range rec.Tags {
		if _, err := tx.Exec(
			"INSERT INTO tags (position, name, kind) VALUES (?, ?, ?)",
			p, tag.Name, int(tag.Kind),
		); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
		for seq, id := range rec.Entries[p] {
			if _, err := tx.Exec(
				"INSERT INTO tag_entries (position, seq, entry_id) VALUES (?, ?, ?)",
				p, seq, string(id),
			); err != nil {
				return fmt.Errorf("insert tag entry: %w", err)
			}
		}
	}

	for _, c := range rec.Shared {
		for seq, id := range c.Entries {
			if _, err := tx.Exec(
				"INSERT INTO shared_entries (row, col, seq, entry_id) VALUES (?, ?, ?, ?)",
				c.Row, c.Col, seq, string(id),
			); err != nil {
				return fmt.Errorf("insert shared entry: %w", err)
			}
		}
	}

	for name, rows := range rec.Clouds {
		for seq, r := range rows {
			if _, err := tx.Exec(
				"INSERT INTO clouds (cloud, seq, position, count, size) VALUES (?, ?, ?, ?, ?)",
				name, seq, r.Position, r.Count, int(r.Size),
			); err != nil {
				return fmt.Errorf("insert cloud: %w", err)
			}
		}
	}
	return nil
}

// Load reads the cache at path. A missing file is Absent; anything that is
// not a complete cache of the current format is Corrupt.
func (SQLite) Load(path string) LoadResult {
	if res, done := absent(path); done {
		return res
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return corrupt(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	rec, err := readRecord(db)
	if err != nil {
		return corrupt(err)
	}
	s, err := decode(rec)
	if err != nil {
		return corrupt(err)
	}
	return LoadResult{Status: Loaded, Snapshot: s}
}

func readRecord(db *sql.DB) (record, error) {
	var (
		rec     record
		version string
	)
	err := db.QueryRow(
		"SELECT format_version, snapshot_id, built_at, min_count, max_count FROM meta",
	).Scan(&version, &rec.ID, &rec.BuiltAt, &rec.Min, &rec.Max)
	if err != nil {
		return rec, fmt.Errorf("read meta: %w", err)
	}
	if version != formatVersion {
		return rec, fmt.Errorf("cache version %q: %w", version, errFormat)
	}

	rows, err := db.Query("SELECT position, name, kind FROM tags ORDER BY position")
	if err != nil {
		return rec, fmt.Errorf("list tags: %w", err)
	}
	rec.Tags = make([]domain.Tag, 0)
	for rows.Next() {
		var (
			p    int
			kind int
			tag  domain.Tag
		)
		if err := rows.Scan(&p, &tag.Name, &kind); err != nil {
			rows.Close()
			return rec, fmt.Errorf("scan tag: %w", err)
		}
		if p != len(rec.Tags) {
			rows.Close()
			return rec, fmt.Errorf("tag position %d out of sequence", p)
		}
		tag.Kind = domain.TagKind(kind)
		rec.Tags = append(rec.Tags, tag)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("list tags: %w", err)
	}

	rec.Entries = make([][]domain.EntryID, len(rec.Tags))
	err = eachEntry(db, "SELECT position, entry_id FROM tag_entries ORDER BY position, seq",
		func(p int, id domain.EntryID) error {
			if p < 0 || p >= len(rec.Entries) {
				return fmt.Errorf("tag entry position %d out of range", p)
			}
			rec.Entries[p] = append(rec.Entries[p], id)
			return nil
		})
	if err != nil {
		return rec, err
	}

	rec.Shared, err = readShared(db)
	if err != nil {
		return rec, err
	}

	rec.Clouds, err = readClouds(db)
	return rec, err
}

func eachEntry(db *sql.DB, query string, fn func(int, domain.EntryID) error) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p  int
			id string
		)
		if err := rows.Scan(&p, &id); err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}
		if err := fn(p, domain.EntryID(id)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func readShared(db *sql.DB) ([]sharedCell, error) {
	rows, err := db.Query("SELECT row, col, entry_id FROM shared_entries ORDER BY row, col, seq")
	if err != nil {
		return nil, fmt.Errorf("list shared entries: %w", err)
	}
	defer rows.Close()

	var cells []sharedCell
	for rows.Next() {
		var (
			row, col int
			id       string
		)
		if err := rows.Scan(&row, &col, &id); err != nil {
			return nil, fmt.Errorf("scan shared entry: %w", err)
		}
		if n := len(cells); n == 0 || cells[n-1].Row != row || cells[n-1].Col != col {
			cells = append(cells, sharedCell{Row: row, Col: col})
		}
		last := &cells[len(cells)-1]
		last.Entries = append(last.Entries, domain.EntryID(id))
	}
	return cells, rows.Err()
}

func readClouds(db *sql.DB) (map[string][]cloudRow, error) {
	rows, err := db.Query("SELECT cloud, position, count, size FROM clouds ORDER BY cloud, seq")
	if err != nil {
		return nil, fmt.Errorf("list clouds: %w", err)
	}
	defer rows.Close()

	clouds := make(map[string][]cloudRow)
	for rows.Next() {
		var (
			name string
			r    cloudRow
		)
		if err := rows.Scan(&name, &r.Position, &r.Count, &r.Size); err != nil {
			return nil, fmt.Errorf("scan cloud: %w", err)
		}
		clouds[name] = append(clouds[name], r)
	}
	return clouds, rows.Err()
}
