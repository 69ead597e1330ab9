package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/snapshot"
	"go.etcd.io/bbolt"
)

var (
	bucketMeta   = []byte("meta")
	bucketTags   = []byte("tags")
	bucketShared = []byte("shared")
	bucketClouds = []byte("clouds")

	keyFormat  = []byte("format")
	keyID      = []byte("id")
	keyBuiltAt = []byte("built_at")
	keyMin     = []byte("min")
	keyMax     = []byte("max")
)

const boltOpenTimeout = time.Second

// Bolt stores a snapshot in a bbolt key/value file.
type Bolt struct{}

type boltTag struct {
	Name    string           `json:"name"`
	Kind    domain.TagKind   `json:"kind"`
	Entries []domain.EntryID `json:"entries"`
}

// Save writes s to path, replacing any previous cache.
func (Bolt) Save(path string, s *snapshot.Snapshot) error {
	rec := encode(s)
	return writeAtomic(path, func(tmp string) error {
		db, err := bbolt.Open(tmp, 0o600, &bbolt.Options{Timeout: boltOpenTimeout})
		if err != nil {
			return fmt.Errorf("open bolt: %w", err)
		}
		if err := db.Update(func(tx *bbolt.Tx) error { return putRecord(tx, rec) }); err != nil {
			db.Close()
			return err
		}
		return db.Close()
	})
}

func putRecord(tx *bbolt.Tx, rec record) error {
	meta, err := tx.CreateBucket(bucketMeta)
	if err != nil {
		return fmt.Errorf("create meta bucket: %w", err)
	}
	for k, v := range map[string][]byte{
		string(keyFormat):  []byte(formatVersion),
		string(keyID):      []byte(rec.ID),
		string(keyBuiltAt): itob(uint64(rec.BuiltAt)),
		string(keyMin):     itob(uint64(rec.Min)),
		string(keyMax):     itob(uint64(rec.Max)),
	} {
		if err := meta.Put([]byte(k), v); err != nil {
			return fmt.Errorf("put meta %s: %w", k, err)
		}
	}

	tags, err := tx.CreateBucket(bucketTags)
	if err != nil {
		return fmt.Errorf("create tags bucket: %w", err)
	}
	for p, tag := range rec.Tags {
		if err := putJSON(tags, itob(uint64(p)), boltTag{Name: tag.Name, Kind: tag.Kind, Entries: rec.Entries[p]}); err != nil {
			return fmt.Errorf("put tag: %w", err)
		}
	}

	shared, err := tx.CreateBucket(bucketShared)
	if err != nil {
		return fmt.Errorf("create shared bucket: %w", err)
	}
	for _, c := range rec.Shared {
		key := append(itob(uint64(c.Row)), itob(uint64(c.Col))...)
		if err := putJSON(shared, key, c.Entries); err != nil {
			return fmt.Errorf("put shared cell: %w", err)
		}
	}

	clouds, err := tx.CreateBucket(bucketClouds)
	if err != nil {
		return fmt.Errorf("create clouds bucket: %w", err)
	}
	for name, rows := range rec.Clouds {
		b, err := clouds.CreateBucket([]byte(name))
		if err != nil {
			return fmt.Errorf("create cloud bucket: %w", err)
		}
		for seq, r := range rows {
			if err := putJSON(b, itob(uint64(seq)), r); err != nil {
				return fmt.Errorf("put cloud entry: %w", err)
			}
		}
	}
	return nil
}

// Load reads the cache at path. A missing file is Absent; a file bbolt
// refuses, or one lacking the expected buckets, is Corrupt.
func (Bolt) Load(path string) LoadResult {
	if res, done := absent(path); done {
		return res
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: boltOpenTimeout})
	if err != nil {
		return corrupt(fmt.Errorf("open bolt: %w", err))
	}
	defer db.Close()

	var rec record
	if err := db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = getRecord(tx)
		return err
	}); err != nil {
		return corrupt(err)
	}

	s, err := decode(rec)
	if err != nil {
		return corrupt(err)
	}
	return LoadResult{Status: Loaded, Snapshot: s}
}

func getRecord(tx *bbolt.Tx) (record, error) {
	var rec record

	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return rec, errors.New("missing meta bucket")
	}
	if v := string(meta.Get(keyFormat)); v != formatVersion {
		return rec, fmt.Errorf("cache version %q: %w", v, errFormat)
	}
	rec.ID = string(meta.Get(keyID))
	builtAt, err := btoi(meta.Get(keyBuiltAt))
	if err != nil {
		return rec, fmt.Errorf("read built_at: %w", err)
	}
	lo, err := btoi(meta.Get(keyMin))
	if err != nil {
		return rec, fmt.Errorf("read min: %w", err)
	}
	hi, err := btoi(meta.Get(keyMax))
	if err != nil {
		return rec, fmt.Errorf("read max: %w", err)
	}
	rec.BuiltAt, rec.Min, rec.Max = int64(builtAt), int(lo), int(hi)

	tags := tx.Bucket(bucketTags)
	if tags == nil {
		return rec, errors.New("missing tags bucket")
	}
	rec.Tags = make([]domain.Tag, 0)
	// Big-endian keys iterate in position order.
	err = tags.ForEach(func(k, v []byte) error {
		p, err := btoi(k)
		if err != nil || int(p) != len(rec.Tags) {
			return fmt.Errorf("tag key %x out of sequence", k)
		}
		var t boltTag
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("decode tag: %w", err)
		}
		rec.Tags = append(rec.Tags, domain.Tag{Name: t.Name, Kind: t.Kind})
		rec.Entries = append(rec.Entries, t.Entries)
		return nil
	})
	if err != nil {
		return rec, err
	}
	if rec.Entries == nil {
		rec.Entries = make([][]domain.EntryID, 0)
	}

	shared := tx.Bucket(bucketShared)
	if shared == nil {
		return rec, errors.New("missing shared bucket")
	}
	err = shared.ForEach(func(k, v []byte) error {
		if len(k) != 16 {
			return fmt.Errorf("shared key %x malformed", k)
		}
		c := sharedCell{
			Row: int(binary.BigEndian.Uint64(k[:8])),
			Col: int(binary.BigEndian.Uint64(k[8:])),
		}
		if err := json.Unmarshal(v, &c.Entries); err != nil {
			return fmt.Errorf("decode shared cell: %w", err)
		}
		rec.Shared = append(rec.Shared, c)
		return nil
	})
	if err != nil {
		return rec, err
	}

	clouds := tx.Bucket(bucketClouds)
	if clouds == nil {
		return rec, errors.New("missing clouds bucket")
	}
	rec.Clouds = make(map[string][]cloudRow)
	for _, name := range []string{cloudFull, cloudPopular} {
		b := clouds.Bucket([]byte(name))
		if b == nil {
			continue
		}
		err := b.ForEach(func(_, v []byte) error {
			var r cloudRow
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode cloud entry: %w", err)
			}
			rec.Clouds[name] = append(rec.Clouds[name], r)
			return nil
		})
		if err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("want 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
