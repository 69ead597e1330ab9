package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pbaille/folksonomy/internal/corpus"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/index"
	"github.com/pbaille/folksonomy/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores() map[string]Store {
	return map[string]Store{"sqlite": SQLite{}, "bolt": Bolt{}}
}

func sample(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	src := corpus.NewMemory(
		domain.Entry{ID: "a.txt", Tags: []string{"foo", "bar"}},
		domain.Entry{ID: "b.txt", Tags: []string{"foo"}},
		domain.Entry{ID: "c.txt", Tags: []string{"bar", "baz"}},
		domain.Entry{ID: "notes/d.txt"},
		domain.Entry{ID: "e.txt", Tags: []string{"foo", "bar", "baz"}},
	)
	s, err := snapshot.Build(src, index.Options{TaggableExtensions: []string{"txt"}})
	require.NoError(t, err)
	return s
}

func assertSameSnapshot(t *testing.T, want, got *snapshot.Snapshot) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.BuiltAt.Equal(got.BuiltAt), "built at %v, got %v", want.BuiltAt, got.BuiltAt)
	assert.Equal(t, want.Index, got.Index)
	assert.Equal(t, want.Matrix, got.Matrix)
	assert.Equal(t, want.Cloud, got.Cloud)
	assert.Equal(t, want.Popular, got.Popular)
}

func TestRoundTrip(t *testing.T) {
	for name, st := range stores() {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.db")
			want := sample(t)

			require.NoError(t, st.Save(path, want))

			res := st.Load(path)
			require.NoError(t, res.Err)
			require.Equal(t, Loaded, res.Status)
			assertSameSnapshot(t, want, res.Snapshot)

			foo := domain.NewTag("foo")
			bar := domain.NewTag("bar")
			assert.Equal(t, want.Matrix.Shared(foo, bar), res.Snapshot.Matrix.Shared(foo, bar))
		})
	}
}

func TestRoundTrip_EmptySnapshot(t *testing.T) {
	for name, st := range stores() {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.db")
			want, err := snapshot.Build(corpus.NewMemory(), index.Options{})
			require.NoError(t, err)

			require.NoError(t, st.Save(path, want))

			res := st.Load(path)
			require.Equal(t, Loaded, res.Status, "err: %v", res.Err)
			assert.True(t, res.Snapshot.Empty())
			assert.Nil(t, res.Snapshot.Cloud)
			assertSameSnapshot(t, want, res.Snapshot)
		})
	}
}

func TestSave_Overwrites(t *testing.T) {
	for name, st := range stores() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "cache.db")

			first := sample(t)
			require.NoError(t, st.Save(path, first))
			second := sample(t)
			require.NoError(t, st.Save(path, second))

			res := st.Load(path)
			require.Equal(t, Loaded, res.Status)
			assert.Equal(t, second.ID, res.Snapshot.ID)

			files, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, files, 1, "temporary files left behind")
			assert.Equal(t, "cache.db", files[0].Name())
		})
	}
}

func TestLoad_Absent(t *testing.T) {
	for name, st := range stores() {
		t.Run(name, func(t *testing.T) {
			res := st.Load(filepath.Join(t.TempDir(), "missing.db"))
			assert.Equal(t, Absent, res.Status)
			assert.Nil(t, res.Snapshot)
			assert.NoError(t, res.Err)

			assert.Equal(t, Absent, st.Load("").Status)
		})
	}
}

func TestLoad_Corrupt(t *testing.T) {
	for name, st := range stores() {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.db")
			require.NoError(t, os.WriteFile(path, []byte("definitely not a cache"), 0o644))

			res := st.Load(path)
			assert.Equal(t, Corrupt, res.Status)
			assert.Error(t, res.Err)
			assert.Nil(t, res.Snapshot)
		})
	}
}

func TestLoad_OtherFormatIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, SQLite{}.Save(path, sample(t)))

	res := Bolt{}.Load(path)
	assert.Equal(t, Corrupt, res.Status)
}

func TestForFormat(t *testing.T) {
	st, err := ForFormat("")
	require.NoError(t, err)
	assert.IsType(t, SQLite{}, st)

	st, err = ForFormat("bolt")
	require.NoError(t, err)
	assert.IsType(t, Bolt{}, st)

	_, err = ForFormat("xml")
	assert.Error(t, err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "corrupt", Corrupt.String())
}
