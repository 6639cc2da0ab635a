package metastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"typewatch/internal/engine/sem"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "meta.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	meta := sem.Metadata{
		NamedTuple: &sem.NamedTupleMeta{Fields: []string{"x", "y"}},
	}
	require.NoError(t, s.SaveClass("app.models", "app.models.Point", meta))

	got, ok, err := s.LoadClass("app.models.Point")
	require.NoError(t, err)
	require.True(t, ok, "class not found after save")
	require.NotNil(t, got.NamedTuple)
	require.Equal(t, []string{"x", "y"}, got.NamedTuple.Fields)

	_, ok, err = s.LoadClass("app.models.Missing")
	require.NoError(t, err)
	require.False(t, ok, "found class that was never saved")
}

func TestEmptyMetadataDeletesRow(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveClass("m", "m.C", sem.Metadata{DataclassTag: true}))
	require.NoError(t, s.SaveClass("m", "m.C", sem.Metadata{}))

	_, ok, err := s.LoadClass("m.C")
	require.NoError(t, err)
	require.False(t, ok, "empty metadata should delete the row")
}

func TestUpsertReplacesPayload(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveClass("m", "m.C", sem.Metadata{
		Dataclass: &sem.DataclassMeta{Frozen: false},
	}))
	require.NoError(t, s.SaveClass("m", "m.C", sem.Metadata{
		Dataclass: &sem.DataclassMeta{Frozen: true},
	}))

	got, ok, err := s.LoadClass("m.C")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Dataclass)
	require.True(t, got.Dataclass.Frozen)
}

func TestSaveUnchangedSkipsWrite(t *testing.T) {
	s := openTestStore(t)

	meta := sem.Metadata{NamedTuple: &sem.NamedTupleMeta{Fields: []string{"x"}}}
	require.NoError(t, s.SaveClass("m", "m.P", meta))

	// Pin the row's timestamp so a skipped upsert is observable.
	_, err := s.db.Exec(`UPDATE class_metadata SET updated_at = 42 WHERE class_fullname = 'm.P'`)
	require.NoError(t, err)

	require.NoError(t, s.SaveClass("m", "m.P", meta))
	var updatedAt int64
	err = s.db.QueryRow(`SELECT updated_at FROM class_metadata WHERE class_fullname = 'm.P'`).Scan(&updatedAt)
	require.NoError(t, err)
	require.EqualValues(t, 42, updatedAt, "identical payload should not be rewritten")

	changed := sem.Metadata{NamedTuple: &sem.NamedTupleMeta{Fields: []string{"x", "y"}}}
	require.NoError(t, s.SaveClass("m", "m.P", changed))
	err = s.db.QueryRow(`SELECT updated_at FROM class_metadata WHERE class_fullname = 'm.P'`).Scan(&updatedAt)
	require.NoError(t, err)
	require.NotEqualValues(t, 42, updatedAt, "changed payload should be rewritten")
}

func TestPruneModules(t *testing.T) {
	s := openTestStore(t)

	for _, c := range []struct{ module, name string }{
		{"keep", "keep.A"},
		{"stale", "stale.B"},
	} {
		require.NoError(t, s.SaveClass(c.module, c.name, sem.Metadata{DataclassTag: true}))
	}
	require.NoError(t, s.PruneModules([]string{"keep"}))

	_, ok, err := s.LoadClass("keep.A")
	require.NoError(t, err)
	require.True(t, ok, "kept class missing")

	_, ok, err = s.LoadClass("stale.B")
	require.NoError(t, err)
	require.False(t, ok, "stale class survived prune")
}

func TestRecordRun(t *testing.T) {
	s := openTestStore(t)

	id, err := s.RecordRun(RunRecord{
		Modules:     3,
		Diagnostics: 1,
		Passes:      2,
		Duration:    120 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var modules int
	err = s.db.QueryRow(`SELECT modules FROM analysis_runs WHERE run_id = ?`, id).Scan(&modules)
	require.NoError(t, err)
	require.Equal(t, 3, modules)
}
