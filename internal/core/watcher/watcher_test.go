package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWatcherDeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()

	got := make(chan []string, 1)
	w, err := New(50*time.Millisecond, nil, nil, func(paths []string) {
		select {
		case got <- paths:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "mod.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-got:
		for _, p := range paths {
			if !strings.HasSuffix(p, ".py") {
				t.Errorf("non-Python path delivered: %s", p)
			}
		}
		found := false
		for _, p := range paths {
			if filepath.Base(p) == "mod.py" {
				found = true
			}
		}
		if !found {
			t.Errorf("mod.py missing from batch: %v", paths)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change batch delivered")
	}
}

func TestWatcherHonorsExcludes(t *testing.T) {
	dir := t.TempDir()

	got := make(chan []string, 4)
	w, err := New(50*time.Millisecond, nil, []string{"gen_*.py"}, func(paths []string) {
		got <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "gen_types.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "real.py"), []byte("y = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-got:
		for _, p := range paths {
			if filepath.Base(p) == "gen_types.py" {
				t.Errorf("excluded file delivered: %v", paths)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change batch delivered")
	}
}

func TestInvalidExcludePattern(t *testing.T) {
	_, err := New(time.Millisecond, []string{"[unclosed"}, nil, func([]string) {})
	if err == nil {
		t.Fatal("expected error for invalid glob pattern")
	}
}

func TestNilCallbackRejected(t *testing.T) {
	_, err := New(time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
}
