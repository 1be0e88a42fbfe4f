package lifecycle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/plandes/dltools/pkg/lifecycle"
)

func TestGetStatusIteratesWhenFileAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.json")
	m := lifecycle.New(path, nil, nil)

	st := m.GetStatus()
	if st.Action != lifecycle.ActionIterateEpoch || st.Epoch != 1 {
		t.Fatalf("got %+v, want ITERATE epoch=1", st)
	}
	st = m.GetStatus()
	if st.Epoch != 2 {
		t.Fatalf("got %+v, want epoch=2 after a second poll", st)
	}
}

func TestGetStatusSetEpochOverridesAndUnlinksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.json")
	if err := os.WriteFile(path, []byte(`{"epoch": 4}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m := lifecycle.New(path, nil, nil)

	st := m.GetStatus()
	if st.Action != lifecycle.ActionSetEpoch || st.Epoch != 4 {
		t.Fatalf("got %+v, want SET_EPOCH(4)", st)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("update file must be unlinked after every poll")
	}
}

func TestGetStatusMalformedFileDowngradesToStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := lifecycle.New(path, nil, nil)

	st := m.GetStatus()
	if st.Action != lifecycle.ActionStop {
		t.Fatalf("got %+v, want STOP on malformed file", st)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("update file must be unlinked even on malformed content")
	}
}

func TestGetStatusEmptyFileIsStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	m := lifecycle.New(path, nil, nil)
	if st := m.GetStatus(); st.Action != lifecycle.ActionStop {
		t.Fatalf("got %+v, want STOP on an empty file", st)
	}
}

func TestStopCreatesFileOnceAndGetStatusConsumesIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.json")
	m := lifecycle.New(path, nil, nil)

	created, err := m.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first Stop() call should report it created the file")
	}

	createdAgain, err := m.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if createdAgain {
		t.Fatal("second Stop() call should report false: file already exists")
	}

	st := m.GetStatus()
	if st.Action != lifecycle.ActionStop {
		t.Fatalf("got %+v, want STOP after Stop() was called", st)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("polling must unlink the stop file")
	}
}

func TestResetRemovesStaleFileAndZeroesEpoch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.json")
	if err := os.WriteFile(path, []byte(`{"epoch": 9}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m := lifecycle.New(path, nil, nil)
	m.Reset()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("Reset must remove a stale update file left from a prior run")
	}
	if m.CurrentEpoch() != 0 {
		t.Fatalf("CurrentEpoch after Reset = %d, want 0", m.CurrentEpoch())
	}

	st := m.GetStatus()
	if st.Action != lifecycle.ActionIterateEpoch || st.Epoch != 1 {
		t.Fatalf("got %+v, want a fresh ITERATE after Reset", st)
	}
}
