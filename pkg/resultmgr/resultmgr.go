// Package resultmgr persists ModelResult values to disk under an
// incrementing key, using the same atomic-write pattern as pkg/checkpoint
// but for gob-encoded result snapshots.
package resultmgr

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/result"
)

// Manager dumps and loads ModelResult snapshots as "<prefix>-<key>.dat"
// files (plus an optional human-readable "<prefix>-<key>.txt" sidecar)
// under Dir, where key increments from the highest existing key. The
// snapshot is the full gob encoding of the ModelResult, epoch history
// included, so Load returns exactly what Dump was given.
type Manager struct {
	Dir    string
	Prefix string
}

// New derives Prefix from name: lower-cased, spaces replaced with
// hyphens.
func New(dir, name string) *Manager {
	prefix := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return &Manager{Dir: dir, Prefix: prefix}
}

func (m *Manager) pattern() string {
	return filepath.Join(m.Dir, m.Prefix+"-*.dat")
}

func (m *Manager) lastKey() (int, error) {
	matches, err := filepath.Glob(m.pattern())
	if err != nil {
		return 0, dlerrors.Wrap(dlerrors.KindIO, "glob result files", err)
	}
	best := 0
	for _, path := range matches {
		base := filepath.Base(path)
		base = strings.TrimSuffix(base, ".dat")
		idx := strings.LastIndex(base, "-")
		if idx < 0 {
			continue
		}
		key, err := strconv.Atoi(base[idx+1:])
		if err != nil {
			continue
		}
		if key > best {
			best = key
		}
	}
	return best, nil
}

// Dump writes mr to the next key, returning the assigned key.
func (m *Manager) Dump(mr *result.ModelResult, writeText bool) (int, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return 0, dlerrors.Wrap(dlerrors.KindIO, "create result dir", err)
	}
	last, err := m.lastKey()
	if err != nil {
		return 0, err
	}
	key := last + 1

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(mr); err != nil {
		return 0, dlerrors.Wrap(dlerrors.KindIO, "encode result", err)
	}

	dataPath := filepath.Join(m.Dir, fmt.Sprintf("%s-%d.dat", m.Prefix, key))
	tmpPath := dataPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return 0, dlerrors.Wrap(dlerrors.KindIO, "write result temp file", err)
	}
	if err := os.Rename(tmpPath, dataPath); err != nil {
		return 0, dlerrors.Wrap(dlerrors.KindIO, "rename result file", err)
	}

	if writeText {
		txtPath := filepath.Join(m.Dir, fmt.Sprintf("%s-%d.txt", m.Prefix, key))
		if err := os.WriteFile(txtPath, []byte(textForm(mr)), 0o644); err != nil {
			return 0, dlerrors.Wrap(dlerrors.KindIO, "write result text sidecar", err)
		}
	}

	return key, nil
}

func textForm(mr *result.ModelResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %d (%s)\nname: %s\ndescription: %s\n",
		mr.RunIndex, mr.RunID, mr.Name, mr.Description)
	splits := []struct {
		name string
		dr   *result.DatasetResult
	}{
		{"train", mr.TrainResult},
		{"validation", mr.ValidationResult},
		{"test", mr.TestResult},
	}
	for _, s := range splits {
		if s.dr == nil || s.dr.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "%s: %d epochs, ave_loss=%f\n",
			s.name, len(s.dr.Epochs()), s.dr.AveLoss())
	}
	return b.String()
}

// Load reads the ModelResult stored at key.
func (m *Manager) Load(key int) (*result.ModelResult, error) {
	dataPath := filepath.Join(m.Dir, fmt.Sprintf("%s-%d.dat", m.Prefix, key))
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.KindIO, "read result file", err)
	}
	var mr result.ModelResult
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&mr); err != nil {
		return nil, dlerrors.Wrap(dlerrors.KindIO, "decode result file", err)
	}
	return &mr, nil
}

// LoadLast loads the highest-keyed ModelResult.
func (m *Manager) LoadLast() (*result.ModelResult, error) {
	last, err := m.lastKey()
	if err != nil {
		return nil, err
	}
	if last == 0 {
		return nil, dlerrors.New(dlerrors.KindNoResults, "no result files present")
	}
	return m.Load(last)
}

// Keys lists every stored key, ascending.
func (m *Manager) Keys() ([]int, error) {
	matches, err := filepath.Glob(m.pattern())
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.KindIO, "glob result files", err)
	}
	var keys []int
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".dat")
		idx := strings.LastIndex(base, "-")
		if idx < 0 {
			continue
		}
		key, err := strconv.Atoi(base[idx+1:])
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys, nil
}
