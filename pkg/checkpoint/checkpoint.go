// Package checkpoint implements CheckpointManager: atomic persistence of
// one training run's resumable state. A checkpoint is the five-file
// quintuple the executor's resume contract needs — weights, optimizer
// state, result snapshot, config, and RNG seed — written as a group:
// all five are staged in a temp directory, the previous checkpoint
// directory is moved aside, and the staging directory is renamed into
// its place, so a reader never observes a mixed old/new set.
package checkpoint

import (
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/layers"
	"github.com/plandes/dltools/pkg/optimizers"
)

// suffixes for the five files a checkpoint is split across.
const (
	suffixWeights = ".weights"
	suffixOptim   = ".optim"
	suffixResult  = ".result"
	suffixConfig  = ".config"
	suffixSeed    = ".seed"

	// suffixFinalResult holds the completed run's ModelResult, kept apart
	// from suffixResult: the .result file tracks the best-validation
	// epoch's snapshot, while the final results cover epochs trained after
	// that point.
	suffixFinalResult = ".final.result"
)

// OptimState is the subset of optimizer state this module persists: the
// current learning rate, plus any per-parameter moment buffers the
// optimizer chooses to expose. Adam/RMSProp-specific fields are kept as
// an opaque blob rather than typed, since pkg/optimizers does not
// currently expose a serialization hook of its own.
type OptimState struct {
	LearningRate float64
	Extra        map[string][]float64
}

// ExecutorState is everything Save persists as one checkpoint.
type ExecutorState struct {
	Module     layers.Module
	Optimizer  optimizers.Optimizer
	OptimExtra map[string][]float64
	Result     any
	Config     any
	Seed       int64
}

// Manager reads and writes checkpoints rooted at Dir. The committed
// quintuple lives in the <Dir>/<Prefix> directory as "<Prefix>" plus
// each of the five suffixes above; the final-results snapshot sits
// beside that directory as "<Prefix>.final.result".
type Manager struct {
	Dir    string
	Prefix string
}

func New(dir, prefix string) *Manager {
	return &Manager{Dir: dir, Prefix: prefix}
}

// checkpointDir is the committed quintuple's directory: the unit the
// staged save renames into place.
func (c *Manager) checkpointDir() string {
	return filepath.Join(c.Dir, c.Prefix)
}

func (c *Manager) path(suffix string) string {
	return filepath.Join(c.checkpointDir(), c.Prefix+suffix)
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "create checkpoint temp file "+tmp, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return dlerrors.Wrap(dlerrors.KindIO, "write checkpoint file "+path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return dlerrors.Wrap(dlerrors.KindIO, "close checkpoint file "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "rename checkpoint file "+path, err)
	}
	return nil
}

// writeFile creates path inside the staging directory. The staging
// directory as a whole is the atomic unit, so no per-file temp+rename is
// needed here.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "create checkpoint file "+path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return dlerrors.Wrap(dlerrors.KindIO, "write checkpoint file "+path, err)
	}
	if err := f.Close(); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "close checkpoint file "+path, err)
	}
	return nil
}

// Save persists st as one checkpoint: all five files are written to a
// staging directory first, then the committed directory is renamed aside
// and the staging directory is renamed into its place. A failure while
// staging leaves the previously committed checkpoint untouched; a failed
// final rename moves the previous checkpoint back.
func (c *Manager) Save(st ExecutorState) error {
	if st.Module == nil {
		return dlerrors.New(dlerrors.KindModelContract, "checkpoint save requires a module")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "create checkpoint dir", err)
	}

	staging := filepath.Join(c.Dir, "."+c.Prefix+".staging")
	if err := os.RemoveAll(staging); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "clear checkpoint staging dir", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "create checkpoint staging dir", err)
	}
	stagePath := func(suffix string) string {
		return filepath.Join(staging, c.Prefix+suffix)
	}

	err := func() error {
		if err := writeWeights(stagePath(suffixWeights), st.Module); err != nil {
			return err
		}
		if err := writeOptim(stagePath(suffixOptim), st.Optimizer, st.OptimExtra); err != nil {
			return err
		}
		if err := writeGob(stagePath(suffixResult), st.Result); err != nil {
			return err
		}
		if err := writeConfig(stagePath(suffixConfig), st.Config); err != nil {
			return err
		}
		return writeSeed(stagePath(suffixSeed), st.Seed)
	}()
	if err != nil {
		os.RemoveAll(staging)
		return err
	}

	// Commit: swap the fully staged directory into place. The old
	// quintuple is moved aside first (rename cannot replace a non-empty
	// directory) and discarded only after the new one is in place.
	committed := c.checkpointDir()
	old := filepath.Join(c.Dir, "."+c.Prefix+".old")
	os.RemoveAll(old)
	if _, statErr := os.Stat(committed); statErr == nil {
		if err := os.Rename(committed, old); err != nil {
			os.RemoveAll(staging)
			return dlerrors.Wrap(dlerrors.KindIO, "move aside previous checkpoint", err)
		}
	}
	if err := os.Rename(staging, committed); err != nil {
		// put the previous checkpoint back rather than leaving none
		os.Rename(old, committed)
		os.RemoveAll(staging)
		return dlerrors.Wrap(dlerrors.KindIO, "commit checkpoint", err)
	}
	os.RemoveAll(old)
	return nil
}

type paramMeta struct {
	Shape []int `json:"shape"`
}

type weightsMeta struct {
	Version int         `json:"version"`
	Params  []paramMeta `json:"params"`
}

// writeWeights writes module's parameters in a
// [uint32 metaLen][metaJSON][float64...] layout.
func writeWeights(path string, module layers.Module) error {
	params := module.Params()
	meta := weightsMeta{Version: 1, Params: make([]paramMeta, len(params))}
	for i, p := range params {
		if p == nil || p.Value == nil {
			return dlerrors.New(dlerrors.KindModelContract, fmt.Sprintf("param %d is nil", i))
		}
		meta.Params[i] = paramMeta{Shape: append([]int(nil), p.Value.Shape...)}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "marshal weights meta", err)
	}

	return writeFile(path, func(f *os.File) error {
		if err := binary.Write(f, binary.LittleEndian, uint32(len(metaBytes))); err != nil {
			return err
		}
		if _, err := f.Write(metaBytes); err != nil {
			return err
		}
		for _, p := range params {
			for _, v := range p.Value.Data {
				if err := binary.Write(f, binary.LittleEndian, v); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeOptim(path string, opt optimizers.Optimizer, extra map[string][]float64) error {
	state := OptimState{Extra: extra}
	if lrGetter, ok := opt.(interface{ CurrentLearningRate() float64 }); ok {
		state.LearningRate = lrGetter.CurrentLearningRate()
	}
	return writeGob(path, state)
}

func writeGob(path string, val any) error {
	return writeFile(path, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(val)
	})
}

func writeConfig(path string, cfg any) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "marshal config", err)
	}
	return writeFile(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

func writeSeed(path string, seed int64) error {
	return writeFile(path, func(f *os.File) error {
		return binary.Write(f, binary.LittleEndian, seed)
	})
}

// LoadWeights reads the weights file back into module's existing
// parameter tensors, validating shape compatibility.
func (c *Manager) LoadWeights(module layers.Module) error {
	f, err := os.Open(c.path(suffixWeights))
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "open weights file", err)
	}
	defer f.Close()

	var metaLen uint32
	if err := binary.Read(f, binary.LittleEndian, &metaLen); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "read weights meta length", err)
	}
	metaBytes := make([]byte, metaLen)
	if _, err := f.Read(metaBytes); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "read weights meta", err)
	}
	var meta weightsMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "unmarshal weights meta", err)
	}

	params := module.Params()
	if len(meta.Params) != len(params) {
		return dlerrors.New(dlerrors.KindModelContract,
			fmt.Sprintf("params count mismatch: checkpoint=%d model=%d", len(meta.Params), len(params)))
	}
	for i, pm := range meta.Params {
		count := 1
		for _, d := range pm.Shape {
			count *= d
		}
		target := params[i].Value
		if len(target.Shape) != len(pm.Shape) {
			return dlerrors.New(dlerrors.KindModelContract, fmt.Sprintf("shape rank mismatch for param %d", i))
		}
		for k := range pm.Shape {
			if pm.Shape[k] != target.Shape[k] {
				return dlerrors.New(dlerrors.KindModelContract, fmt.Sprintf("shape mismatch for param %d", i))
			}
		}
		buf := make([]float64, count)
		for j := 0; j < count; j++ {
			if err := binary.Read(f, binary.LittleEndian, &buf[j]); err != nil {
				return dlerrors.Wrap(dlerrors.KindIO, "read weight values", err)
			}
		}
		target.Data = buf
	}
	return nil
}

// LoadOptim decodes the .optim file.
func (c *Manager) LoadOptim() (OptimState, error) {
	var state OptimState
	f, err := os.Open(c.path(suffixOptim))
	if err != nil {
		return state, dlerrors.Wrap(dlerrors.KindIO, "open optim file", err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return state, dlerrors.Wrap(dlerrors.KindIO, "decode optim file", err)
	}
	return state, nil
}

// LoadConfig unmarshals the .config file into out.
func (c *Manager) LoadConfig(out any) error {
	data, err := os.ReadFile(c.path(suffixConfig))
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "read config file", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "unmarshal config file", err)
	}
	return nil
}

// LoadSeed reads the persisted seed and returns a freshly-seeded source
// (Go's math/rand does not expose internal state directly, so seed
// round-tripping is the reproducible unit, not a full state dump).
func (c *Manager) LoadSeed() (int64, *rand.Rand, error) {
	f, err := os.Open(c.path(suffixSeed))
	if err != nil {
		return 0, nil, dlerrors.Wrap(dlerrors.KindIO, "open seed file", err)
	}
	defer f.Close()
	var seed int64
	if err := binary.Read(f, binary.LittleEndian, &seed); err != nil {
		return 0, nil, dlerrors.Wrap(dlerrors.KindIO, "read seed", err)
	}
	return seed, rand.New(rand.NewSource(seed)), nil
}

// LoadResult decodes the .result file into out.
func (c *Manager) LoadResult(out any) error {
	f, err := os.Open(c.path(suffixResult))
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "open result file", err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(out); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "decode result file", err)
	}
	return nil
}

// SaveFinalTrainedResults writes the completed ModelResult separately
// from the committed checkpoint: by the time training ends the weights
// there may already be older by construction (they hold the
// best-validation snapshot, not the final epoch's weights), so folding
// the final results into the quintuple would pair final-epoch results
// with best-epoch weights.
func (c *Manager) SaveFinalTrainedResults(snapshot any) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "create checkpoint dir", err)
	}
	final := filepath.Join(c.Dir, c.Prefix+suffixFinalResult)
	return writeAtomic(final, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(snapshot)
	})
}

// LoadFinalTrainedResults decodes the .final.result file into out.
func (c *Manager) LoadFinalTrainedResults(out any) error {
	final := filepath.Join(c.Dir, c.Prefix+suffixFinalResult)
	f, err := os.Open(final)
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "open final result file", err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(out); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "decode final result file", err)
	}
	return nil
}

// Exists reports whether a committed checkpoint with all five files is
// present. Because Save commits with one directory rename, a partial
// quintuple here means outside interference, not a torn write.
func (c *Manager) Exists() bool {
	for _, suffix := range []string{suffixWeights, suffixOptim, suffixResult, suffixConfig, suffixSeed} {
		if _, err := os.Stat(c.path(suffix)); err != nil {
			return false
		}
	}
	return true
}
