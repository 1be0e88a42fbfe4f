// Package batchpolicy implements BatchIterationPolicy: the three ways an
// Executor can pull batches from a DataLoader for one epoch. gpu and cpu
// modes differ only in where tensors are materialized (irrelevant to
// this module's CPU-only scope, so they share an implementation here)
// and can cache each phase's batches across epochs in an LRU when
// CacheBatches is set; buffered mode takes every batch the loader yields,
// with no batch_limit cap, and never caches.
package batchpolicy

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/plandes/dltools/pkg/dataloader"
	"github.com/plandes/dltools/pkg/dlerrors"
)

// Mode selects the iteration strategy.
type Mode int

const (
	ModeGPU Mode = iota
	ModeCPU
	ModeBuffered
)

func (m Mode) String() string {
	switch m {
	case ModeGPU:
		return "gpu"
	case ModeCPU:
		return "cpu"
	case ModeBuffered:
		return "buffered"
	default:
		return "unknown"
	}
}

// ParseMode parses the config string form of Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "gpu":
		return ModeGPU, nil
	case "cpu":
		return ModeCPU, nil
	case "buffered":
		return ModeBuffered, nil
	default:
		return 0, dlerrors.New(dlerrors.KindConfig, "unknown batch iteration mode: "+s)
	}
}

// Config governs one Policy instance.
type Config struct {
	Mode Mode
	// BatchLimit caps how many batches gpu and cpu modes materialize per
	// phase; 0 means no cap. Buffered mode streams the source through
	// unchanged, so no materialization count exists to limit.
	BatchLimit int
	// CacheBatches pre-materializes and caches all batches of a phase in
	// memory across epochs. Valid only when Mode is gpu or cpu; buffered
	// mode streams by construction and rejects this combination.
	CacheBatches bool
	// CacheSize bounds the number of phases (train/validation/test) kept
	// resident at once when CacheBatches is set.
	CacheSize int
}

func (c Config) validate() error {
	if c.CacheBatches && c.Mode == ModeBuffered {
		return dlerrors.New(dlerrors.KindConfig, "cache_batches is incompatible with buffered mode")
	}
	if c.BatchLimit < 0 {
		return dlerrors.New(dlerrors.KindConfig, "batch_limit must not be negative")
	}
	return nil
}

// Policy iterates a dataloader.DataLoader one epoch at a time, optionally
// caching the materialized batch slice per phase key.
type Policy struct {
	cfg   Config
	cache *lru.Cache[string, []*dataloader.Batch]
}

func New(cfg Config) (*Policy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Policy{cfg: cfg}
	if cfg.CacheBatches {
		size := cfg.CacheSize
		if size <= 0 {
			size = 8
		}
		c, err := lru.New[string, []*dataloader.Batch](size)
		if err != nil {
			return nil, dlerrors.Wrap(dlerrors.KindConfig, "create batch cache", err)
		}
		p.cache = c
	}
	return p, nil
}

// Iterate drains one epoch of loader into a slice, consulting (and
// populating) the cache when enabled. phaseKey distinguishes
// train/validation/test so each phase's materialized batches are cached
// independently.
func (p *Policy) Iterate(ctx context.Context, loader *dataloader.DataLoader, phaseKey string) ([]*dataloader.Batch, error) {
	if p.cache != nil {
		if cached, ok := p.cache.Get(phaseKey); ok {
			return cached, nil
		}
	}

	loader.Reset()
	var batches []*dataloader.Batch
	for loader.HasNext() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if p.cfg.Mode != ModeBuffered && p.cfg.BatchLimit > 0 && len(batches) >= p.cfg.BatchLimit {
			break
		}
		batches = append(batches, loader.Next())
	}

	if p.cache != nil {
		p.cache.Add(phaseKey, batches)
	}
	return batches, nil
}

// InvalidateCache drops any cached batches for phaseKey, forcing the next
// Iterate call to re-pull from loader.
func (p *Policy) InvalidateCache(phaseKey string) {
	if p.cache != nil {
		p.cache.Remove(phaseKey)
	}
}

// DeallocateBatches empties the cache across every phase. Cached batches
// otherwise persist across executor resets; this is the one explicit
// release point.
func (p *Policy) DeallocateBatches() {
	if p.cache != nil {
		p.cache.Purge()
	}
}

// CacheLen reports how many phases currently have cached batches; always
// 0 when caching is disabled (including buffered mode, which never
// caches).
func (p *Policy) CacheLen() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

func (p *Policy) Mode() Mode { return p.cfg.Mode }
