package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/sparse"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/geohealth/envfuse/internal/domain"
)

// Freshness windows. Results covering recent dates age out faster because
// near-real-time source data is revised more often than historical archives.
const (
	recentWindow  = 7 * 24 * time.Hour
	recentMaxAge  = 6 * time.Hour
	archiveMaxAge = 24 * time.Hour
)

// Store is the result cache consumed by the pipeline.
type Store interface {
	// Get returns the cached result for the key, or (nil, nil) on a miss.
	// A corrupt entry returns an error wrapping domain.ErrCacheCorrupt
	// and is removed so the recomputed result can overwrite it.
	Get(key Key) (*domain.HarmonizedResult, error)
	// Put persists a result. The write is atomic with respect to readers.
	Put(key Key, result *domain.HarmonizedResult) error
}

// envelope is the serialized cache entry. Arrays are flattened into plain
// shape+elements pairs so the on-disk format does not depend on array
// library internals.
type envelope struct {
	CreatedAt      time.Time
	FeatureNames   []string
	Shapes         map[string][]int
	Elements       map[string][]float64
	Quality        domain.QualityReport
	Bounds         domain.Bounds
	TimeRange      domain.TimeRange
	Resolution     domain.Resolution
	Grid           domain.GridSpec
	MissingSources []domain.SourceKind
	GeneratedAt    time.Time
}

// FileStore is a directory-backed Store. Writes go to a temp file in the
// same directory followed by a rename, so a reader never observes a
// half-written entry.
type FileStore struct {
	dir    string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewFileStore creates the cache directory if needed.
func NewFileStore(dir string, clock clockwork.Clock, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir, clock: clock, logger: logger}, nil
}

func (s *FileStore) Get(key Key) (*domain.HarmonizedResult, error) {
	path := filepath.Join(s.dir, key.filename())
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cache entry: %w", err)
	}
	defer f.Close()

	var env envelope
	if err := gob.NewDecoder(f).Decode(&env); err != nil {
		// Corrupt entries are removed so the recompute can overwrite
		// them; the caller treats this as a miss.
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, key, err)
	}

	if s.clock.Now().Sub(env.CreatedAt) >= maxAgeFor(env.TimeRange.End, s.clock.Now()) {
		s.logger.Debug("cache entry stale", "key", key.String(), "created_at", env.CreatedAt)
		_ = os.Remove(path)
		return nil, nil
	}
	return env.toResult()
}

func (s *FileStore) Put(key Key, result *domain.HarmonizedResult) error {
	env := toEnvelope(result, s.clock.Now())

	tmp := filepath.Join(s.dir, "."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(env); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, key.filename())); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

// maxAgeFor returns the validity window for a result whose covered range
// ends at rangeEnd: 6 hours when the range touches the last 7 days, 24
// hours for purely historical ranges.
func maxAgeFor(rangeEnd, now time.Time) time.Duration {
	if now.Sub(rangeEnd) < recentWindow {
		return recentMaxAge
	}
	return archiveMaxAge
}

func toEnvelope(r *domain.HarmonizedResult, now time.Time) envelope {
	env := envelope{
		CreatedAt:      now,
		FeatureNames:   r.FeatureNames,
		Shapes:         make(map[string][]int, len(r.Features)),
		Elements:       make(map[string][]float64, len(r.Features)),
		Quality:        r.Quality,
		Bounds:         r.Bounds,
		TimeRange:      r.TimeRange,
		Resolution:     r.Resolution,
		Grid:           r.Grid,
		MissingSources: r.MissingSources,
		GeneratedAt:    r.GeneratedAt,
	}
	for name, arr := range r.Features {
		env.Shapes[name] = arr.Shape
		env.Elements[name] = arr.Elements
	}
	return env
}

func (env envelope) toResult() (*domain.HarmonizedResult, error) {
	r := &domain.HarmonizedResult{
		Features:       make(map[string]*sparse.DenseArray, len(env.Elements)),
		FeatureNames:   env.FeatureNames,
		Quality:        env.Quality,
		Bounds:         env.Bounds,
		TimeRange:      env.TimeRange,
		Resolution:     env.Resolution,
		Grid:           env.Grid,
		MissingSources: env.MissingSources,
		GeneratedAt:    env.GeneratedAt,
	}
	for name, elems := range env.Elements {
		shape, ok := env.Shapes[name]
		if !ok {
			return nil, fmt.Errorf("%w: feature %q has elements but no shape", domain.ErrCacheCorrupt, name)
		}
		arr := sparse.ZerosDense(shape...)
		if len(arr.Elements) != len(elems) {
			return nil, fmt.Errorf("%w: feature %q shape %v does not fit %d elements",
				domain.ErrCacheCorrupt, name, shape, len(elems))
		}
		copy(arr.Elements, elems)
		r.Features[name] = arr
	}
	return r, nil
}
