// Package match compares a probe descriptor against a gallery of enrolled
// identities. Cached descriptors are used first; the rest are fetched and
// extracted in fixed-size concurrent batches, written through to the cache,
// ranked by Euclidean distance and passed through the confidence Policy.
package match

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// DescriptorStore is the process-wide descriptor cache.
type DescriptorStore interface {
	Get(key string) (domain.Descriptor, bool)
	Set(key string, d domain.Descriptor)
	Delete(key string)
	Clear() int
	Size() int
}

// ImageFetcher retrieves portrait bytes and owns the URL byte cache.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Evict(url string)
	CacheLen() int
	ClearCache() int
}

// Extractor computes the descriptor of the face in an encoded image.
type Extractor interface {
	Extract(ctx context.Context, data []byte, maxDimension int) (domain.Descriptor, error)
}

type Config struct {
	BatchSize           int
	GalleryMaxDimension int
	Dimension           int
	PreloadSampleSize   int
	Policy              Policy
}

func DefaultConfig() Config {
	return Config{
		BatchSize:           5,
		GalleryMaxDimension: 480,
		Dimension:           domain.DefaultDescriptorDimension,
		PreloadSampleSize:   50,
		Policy:              DefaultPolicy(),
	}
}

// Evaluation is everything one FindMatch run produced: the ranked
// candidates and the accepted match, if any.
type Evaluation struct {
	Candidates []domain.MatchCandidate
	Result     *domain.MatchResult
	CacheHits  int
	Computed   int
	Failed     int
}

type Engine struct {
	descriptors DescriptorStore
	fetcher     ImageFetcher
	extractor   Extractor
	config      Config
	logger      *slog.Logger
	flights     singleflight.Group
}

func NewEngine(descriptors DescriptorStore, fetcher ImageFetcher, extractor Extractor, cfg Config, logger *slog.Logger) *Engine {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Dimension < 1 {
		cfg.Dimension = domain.DefaultDescriptorDimension
	}
	return &Engine{
		descriptors: descriptors,
		fetcher:     fetcher,
		extractor:   extractor,
		config:      cfg,
		logger:      logger,
	}
}

// FindMatch returns the accepted match for probe, or nil when the gallery
// yields nothing trustworthy. Per-identity failures never surface here.
func (e *Engine) FindMatch(ctx context.Context, probe domain.Descriptor, gallery []domain.Identity) (*domain.MatchResult, error) {
	eval, err := e.Evaluate(ctx, probe, gallery)
	if err != nil {
		return nil, err
	}
	return eval.Result, nil
}

// slot is one eligible gallery entry; position keeps ties in gallery order.
type slot struct {
	position  int
	identity  domain.Identity
	candidate *domain.MatchCandidate
}

// Evaluate runs the full collect-then-rank pass over the gallery.
func (e *Engine) Evaluate(ctx context.Context, probe domain.Descriptor, gallery []domain.Identity) (*Evaluation, error) {
	if err := probe.Validate(e.config.Dimension); err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	slots := eligible(gallery)
	eval := &Evaluation{}

	var missing []int
	for i := range slots {
		s := &slots[i]
		cached, ok := e.descriptors.Get(s.identity.Key)
		if !ok {
			missing = append(missing, i)
			continue
		}
		distance, err := domain.Euclidean(probe, cached)
		if err != nil {
			// Stale entry from a model with a different dimension
			e.descriptors.Delete(s.identity.Key)
			missing = append(missing, i)
			continue
		}
		s.candidate = &domain.MatchCandidate{Identity: s.identity, Distance: distance, Source: domain.SourceCache}
		eval.CacheHits++
	}

	var mu sync.Mutex
	err := e.inBatches(ctx, missing, func(idx int) {
		s := &slots[idx]
		d, err := e.compute(ctx, s.identity)
		if err != nil {
			mu.Lock()
			eval.Failed++
			mu.Unlock()
			return
		}
		distance, err := domain.Euclidean(probe, d)
		if err != nil {
			e.logFailure(s.identity, "distance", err)
			mu.Lock()
			eval.Failed++
			mu.Unlock()
			return
		}
		s.candidate = &domain.MatchCandidate{Identity: s.identity, Distance: distance, Source: domain.SourceFresh}
		mu.Lock()
		eval.Computed++
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	eval.Candidates = rank(slots)
	eval.Result = e.config.Policy.Decide(eval.Candidates)
	return eval, nil
}

// inBatches calls fn for every index, BatchSize at a time. Batches run one
// after another; indices inside a batch run concurrently. fn must absorb its
// own failures, so a batch always runs to completion. The context is checked
// between batches only.
func (e *Engine) inBatches(ctx context.Context, indices []int, fn func(idx int)) error {
	for start := 0; start < len(indices); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+e.config.BatchSize, len(indices))

		var g errgroup.Group
		for _, idx := range indices[start:end] {
			idx := idx
			g.Go(func() error {
				fn(idx)
				return nil
			})
		}
		_ = g.Wait()
	}
	return ctx.Err()
}

// compute fetches and extracts the descriptor for one identity and writes
// it to the cache before returning. Concurrent calls for the same identity
// and portrait share one computation. The shared work is detached from every
// caller's cancellation and bounded only by the fetch and decode timeouts;
// each caller stops waiting when its own ctx is done.
func (e *Engine) compute(ctx context.Context, identity domain.Identity) (domain.Descriptor, error) {
	detached := context.WithoutCancel(ctx)
	ch := e.flights.DoChan(flightKey(identity), func() (interface{}, error) {
		return e.describe(detached, identity)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.Descriptor), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) describe(ctx context.Context, identity domain.Identity) (domain.Descriptor, error) {
	start := time.Now()

	data, err := e.fetcher.Fetch(ctx, identity.PortraitURL)
	if err != nil {
		e.logFailure(identity, "fetch", err)
		return nil, err
	}

	d, err := e.extractor.Extract(ctx, data, e.config.GalleryMaxDimension)
	if err != nil {
		e.logFailure(identity, "extract", err)
		return nil, err
	}

	e.descriptors.Set(identity.Key, d)

	e.logger.Debug("descriptor computed",
		slog.String("identity_key", identity.Key),
		slog.Duration("duration", time.Since(start)),
	)
	return d, nil
}

func (e *Engine) logFailure(identity domain.Identity, stage string, err error) {
	e.logger.Warn("gallery identity skipped",
		slog.String("identity_key", identity.Key),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

func flightKey(identity domain.Identity) string {
	return identity.Key + "\x00" + identity.PortraitURL
}

// eligible drops identities without a portrait and repeated keys (first
// occurrence wins) while remembering each entry's gallery position.
func eligible(gallery []domain.Identity) []slot {
	seen := make(map[string]struct{}, len(gallery))
	slots := make([]slot, 0, len(gallery))
	for i, identity := range gallery {
		if !identity.HasPortrait() {
			continue
		}
		if _, dup := seen[identity.Key]; dup {
			continue
		}
		seen[identity.Key] = struct{}{}
		slots = append(slots, slot{position: i, identity: identity})
	}
	return slots
}

// rank collects candidates and orders them by (distance, gallery position).
func rank(slots []slot) []domain.MatchCandidate {
	type ranked struct {
		position  int
		candidate domain.MatchCandidate
	}

	collected := make([]ranked, 0, len(slots))
	for _, s := range slots {
		if s.candidate != nil {
			collected = append(collected, ranked{position: s.position, candidate: *s.candidate})
		}
	}

	slices.SortFunc(collected, func(a, b ranked) int {
		if c := cmp.Compare(a.candidate.Distance, b.candidate.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.position, b.position)
	})

	out := make([]domain.MatchCandidate, len(collected))
	for i, r := range collected {
		out[i] = r.candidate
	}
	return out
}
