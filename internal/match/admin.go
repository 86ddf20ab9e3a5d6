package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// Preload computes descriptors for identities that have none cached, at
// most PreloadSampleSize of them (0 means no cap), in gallery order. It is
// best-effort: failures are counted, never returned.
func (e *Engine) Preload(ctx context.Context, identities []domain.Identity) domain.PreloadReport {
	start := time.Now()
	slots := eligible(identities)
	report := domain.PreloadReport{Considered: len(slots)}

	var pending []int
	for i, s := range slots {
		if _, ok := e.descriptors.Get(s.identity.Key); ok {
			continue
		}
		if e.config.PreloadSampleSize > 0 && len(pending) >= e.config.PreloadSampleSize {
			break
		}
		pending = append(pending, i)
	}
	report.Attempted = len(pending)

	var mu sync.Mutex
	err := e.inBatches(ctx, pending, func(idx int) {
		_, err := e.compute(ctx, slots[idx].identity)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed++
			return
		}
		report.Computed++
	})

	attrs := []any{
		slog.Int("considered", report.Considered),
		slog.Int("attempted", report.Attempted),
		slog.Int("computed", report.Computed),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		e.logger.Warn("descriptor preload interrupted", append(attrs, slog.String("error", err.Error()))...)
		return report
	}
	e.logger.Info("descriptor preload finished", attrs...)
	return report
}

// Refresh drops the cached descriptor and portrait bytes of every identity
// and recomputes them. Individual failures are reported per key.
func (e *Engine) Refresh(ctx context.Context, identities []domain.Identity) domain.RefreshReport {
	report := domain.RefreshReport{Failures: make(map[string]string)}

	seen := make(map[string]struct{}, len(identities))
	var pending []domain.Identity
	for _, identity := range identities {
		if _, dup := seen[identity.Key]; dup {
			continue
		}
		seen[identity.Key] = struct{}{}

		e.descriptors.Delete(identity.Key)
		if !identity.HasPortrait() {
			report.Failures[identity.Key] = "identity has no portrait"
			continue
		}
		e.fetcher.Evict(identity.PortraitURL)
		e.flights.Forget(flightKey(identity))
		pending = append(pending, identity)
	}
	report.Requested = len(seen)

	indices := make([]int, len(pending))
	for i := range indices {
		indices[i] = i
	}

	var mu sync.Mutex
	err := e.inBatches(ctx, indices, func(idx int) {
		identity := pending[idx]
		_, err := e.compute(ctx, identity)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failures[identity.Key] = err.Error()
			return
		}
		report.Refreshed++
	})
	if err != nil {
		for _, identity := range pending {
			if _, ok := e.descriptors.Get(identity.Key); ok {
				continue
			}
			if _, failed := report.Failures[identity.Key]; !failed {
				report.Failures[identity.Key] = err.Error()
			}
		}
	}

	report.Failed = len(report.Failures)
	if report.Failed == 0 {
		report.Failures = nil
	}

	e.logger.Info("descriptors refreshed",
		slog.Int("requested", report.Requested),
		slog.Int("refreshed", report.Refreshed),
		slog.Int("failed", report.Failed),
	)
	return report
}

// Stats is a pure read of both cache sizes.
func (e *Engine) Stats() domain.CacheStats {
	return domain.CacheStats{
		Descriptors: e.descriptors.Size(),
		Images:      e.fetcher.CacheLen(),
	}
}

// ClearCache empties the descriptor cache and the portrait byte cache.
func (e *Engine) ClearCache() domain.ClearReport {
	report := domain.ClearReport{
		Descriptors: e.descriptors.Clear(),
		Images:      e.fetcher.ClearCache(),
	}
	e.logger.Info("caches cleared",
		slog.Int("descriptors", report.Descriptors),
		slog.Int("images", report.Images),
	)
	return report
}
