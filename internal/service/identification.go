package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/patientid/internal/audit"
	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
	"github.com/saturnino-fabrica-de-software/patientid/internal/match"
)

type GalleryRepositoryInterface interface {
	ListEnrolled(ctx context.Context) ([]domain.Identity, error)
	GetByKeys(ctx context.Context, keys []string) ([]domain.Identity, error)
}

type ProbeExtractor interface {
	Extract(ctx context.Context, data []byte, maxDimension int) (domain.Descriptor, error)
}

// Matcher is the part of *match.Engine the service drives.
type Matcher interface {
	Evaluate(ctx context.Context, probe domain.Descriptor, gallery []domain.Identity) (*match.Evaluation, error)
	Preload(ctx context.Context, identities []domain.Identity) domain.PreloadReport
	Refresh(ctx context.Context, identities []domain.Identity) domain.RefreshReport
	Stats() domain.CacheStats
	ClearCache() domain.ClearReport
}

var _ Matcher = (*match.Engine)(nil)

// RequestMeta carries caller details into the audit trail.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

type Config struct {
	ProbeMaxDimension int
	PreloadTimeout    time.Duration
}

type IdentificationService struct {
	gallery   GalleryRepositoryInterface
	extractor ProbeExtractor
	matcher   Matcher
	audit     audit.Logger
	config    Config
	logger    *slog.Logger

	preloading atomic.Bool
}

func NewIdentificationService(
	gallery GalleryRepositoryInterface,
	extractor ProbeExtractor,
	matcher Matcher,
	auditLogger audit.Logger,
	cfg Config,
	logger *slog.Logger,
) *IdentificationService {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	if cfg.ProbeMaxDimension < 1 {
		cfg.ProbeMaxDimension = 640
	}
	if cfg.PreloadTimeout <= 0 {
		cfg.PreloadTimeout = 2 * time.Minute
	}
	return &IdentificationService{
		gallery:   gallery,
		extractor: extractor,
		matcher:   matcher,
		audit:     auditLogger,
		config:    cfg,
		logger:    logger.With("component", "identification"),
	}
}

// Identify extracts the probe descriptor from image and matches it against
// every enrolled identity. A probe without a face is an error; a gallery
// without a trustworthy candidate is not.
func (s *IdentificationService) Identify(ctx context.Context, image []byte, meta RequestMeta) (*domain.Identification, error) {
	start := time.Now()

	result, err := s.identify(ctx, image)
	if err != nil {
		s.record(ctx, auditEvent(meta, audit.EventIdentificationAttempted, "", err, nil))
		return nil, err
	}
	result.LatencyMs = time.Since(start).Milliseconds()

	metadata := map[string]string{
		"matched":              strconv.FormatBool(result.Matched()),
		"gallery_size":         strconv.Itoa(result.GallerySize),
		"candidates_evaluated": strconv.Itoa(result.CandidatesEvaluated),
		"latency_ms":           strconv.FormatInt(result.LatencyMs, 10),
	}
	identityKey := ""
	if result.Matched() {
		identityKey = result.Match.Identity.Key
		metadata["confidence"] = string(result.Match.Confidence)
		metadata["distance"] = strconv.FormatFloat(result.Match.Distance, 'f', 4, 64)
	}
	s.record(ctx, auditEvent(meta, audit.EventIdentificationAttempted, identityKey, nil, metadata))

	s.logger.InfoContext(ctx, "identification finished",
		slog.String("request_id", meta.RequestID),
		slog.Bool("matched", result.Matched()),
		slog.Int("gallery_size", result.GallerySize),
		slog.Int("candidates_evaluated", result.CandidatesEvaluated),
		slog.Int64("latency_ms", result.LatencyMs),
	)
	return result, nil
}

func (s *IdentificationService) identify(ctx context.Context, image []byte) (*domain.Identification, error) {
	if len(image) == 0 {
		return nil, domain.ErrInvalidImage
	}

	probe, err := s.extractor.Extract(ctx, image, s.config.ProbeMaxDimension)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	gallery, err := s.gallery.ListEnrolled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}

	eval, err := s.matcher.Evaluate(ctx, probe, gallery)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}

	return &domain.Identification{
		Match:               eval.Result,
		GallerySize:         len(gallery),
		CandidatesEvaluated: len(eval.Candidates),
	}, nil
}

// Preload warms the descriptor cache from the enrolled gallery and blocks
// until it finishes or ctx ends.
func (s *IdentificationService) Preload(ctx context.Context) (domain.PreloadReport, error) {
	gallery, err := s.gallery.ListEnrolled(ctx)
	if err != nil {
		return domain.PreloadReport{}, fmt.Errorf("list gallery: %w", err)
	}

	report := s.matcher.Preload(ctx, gallery)
	s.record(ctx, audit.Event{
		EventType: audit.EventDescriptorsPreloaded,
		Success:   true,
		Metadata: map[string]string{
			"considered": strconv.Itoa(report.Considered),
			"attempted":  strconv.Itoa(report.Attempted),
			"computed":   strconv.Itoa(report.Computed),
			"failed":     strconv.Itoa(report.Failed),
		},
	})
	return report, nil
}

// StartPreload runs Preload in the background, bounded by PreloadTimeout.
// It returns false without starting anything when a preload is already
// running. The returned channel is closed when the run ends.
func (s *IdentificationService) StartPreload() (<-chan struct{}, bool) {
	if !s.preloading.CompareAndSwap(false, true) {
		return nil, false
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer s.preloading.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.config.PreloadTimeout)
		defer cancel()

		if _, err := s.Preload(ctx); err != nil {
			s.logger.Warn("background preload failed", slog.String("error", err.Error()))
		}
	}()
	return done, true
}

// Refresh recomputes the descriptors of the given identity keys. Keys that
// are not enrolled are reported as failures.
func (s *IdentificationService) Refresh(ctx context.Context, keys []string, meta RequestMeta) (domain.RefreshReport, error) {
	unique := dedupe(keys)
	if len(unique) == 0 {
		return domain.RefreshReport{}, domain.ErrValidationFailed.WithError(errors.New("keys must not be empty"))
	}

	identities, err := s.gallery.GetByKeys(ctx, unique)
	if err != nil {
		return domain.RefreshReport{}, fmt.Errorf("load identities: %w", err)
	}

	report := s.matcher.Refresh(ctx, identities)

	found := make(map[string]struct{}, len(identities))
	for _, identity := range identities {
		found[identity.Key] = struct{}{}
	}
	for _, key := range unique {
		if _, ok := found[key]; ok {
			continue
		}
		if report.Failures == nil {
			report.Failures = make(map[string]string)
		}
		report.Failures[key] = domain.ErrIdentityNotFound.Message
	}
	report.Requested = len(unique)
	report.Failed = len(report.Failures)

	s.record(ctx, auditEvent(meta, audit.EventDescriptorsRefreshed, "", nil, map[string]string{
		"requested": strconv.Itoa(report.Requested),
		"refreshed": strconv.Itoa(report.Refreshed),
		"failed":    strconv.Itoa(report.Failed),
	}))
	return report, nil
}

func (s *IdentificationService) Stats() domain.CacheStats {
	return s.matcher.Stats()
}

func (s *IdentificationService) ClearCache(ctx context.Context, meta RequestMeta) domain.ClearReport {
	report := s.matcher.ClearCache()
	s.record(ctx, auditEvent(meta, audit.EventCacheCleared, "", nil, map[string]string{
		"descriptors": strconv.Itoa(report.Descriptors),
		"images":      strconv.Itoa(report.Images),
	}))
	return report
}

// record never fails the caller; an unwritable audit trail is logged.
func (s *IdentificationService) record(ctx context.Context, event audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event_type", string(event.EventType)),
			slog.String("error", err.Error()),
		)
	}
}

func auditEvent(meta RequestMeta, eventType audit.EventType, identityKey string, err error, metadata map[string]string) audit.Event {
	event := audit.Event{
		RequestID:   meta.RequestID,
		EventType:   eventType,
		IdentityKey: identityKey,
		Success:     err == nil,
		Metadata:    metadata,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
