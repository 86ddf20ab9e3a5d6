package domain

import "time"

// Identity is an enrolled user that can be matched. Name is carried for
// reporting only and never takes part in matching.
type Identity struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	PortraitURL string    `json:"portrait_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasPortrait reports whether the identity can take part in matching.
func (i Identity) HasPortrait() bool {
	return i.PortraitURL != ""
}

// CandidateSource tells where a candidate's descriptor came from.
type CandidateSource string

const (
	SourceCache CandidateSource = "cache"
	SourceFresh CandidateSource = "fresh"
)

// MatchCandidate is a transient (identity, distance) pair produced during one
// match attempt.
type MatchCandidate struct {
	Identity Identity        `json:"identity"`
	Distance float64         `json:"distance"`
	Source   CandidateSource `json:"source"`
}

// Confidence names the policy rule that accepted a match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceMargin Confidence = "margin"
)

// MatchResult is an accepted match.
type MatchResult struct {
	Identity            Identity        `json:"identity"`
	Distance            float64         `json:"distance"`
	Confidence          Confidence      `json:"confidence"`
	Source              CandidateSource `json:"source"`
	RunnerUpDistance    *float64        `json:"runner_up_distance,omitempty"`
	CandidatesEvaluated int             `json:"candidates_evaluated"`
}

// Identification is the outcome of identifying a probe image. Match is nil
// when no identity was trustworthy enough to report.
type Identification struct {
	Match               *MatchResult `json:"match,omitempty"`
	GallerySize         int          `json:"gallery_size"`
	CandidatesEvaluated int          `json:"candidates_evaluated"`
	LatencyMs           int64        `json:"latency_ms"`
}

// Matched reports whether the identification produced a match.
func (i *Identification) Matched() bool {
	return i != nil && i.Match != nil
}

// PreloadReport summarizes a best-effort preload run.
type PreloadReport struct {
	Considered int `json:"considered"`
	Attempted  int `json:"attempted"`
	Computed   int `json:"computed"`
	Failed     int `json:"failed"`
}

// RefreshReport summarizes a forced recomputation of descriptors.
type RefreshReport struct {
	Requested int               `json:"requested"`
	Refreshed int               `json:"refreshed"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// CacheStats reports the sizes of the process-wide caches.
type CacheStats struct {
	Descriptors int `json:"descriptors"`
	Images      int `json:"images"`
}

// ClearReport reports how many entries a cache clear removed.
type ClearReport struct {
	Descriptors int `json:"descriptors"`
	Images      int `json:"images"`
}
