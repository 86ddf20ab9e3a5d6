package match

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// Policy holds the distance thresholds that decide whether the best
// candidate is trustworthy. Rules are evaluated in order, first hit wins:
//
//  1. best < High                                         -> high
//  2. best < Medium                                       -> medium
//  3. two or more candidates, best < MarginCeiling and
//     second/best > MarginRatio                            -> margin
//  4. otherwise no match
type Policy struct {
	High          float64
	Medium        float64
	MarginCeiling float64
	MarginRatio   float64
}

func DefaultPolicy() Policy {
	return Policy{
		High:          0.45,
		Medium:        0.55,
		MarginCeiling: 0.6,
		MarginRatio:   1.2,
	}
}

func (p Policy) Validate() error {
	if p.High <= 0 || p.Medium <= 0 || p.MarginCeiling <= 0 {
		return fmt.Errorf("policy thresholds must be positive: %+v", p)
	}
	if p.High > p.Medium {
		return fmt.Errorf("high threshold %.3f exceeds medium threshold %.3f", p.High, p.Medium)
	}
	if p.MarginRatio < 1 {
		return fmt.Errorf("margin ratio %.3f must be at least 1", p.MarginRatio)
	}
	return nil
}

// Decide applies the policy to candidates sorted by ascending distance.
// It returns nil when no candidate is accepted.
func (p Policy) Decide(ranked []domain.MatchCandidate) *domain.MatchResult {
	if len(ranked) == 0 {
		return nil
	}

	best := ranked[0]
	var runnerUp *float64
	if len(ranked) > 1 {
		d := ranked[1].Distance
		runnerUp = &d
	}

	var confidence domain.Confidence
	switch {
	case best.Distance < p.High:
		confidence = domain.ConfidenceHigh
	case best.Distance < p.Medium:
		confidence = domain.ConfidenceMedium
	case runnerUp != nil && best.Distance < p.MarginCeiling && best.Distance > 0 &&
		*runnerUp/best.Distance > p.MarginRatio:
		confidence = domain.ConfidenceMargin
	default:
		return nil
	}

	return &domain.MatchResult{
		Identity:            best.Identity,
		Distance:            best.Distance,
		Confidence:          confidence,
		Source:              best.Source,
		RunnerUpDistance:    runnerUp,
		CandidatesEvaluated: len(ranked),
	}
}
