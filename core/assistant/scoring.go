package assistant

import (
	"fmt"
	"math"

	"github.com/kilianp07/fleetdispatch/core/model"
)

const (
	baseScore        = 50.0
	proximityCredit  = 20.0
	proximityRange   = 100.0
	ratingCredit     = 10.0
	onTimeCredit     = 5.0
	timeWindowCredit = 10.0
	certCredit       = 10.0
)

// Score is the breakdown of a rule-based load/driver score.
type Score struct {
	Total      float64
	Distance   float64
	Proximity  float64
	Rating     float64
	TimeWindow float64
	Coverage   float64
	Eligible   bool
}

// Confidence is Total scaled to [0, 1].
func (s Score) Confidence() float64 { return s.Total / 100 }

// Factors explains the score in human-readable terms.
func (s Score) Factors() []string {
	return []string{
		fmt.Sprintf("%.1f mi from pickup (+%.1f)", s.Distance, s.Proximity),
		fmt.Sprintf("performance (+%.1f)", s.Rating),
		fmt.Sprintf("time window fit (+%.0f)", s.TimeWindow),
		fmt.Sprintf("certifications %.0f%% (+%.1f)", s.Coverage*100, s.Coverage*certCredit),
	}
}

// ScoreCandidate rates driver d for load l. A driver missing a required
// certification or unavailable for the load window is not eligible.
func ScoreCandidate(l model.Load, d model.Driver) Score {
	s := Score{
		Distance: model.DistanceMiles(d.Location, l.Pickup),
		Coverage: model.CertificationCoverage(d.Certifications, l.SpecialRequirements),
	}
	s.Eligible = s.Coverage == 1 && d.FitsWindow(l.TimeWindow)
	if !s.Eligible {
		return s
	}
	s.Proximity = proximityCredit * math.Max(0, 1-s.Distance/proximityRange)
	p := d.Performance
	s.Rating = clamp(p.Rating/5, 0, 1)*ratingCredit + clamp(p.OnTimeRate, 0, 1)*onTimeCredit
	s.TimeWindow = timeWindowCredit
	s.Total = clamp(baseScore+s.Proximity+s.Rating+s.TimeWindow+s.Coverage*certCredit, 0, 100)
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
