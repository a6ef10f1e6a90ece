// Package fraud scores check-ins for suspicious patterns.
package fraud

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/service/geo"
)

// MaxScore is the upper bound of a fraud score.
const MaxScore = 100.0

// Rule names reported in signals.
const (
	RuleBurst            = "burst"
	RuleImpossibleTravel = "impossible_travel"
	RuleLocationMismatch = "location_mismatch"
)

// Rules holds the penalties, windows and thresholds of the scoring rules.
type Rules struct {
	BurstWindow          time.Duration
	BurstThreshold       int
	BurstPenalty         float64
	TravelDistanceMeters float64
	TravelWindowMinutes  int
	TravelPenalty        float64
	MismatchPenalty      float64
	FlagThreshold        float64
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		BurstWindow:          time.Hour,
		BurstThreshold:       3,
		BurstPenalty:         30,
		TravelDistanceMeters: 100000,
		TravelWindowMinutes:  60,
		TravelPenalty:        40,
		MismatchPenalty:      20,
		FlagThreshold:        70,
	}
}

// RulesFromConfig builds rules from configuration, keeping defaults for unset values.
func RulesFromConfig(cfg config.FraudConfig) Rules {
	r := DefaultRules()
	if cfg.BurstWindow > 0 {
		r.BurstWindow = cfg.BurstWindow
	}
	if cfg.BurstThreshold > 0 {
		r.BurstThreshold = cfg.BurstThreshold
	}
	if cfg.BurstPenalty > 0 {
		r.BurstPenalty = cfg.BurstPenalty
	}
	if cfg.TravelDistanceMeters > 0 {
		r.TravelDistanceMeters = cfg.TravelDistanceMeters
	}
	if cfg.TravelWindowMinutes > 0 {
		r.TravelWindowMinutes = cfg.TravelWindowMinutes
	}
	if cfg.TravelPenalty > 0 {
		r.TravelPenalty = cfg.TravelPenalty
	}
	if cfg.MismatchPenalty > 0 {
		r.MismatchPenalty = cfg.MismatchPenalty
	}
	if cfg.FlagThreshold > 0 {
		r.FlagThreshold = cfg.FlagThreshold
	}
	return r
}

// Signal is a triggered rule and its contribution.
type Signal struct {
	Rule    string  `json:"rule"`
	Penalty float64 `json:"penalty"`
	Detail  string  `json:"detail"`
}

// Assessment is the outcome of scoring one check-in.
type Assessment struct {
	Score   float64  `json:"score"`
	Flagged bool     `json:"flagged"`
	Signals []Signal `json:"signals,omitempty"`
}

// Reason summarizes triggered signals, e.g. "burst; impossible_travel".
func (a Assessment) Reason() string {
	rules := make([]string, 0, len(a.Signals))
	for _, s := range a.Signals {
		rules = append(rules, s.Rule)
	}
	return strings.Join(rules, "; ")
}

// Scorer applies additive rules to a check-in. It holds no state and is safe for concurrent use.
type Scorer struct {
	rules Rules
}

// NewScorer creates a scorer with the given rules.
func NewScorer(rules Rules) *Scorer {
	return &Scorer{rules: rules}
}

// Rules returns the scorer's rule set.
func (s *Scorer) Rules() Rules {
	return s.rules
}

// Score evaluates every rule against the new record and the user's prior check-ins.
// history may be in any order and must not contain the new record; now is the
// record's creation time.
func (s *Scorer) Score(record *models.CheckIn, history []models.CheckIn, now time.Time) Assessment {
	var signals []Signal

	if sig, ok := s.burst(history, now); ok {
		signals = append(signals, sig)
	}
	if sig, ok := s.impossibleTravel(record, history, now); ok {
		signals = append(signals, sig)
	}
	if sig, ok := s.locationMismatch(record); ok {
		signals = append(signals, sig)
	}

	total := 0.0
	for _, sig := range signals {
		total += sig.Penalty
	}
	score := math.Min(total, MaxScore)

	return Assessment{
		Score:   score,
		Flagged: score > s.rules.FlagThreshold,
		Signals: signals,
	}
}

// burst counts check-ins in the trailing window, the new one included.
func (s *Scorer) burst(history []models.CheckIn, now time.Time) (Signal, bool) {
	cutoff := now.Add(-s.rules.BurstWindow)
	count := 1
	for i := range history {
		at := history[i].CreatedAt
		if !at.Before(cutoff) && !at.After(now) {
			count++
		}
	}
	if count <= s.rules.BurstThreshold {
		return Signal{}, false
	}
	return Signal{
		Rule:    RuleBurst,
		Penalty: s.rules.BurstPenalty,
		Detail:  fmt.Sprintf("%d check-ins within %s", count, s.rules.BurstWindow),
	}, true
}

// impossibleTravel compares against the single most recent prior check-in only.
func (s *Scorer) impossibleTravel(record *models.CheckIn, history []models.CheckIn, now time.Time) (Signal, bool) {
	prev := mostRecent(history)
	if prev == nil || !prev.HasLocation() || !record.HasLocation() {
		return Signal{}, false
	}

	distance := geo.Distance(
		geo.Point{Lat: *prev.Latitude, Lon: *prev.Longitude},
		geo.Point{Lat: *record.Latitude, Lon: *record.Longitude},
	)
	minutes := int(now.Sub(prev.CreatedAt) / time.Minute)

	if distance <= s.rules.TravelDistanceMeters || minutes >= s.rules.TravelWindowMinutes {
		return Signal{}, false
	}
	return Signal{
		Rule:    RuleImpossibleTravel,
		Penalty: s.rules.TravelPenalty,
		Detail:  fmt.Sprintf("%.0f km in %d min", distance/1000, minutes),
	}, true
}

func (s *Scorer) locationMismatch(record *models.CheckIn) (Signal, bool) {
	if !record.LocationRejected() {
		return Signal{}, false
	}
	return Signal{
		Rule:    RuleLocationMismatch,
		Penalty: s.rules.MismatchPenalty,
		Detail:  "location outside event radius",
	}, true
}

func mostRecent(history []models.CheckIn) *models.CheckIn {
	var latest *models.CheckIn
	for i := range history {
		c := &history[i]
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.ID > latest.ID) {
			latest = c
		}
	}
	return latest
}
