package usecase

import (
	"fmt"
	"sort"
	"time"
)

// Ranking policy defaults. Similarity dominates; recency acts as a
// tiebreaker and freshness boost.
const (
	DefaultAlpha         = 0.8
	DefaultRecencyWindow = 3 * 365 * 24 * time.Hour
	DefaultTopN          = 10
)

// RankerConfig holds tunable parameters for hybrid score combination.
type RankerConfig struct {
	// Alpha weights similarity against recency in the combined score.
	Alpha float64

	// RecencyWindow is the age beyond which an asset's recency
	// contribution is exactly zero.
	RecencyWindow time.Duration

	// TopN is the number of candidates kept after ranking.
	TopN int
}

// DefaultRankerConfig returns current defaults.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		Alpha:         DefaultAlpha,
		RecencyWindow: DefaultRecencyWindow,
		TopN:          DefaultTopN,
	}
}

// Validate checks if the configuration values are within acceptable ranges.
func (c RankerConfig) Validate() error {
	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be in [0,1] (got %f)", c.Alpha)
	}
	if c.RecencyWindow <= 0 {
		return fmt.Errorf("recency window must be positive (got %s)", c.RecencyWindow)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("topN must be positive (got %d)", c.TopN)
	}
	return nil
}

// Rank combines similarity and recency into one ordering and truncates to
// the top N. It is a pure function of its inputs: no external calls, and
// identical inputs with the same now yield identical output order. The
// sort is stable, so equal combined scores retain the similarity-ordered
// relative order of the input. Candidates with a missing acquisition
// timestamp are dropped rather than failing the whole set.
func Rank(candidates []Candidate, now time.Time, cfg RankerConfig) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.AcquiredAt.IsZero() {
			continue
		}
		c.Recency = recencyScore(c.AcquiredAt, now, cfg.RecencyWindow)
		c.Combined = cfg.Alpha*c.Similarity + (1-cfg.Alpha)*c.Recency
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Combined > ranked[j].Combined
	})

	if len(ranked) > cfg.TopN {
		ranked = ranked[:cfg.TopN]
	}
	return ranked
}

// recencyScore decays linearly from 1 at acquisition time to 0 at the
// window boundary, flooring at 0 for anything older.
func recencyScore(acquiredAt, now time.Time, window time.Duration) float64 {
	age := now.Sub(acquiredAt)
	if age <= 0 {
		return 1
	}
	score := 1 - float64(age)/float64(window)
	if score < 0 {
		return 0
	}
	return score
}
