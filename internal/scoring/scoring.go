// Package scoring derives engagement scores from active/total session time.
package scoring

import "math"

// Tier buckets an engagement score into a 3-tier classification.
type Tier string

const (
	TierProductive Tier = "productive" // score >= 80
	TierRegular    Tier = "regular"    // 50 <= score < 80
	TierIdle       Tier = "idle"       // score < 50
)

const (
	productiveThreshold = 80
	regularThreshold    = 50
)

// Score maps (active seconds, total seconds) to a 0-100 engagement score.
// Negative inputs are treated as zero and active is clamped to total, so
// the result is always in [0,100]. A zero-duration session scores 0.
func Score(activeSeconds, totalSeconds int64) int {
	if totalSeconds <= 0 {
		return 0
	}
	if activeSeconds < 0 {
		activeSeconds = 0
	}
	if activeSeconds > totalSeconds {
		activeSeconds = totalSeconds
	}
	score := int(math.Round(100 * float64(activeSeconds) / float64(totalSeconds)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Classify buckets a score into its tier.
func Classify(score int) Tier {
	switch {
	case score >= productiveThreshold:
		return TierProductive
	case score >= regularThreshold:
		return TierRegular
	default:
		return TierIdle
	}
}

// Evaluate returns both the score and its tier for one session.
func Evaluate(activeSeconds, totalSeconds int64) (int, Tier) {
	score := Score(activeSeconds, totalSeconds)
	return score, Classify(score)
}
