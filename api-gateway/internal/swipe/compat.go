package swipe

import (
	"math"
	"math/rand/v2"
	"strings"
)

// Compatibility score bounds.
const (
	MinCompatibility = 65
	MaxCompatibility = 98
)

// Compatibility scores how well traits overlap prefs, as a percentage.
// Without preferences the score is a random pick in 70..98.
func Compatibility(prefs, traits []string, r *rand.Rand) int {
	if len(prefs) == 0 {
		return randomInt(r, 70, MaxCompatibility)
	}

	matched := 0
	for _, t := range traits {
		for _, p := range prefs {
			if strings.EqualFold(t, p) {
				matched++
				break
			}
		}
	}

	base := float64(matched) / float64(len(prefs)) * 100
	score := int(math.Round(base + float64(randomInt(r, 20, 40))))
	return min(MaxCompatibility, max(MinCompatibility, score))
}

// randomInt returns a value in [lo, hi].
func randomInt(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}
